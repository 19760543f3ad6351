// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/piggybank/internal/platform/postgres"
)

// fakeTx records the transaction outcome. Unused pgx.Tx methods panic.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return tx.commitErr
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx     *fakeTx
	err    error
	begins int
}

func (beginner *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	beginner.begins++
	if beginner.err != nil {
		return nil, beginner.err
	}
	return beginner.tx, nil
}

// fakeQuerier stands in for a pool outside transactions.
type fakeQuerier struct {
	postgres.Querier
}

/*
TestTransactor_WithinTx covers commit, rollback, nesting and begin failures.
*/
func TestTransactor_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits_on_success", func(t *testing.T) {
		beginner := &fakeBeginner{tx: &fakeTx{}}
		pool := fakeQuerier{}

		err := postgres.NewTransactor(beginner).WithinTx(ctx, func(ctx context.Context) error {
			assert.Same(t, beginner.tx, postgres.Conn(ctx, pool))
			return nil
		})

		require.NoError(t, err)
		assert.True(t, beginner.tx.committed)
		assert.False(t, beginner.tx.rolledBack)
	})

	t.Run("rolls_back_on_error", func(t *testing.T) {
		beginner := &fakeBeginner{tx: &fakeTx{}}
		failure := errors.New("role insert failed")

		err := postgres.NewTransactor(beginner).WithinTx(ctx, func(context.Context) error { return failure })

		assert.ErrorIs(t, err, failure)
		assert.True(t, beginner.tx.rolledBack)
		assert.False(t, beginner.tx.committed)
	})

	t.Run("rolls_back_on_panic", func(t *testing.T) {
		beginner := &fakeBeginner{tx: &fakeTx{}}

		assert.Panics(t, func() {
			_ = postgres.NewTransactor(beginner).WithinTx(ctx, func(context.Context) error { panic("boom") })
		})
		assert.True(t, beginner.tx.rolledBack)
	})

	t.Run("nested_calls_join", func(t *testing.T) {
		beginner := &fakeBeginner{tx: &fakeTx{}}
		transactor := postgres.NewTransactor(beginner)

		err := transactor.WithinTx(ctx, func(ctx context.Context) error {
			return transactor.WithinTx(ctx, func(context.Context) error { return nil })
		})

		require.NoError(t, err)
		assert.Equal(t, 1, beginner.begins)
	})

	t.Run("commit_failure", func(t *testing.T) {
		beginner := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("serialization failure")}}

		err := postgres.NewTransactor(beginner).WithinTx(ctx, func(context.Context) error { return nil })

		assert.ErrorContains(t, err, "postgres_tx_commit_failed")
	})

	t.Run("begin_failure", func(t *testing.T) {
		beginner := &fakeBeginner{err: errors.New("pool closed")}
		called := false

		err := postgres.NewTransactor(beginner).WithinTx(ctx, func(context.Context) error {
			called = true
			return nil
		})

		assert.ErrorContains(t, err, "postgres_tx_begin_failed")
		assert.False(t, called)
	})
}

/*
TestConn_Fallback returns the pool when no transaction is bound.
*/
func TestConn_Fallback(t *testing.T) {
	pool := fakeQuerier{}
	assert.Equal(t, pool, postgres.Conn(context.Background(), pool))
}
