// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identitytest provides an in-memory identity store for tests.

It mimics the PostgreSQL repositories closely enough for service tests:
normalized unique keys, atomic counters, NotFound errors and transactions
that roll back on error. Failures can be injected per method.
*/
package identitytest

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/piggybank/internal/platform/dberr"
	"github.com/taibuivan/piggybank/internal/users/identity"
)

// Store holds users, roles and assignments in memory.
type Store struct {
	mu          sync.Mutex
	users       map[string]identity.User
	roles       map[string]identity.Role
	assignments map[string]map[string]struct{}
	failures    map[string]error
	calls       []string
	txDepth     int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]identity.User),
		roles:       make(map[string]identity.Role),
		assignments: make(map[string]map[string]struct{}),
		failures:    make(map[string]error),
	}
}

// Users returns the [identity.UserRepository] view of the store.
func (store *Store) Users() identity.UserRepository { return userRepository{store} }

// Roles returns the [identity.RoleRepository] view of the store.
func (store *Store) Roles() identity.RoleRepository { return roleRepository{store} }

// FailOn makes every later call of method return err. A nil err clears it.
func (store *Store) FailOn(method string, err error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err == nil {
		delete(store.failures, method)
		return
	}
	store.failures[method] = err
}

// Calls returns the repository methods invoked so far, in order.
func (store *Store) Calls() []string {
	store.mu.Lock()
	defer store.mu.Unlock()
	return slices.Clone(store.calls)
}

// User returns a copy of the stored account.
func (store *Store) User(id string) (identity.User, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, found := store.users[id]
	return user, found
}

// RoleNames returns the sorted role names assigned to userID.
func (store *Store) RoleNames(userID string) []string {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.roleNamesLocked(userID)
}

// WithinTx runs fn and restores the previous state when it fails.
func (store *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	store.mu.Lock()
	if store.txDepth > 0 {
		store.mu.Unlock()
		return fn(ctx)
	}
	store.txDepth++
	snapshot := store.snapshotLocked()
	store.mu.Unlock()

	err := fn(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	store.txDepth--
	if err != nil {
		store.users, store.roles, store.assignments = snapshot.users, snapshot.roles, snapshot.assignments
	}
	return err
}

type snapshot struct {
	users       map[string]identity.User
	roles       map[string]identity.Role
	assignments map[string]map[string]struct{}
}

func (store *Store) snapshotLocked() snapshot {
	assignments := make(map[string]map[string]struct{}, len(store.assignments))
	for userID, roleIDs := range store.assignments {
		assignments[userID] = maps.Clone(roleIDs)
	}
	return snapshot{users: maps.Clone(store.users), roles: maps.Clone(store.roles), assignments: assignments}
}

// enter records the call and returns the injected failure, if any.
func (store *Store) enter(method string) error {
	store.calls = append(store.calls, method)
	return store.failures[method]
}

func (store *Store) roleNamesLocked(userID string) []string {
	names := []string{}
	for roleID := range store.assignments[userID] {
		names = append(names, store.roles[roleID].Name)
	}
	sort.Strings(names)
	return names
}

func notFound(message string) error {
	return dberr.Wrap(pgx.ErrNoRows, message)
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

// # User Repository

type userRepository struct{ store *Store }

func (repository userRepository) FindByID(_ context.Context, id string) (*identity.User, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("FindByID"); err != nil {
		return nil, err
	}
	user, found := store.users[id]
	if !found {
		return nil, notFound("User not found.")
	}
	return &user, nil
}

func (repository userRepository) findBy(method string, match func(identity.User) bool) (*identity.User, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter(method); err != nil {
		return nil, err
	}
	for _, user := range store.users {
		if match(user) {
			return &user, nil
		}
	}
	return nil, notFound("User not found.")
}

func (repository userRepository) FindByNormalizedEmail(_ context.Context, normalizedEmail string) (*identity.User, error) {
	return repository.findBy("FindByNormalizedEmail", func(user identity.User) bool {
		return identity.Normalize(user.Email) == normalizedEmail
	})
}

func (repository userRepository) FindByNormalizedUsername(_ context.Context, normalizedUsername string) (*identity.User, error) {
	return repository.findBy("FindByNormalizedUsername", func(user identity.User) bool {
		return identity.Normalize(user.Username) == normalizedUsername
	})
}

func (repository userRepository) List(context.Context) ([]identity.User, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("List"); err != nil {
		return nil, err
	}
	users := slices.Collect(maps.Values(store.users))
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (repository userRepository) checkUniqueLocked(user *identity.User) error {
	for _, other := range repository.store.users {
		if other.ID == user.ID {
			continue
		}
		if identity.Normalize(other.Username) == identity.Normalize(user.Username) {
			return uniqueViolation("account_normalizedusername_key")
		}
		if identity.Normalize(other.Email) == identity.Normalize(user.Email) {
			return uniqueViolation("account_normalizedemail_key")
		}
	}
	return nil
}

func (repository userRepository) Create(_ context.Context, user *identity.User) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("Create"); err != nil {
		return err
	}
	if err := repository.checkUniqueLocked(user); err != nil {
		return err
	}
	store.users[user.ID] = *user
	return nil
}

func (repository userRepository) Update(_ context.Context, user *identity.User) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("Update"); err != nil {
		return err
	}
	current, found := store.users[user.ID]
	if !found {
		return notFound("User not found.")
	}
	if err := repository.checkUniqueLocked(user); err != nil {
		return err
	}
	current.Username = user.Username
	current.Email = user.Email
	current.UpdatedAt = user.UpdatedAt
	store.users[user.ID] = current
	return nil
}

func (repository userRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("UpdateLastLogin"); err != nil {
		return err
	}
	user, found := store.users[id]
	if !found {
		return notFound("User not found.")
	}
	user.LastLoginAt = &at
	store.users[id] = user
	return nil
}

func (repository userRepository) UpdatePasswordHash(_ context.Context, id, currentHash, newHash string, updatedAt time.Time) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("UpdatePasswordHash"); err != nil {
		return err
	}
	user, found := store.users[id]
	if !found || user.PasswordHash != currentHash {
		return identity.ErrStalePasswordHash
	}
	user.PasswordHash = newHash
	user.UpdatedAt = &updatedAt
	store.users[id] = user
	return nil
}

func (repository userRepository) IncrementAccessFailed(_ context.Context, id string) (int, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("IncrementAccessFailed"); err != nil {
		return 0, err
	}
	user, found := store.users[id]
	if !found {
		return 0, notFound("User not found.")
	}
	user.AccessFailedCount++
	store.users[id] = user
	return user.AccessFailedCount, nil
}

func (repository userRepository) Delete(_ context.Context, id string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("Delete"); err != nil {
		return err
	}
	if _, found := store.users[id]; !found {
		return notFound("User not found.")
	}
	delete(store.users, id)
	delete(store.assignments, id)
	return nil
}

// # Role Repository

type roleRepository struct{ store *Store }

func (repository roleRepository) FindByNormalizedName(_ context.Context, normalizedName string) (*identity.Role, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("FindByNormalizedName"); err != nil {
		return nil, err
	}
	for _, role := range store.roles {
		if identity.Normalize(role.Name) == normalizedName {
			return &role, nil
		}
	}
	return nil, notFound("Role not found.")
}

func (repository roleRepository) Create(_ context.Context, role *identity.Role) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("CreateRole"); err != nil {
		return err
	}
	for _, other := range store.roles {
		if identity.Normalize(other.Name) == identity.Normalize(role.Name) {
			return uniqueViolation("role_normalizedname_key")
		}
	}
	store.roles[role.ID] = *role
	return nil
}

func (repository roleRepository) RolesForUser(_ context.Context, userID string) ([]string, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("RolesForUser"); err != nil {
		return nil, err
	}
	return store.roleNamesLocked(userID), nil
}

func (repository roleRepository) RolesForUsers(_ context.Context, userIDs []string) (map[string][]string, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("RolesForUsers"); err != nil {
		return nil, err
	}
	result := make(map[string][]string, len(userIDs))
	for _, userID := range userIDs {
		if names := store.roleNamesLocked(userID); len(names) > 0 {
			result[userID] = names
		}
	}
	return result, nil
}

func (repository roleRepository) AddToRoles(_ context.Context, userID string, roleIDs []string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("AddToRoles"); err != nil {
		return err
	}
	if store.assignments[userID] == nil {
		store.assignments[userID] = make(map[string]struct{})
	}
	for _, roleID := range roleIDs {
		store.assignments[userID][roleID] = struct{}{}
	}
	return nil
}

func (repository roleRepository) RemoveFromRoles(_ context.Context, userID string, normalizedNames []string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.enter("RemoveFromRoles"); err != nil {
		return err
	}
	for roleID := range store.assignments[userID] {
		if slices.Contains(normalizedNames, identity.Normalize(store.roles[roleID].Name)) {
			delete(store.assignments[userID], roleID)
		}
	}
	return nil
}
