// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/piggybank/internal/platform/dberr"
	"github.com/taibuivan/piggybank/internal/platform/postgres"
)

const userColumns = `id, username, email, passwordhash, accessfailedcount, lastloginat, createdat, updatedat`

// # User Repository

// PostgresUserRepository implements [UserRepository] on the users.account table.
type PostgresUserRepository struct {
	db postgres.Querier
}

// NewUserRepository creates a PostgreSQL implementation of [UserRepository].
func NewUserRepository(db postgres.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AccessFailedCount,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (repository *PostgresUserRepository) findOne(context context.Context, column, value string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE ` + column + ` = $1`

	user, err := scanUser(postgres.Conn(context, repository.db).QueryRow(context, query, value))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, dberr.Wrap(err, "User not found.")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}
	return user, nil
}

// FindByID implements [UserRepository].
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, dberr.Wrap(pgx.ErrNoRows, "User not found.")
	}
	return repository.findOne(context, "id", id)
}

// FindByNormalizedEmail implements [UserRepository].
func (repository *PostgresUserRepository) FindByNormalizedEmail(context context.Context, normalizedEmail string) (*User, error) {
	return repository.findOne(context, "normalizedemail", normalizedEmail)
}

// FindByNormalizedUsername implements [UserRepository].
func (repository *PostgresUserRepository) FindByNormalizedUsername(context context.Context, normalizedUsername string) (*User, error) {
	return repository.findOne(context, "normalizedusername", normalizedUsername)
}

// List implements [UserRepository].
func (repository *PostgresUserRepository) List(context context.Context) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users.account ORDER BY createdat, id`

	rows, err := postgres.Conn(context, repository.db).Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_user_repo_list_scan_failed: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	return users, nil
}

/*
Create persists a new user record into the users.account table.

Normalized username and email are derived here so the unique indexes always
see the same keys as the lookups.
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, username, normalizedusername, email, normalizedemail,
			passwordhash, accessfailedcount, lastloginat, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := postgres.Conn(context, repository.db).Exec(context, query,
		user.ID,
		user.Username,
		Normalize(user.Username),
		user.Email,
		Normalize(user.Email),
		user.PasswordHash,
		user.AccessFailedCount,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}
	return nil
}

// Update implements [UserRepository]. Credentials, last login and the
// failed-access counter each have their own write.
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users.account
		SET username = $2, normalizedusername = $3, email = $4, normalizedemail = $5, updatedat = $6
		WHERE id = $1`

	tag, err := postgres.Conn(context, repository.db).Exec(context, query,
		user.ID,
		user.Username,
		Normalize(user.Username),
		user.Email,
		Normalize(user.Email),
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(pgx.ErrNoRows, "User not found.")
	}
	return nil
}

// UpdateLastLogin implements [UserRepository].
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, id string, at time.Time) error {
	const query = `UPDATE users.account SET lastloginat = $2 WHERE id = $1`

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_last_login_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(pgx.ErrNoRows, "User not found.")
	}
	return nil
}

// UpdatePasswordHash implements [UserRepository] as a compare-and-swap on the
// stored hash, so two writers holding the same hash cannot both succeed.
func (repository *PostgresUserRepository) UpdatePasswordHash(context context.Context, id, currentHash, newHash string, updatedAt time.Time) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $3, updatedat = $4
		WHERE id = $1 AND passwordhash = $2`

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, id, currentHash, newHash, updatedAt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStalePasswordHash
	}
	return nil
}

// IncrementAccessFailed implements [UserRepository].
func (repository *PostgresUserRepository) IncrementAccessFailed(context context.Context, id string) (int, error) {
	const query = `
		UPDATE users.account
		SET accessfailedcount = accessfailedcount + 1
		WHERE id = $1
		RETURNING accessfailedcount`

	var count int
	if err := postgres.Conn(context, repository.db).QueryRow(context, query, id).Scan(&count); err != nil {
		if dberr.IsNoRows(err) {
			return 0, dberr.Wrap(err, "User not found.")
		}
		return 0, fmt.Errorf("postgres_user_repo_access_failed_failed: %w", err)
	}
	return count, nil
}

// Delete implements [UserRepository].
func (repository *PostgresUserRepository) Delete(context context.Context, id string) error {
	const query = `DELETE FROM users.account WHERE id = $1`

	if uuid.Validate(id) != nil {
		return dberr.Wrap(pgx.ErrNoRows, "User not found.")
	}

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(pgx.ErrNoRows, "User not found.")
	}
	return nil
}

// # Role Repository

// PostgresRoleRepository implements [RoleRepository] on users.role and users.accountrole.
type PostgresRoleRepository struct {
	db postgres.Querier
}

// NewRoleRepository creates a PostgreSQL implementation of [RoleRepository].
func NewRoleRepository(db postgres.Querier) *PostgresRoleRepository {
	return &PostgresRoleRepository{db: db}
}

// FindByNormalizedName implements [RoleRepository].
func (repository *PostgresRoleRepository) FindByNormalizedName(context context.Context, normalizedName string) (*Role, error) {
	const query = `SELECT id, name, createdat, updatedat FROM users.role WHERE normalizedname = $1`

	role := &Role{}
	err := postgres.Conn(context, repository.db).QueryRow(context, query, normalizedName).Scan(
		&role.ID,
		&role.Name,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, dberr.Wrap(err, "Role not found.")
		}
		return nil, fmt.Errorf("postgres_role_repo_find_failed: %w", err)
	}
	return role, nil
}

// Create implements [RoleRepository].
func (repository *PostgresRoleRepository) Create(context context.Context, role *Role) error {
	const query = `
		INSERT INTO users.role (id, name, normalizedname, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := postgres.Conn(context, repository.db).Exec(context, query,
		role.ID,
		role.Name,
		Normalize(role.Name),
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_role_repo_create_failed: %w", err)
	}
	return nil
}

// RolesForUser implements [RoleRepository].
func (repository *PostgresRoleRepository) RolesForUser(context context.Context, userID string) ([]string, error) {
	const query = `
		SELECT r.name
		FROM users.accountrole ar
		JOIN users.role r ON r.id = ar.roleid
		WHERE ar.accountid = $1
		ORDER BY r.name`

	rows, err := postgres.Conn(context, repository.db).Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_roles_for_user_failed: %w", err)
	}

	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_roles_for_user_failed: %w", err)
	}
	return roles, nil
}

// RolesForUsers implements [RoleRepository].
func (repository *PostgresRoleRepository) RolesForUsers(context context.Context, userIDs []string) (map[string][]string, error) {
	const query = `
		SELECT ar.accountid::text, r.name
		FROM users.accountrole ar
		JOIN users.role r ON r.id = ar.roleid
		WHERE ar.accountid = ANY($1::uuid[])
		ORDER BY ar.accountid, r.name`

	result := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := postgres.Conn(context, repository.db).Query(context, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_roles_for_users_failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_roles_for_users_scan_failed: %w", err)
		}
		result[userID] = append(result[userID], role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_roles_for_users_failed: %w", err)
	}
	return result, nil
}

// AddToRoles implements [RoleRepository].
func (repository *PostgresRoleRepository) AddToRoles(context context.Context, userID string, roleIDs []string) error {
	const query = `
		INSERT INTO users.accountrole (accountid, roleid)
		SELECT $1::uuid, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`

	if _, err := postgres.Conn(context, repository.db).Exec(context, query, userID, roleIDs); err != nil {
		return fmt.Errorf("postgres_role_repo_add_to_roles_failed: %w", err)
	}
	return nil
}

// RemoveFromRoles implements [RoleRepository].
func (repository *PostgresRoleRepository) RemoveFromRoles(context context.Context, userID string, normalizedNames []string) error {
	const query = `
		DELETE FROM users.accountrole ar
		USING users.role r
		WHERE ar.roleid = r.id
		  AND ar.accountid = $1
		  AND r.normalizedname = ANY($2)`

	if _, err := postgres.Conn(context, repository.db).Exec(context, query, userID, normalizedNames); err != nil {
		return fmt.Errorf("postgres_role_repo_remove_from_roles_failed: %w", err)
	}
	return nil
}
