package users

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// PostgresUserRepo is a Postgres-backed implementation of UserRepo.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a Postgres user repository over an open handle.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, default_role, roles, created, last_login`

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// UpsertByEmail gets or creates the user for an email, the Hasura
// insert-on-conflict pattern the original store used.
func (r *PostgresUserRepo) UpsertByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, default_role, created)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET updated = now()
		RETURNING `+userColumns,
		uuid.New().String(), strings.ToLower(email), RoleUser, time.Now().UTC())
	return scanUser(row)
}

func (r *PostgresUserRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "[PostgresUserRepo.SetLastLogin] update")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var roles []byte
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.DefaultRole, &roles, &user.Created, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "[scanUser] scan")
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time
	}
	if len(roles) > 0 {
		user.Roles = splitRoles(string(roles))
	}
	return &user, nil
}

// Roles are stored as a comma-joined text column; assignment order matters
// for the allowed-roles claim, so no sorting happens here.
func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, part)
		}
	}
	return roles
}
