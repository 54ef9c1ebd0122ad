package sessions

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var _ Repo = (*PostgresRepo)(nil)

// PostgresRepo is a Postgres-backed implementation of Repo. Rotation
// atomicity relies on a conditional UPDATE keyed on the previously read
// value; the database serializes concurrent writers per row.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo creates a Postgres session store over an open handle.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) UpsertLoginToken(ctx context.Context, token *LoginToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_tokens (id, user_id, value, created, expires, approved, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			value = EXCLUDED.value,
			created = EXCLUDED.created,
			expires = EXCLUDED.expires,
			approved = FALSE,
			ip = EXCLUDED.ip,
			user_agent = EXCLUDED.user_agent`,
		token.ID, token.UserID, token.Value, token.Created, token.Expires,
		token.IP, token.UserAgent)
	if err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.UpsertLoginToken] %v", err)
	}
	return nil
}

const loginTokenColumns = `id, user_id, value, created, expires, approved, ip, user_agent`

func (r *PostgresRepo) GetLoginToken(ctx context.Context, id string) (*LoginToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loginTokenColumns+` FROM login_tokens WHERE id = $1`, id)
	return scanLoginToken(row)
}

func (r *PostgresRepo) GetLoginTokenByUser(ctx context.Context, userID string) (*LoginToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loginTokenColumns+` FROM login_tokens WHERE user_id = $1`, userID)
	return scanLoginToken(row)
}

func (r *PostgresRepo) ApproveLoginToken(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE login_tokens SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.ApproveLoginToken] %v", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) DeleteLoginToken(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM login_tokens WHERE id = $1`, id); err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.DeleteLoginToken] %v", err)
	}
	return nil
}

func (r *PostgresRepo) GetRefreshToken(ctx context.Context, loginTokenID string) (*RefreshToken, error) {
	var record RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT login_token_id, user_id, value, last_value, created, expires, last_active, ip, user_agent
		FROM refresh_tokens WHERE login_token_id = $1`, loginTokenID).
		Scan(&record.LoginTokenID, &record.UserID, &record.Value, &record.LastValue,
			&record.Created, &record.Expires, &record.LastActive, &record.IP, &record.UserAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.GetRefreshToken] %v", err)
	}
	return &record, nil
}

// UpsertRefreshToken is the conditional write the rotation protocol relies
// on. First issue (expectedValue empty) inserts; rotation updates only the
// row still holding expectedValue, so a losing concurrent rotation observes
// ErrValueConflict instead of silently overwriting the generation pair.
func (r *PostgresRepo) UpsertRefreshToken(ctx context.Context, record *RefreshToken, expectedValue string) error {
	if expectedValue == "" {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO refresh_tokens (login_token_id, user_id, value, last_value, created, expires, last_active, ip, user_agent)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (login_token_id) DO NOTHING`,
			record.LoginTokenID, record.UserID, record.Value, record.LastValue,
			record.Created, record.Expires, record.LastActive, record.IP, record.UserAgent)
		if err != nil {
			return errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.UpsertRefreshToken] insert: %v", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ErrValueConflict
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET value = $3, last_value = $4, expires = $5, last_active = $6, ip = $7, user_agent = $8
		WHERE login_token_id = $1 AND value = $2`,
		record.LoginTokenID, expectedValue, record.Value, record.LastValue,
		record.Expires, record.LastActive, record.IP, record.UserAgent)
	if err != nil {
		return errors.Wrapf(ErrStorageUnavailable, "[PostgresRepo.UpsertRefreshToken] update: %v", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrValueConflict
	}
	return nil
}

func scanLoginToken(row *sql.Row) (*LoginToken, error) {
	var token LoginToken
	err := row.Scan(&token.ID, &token.UserID, &token.Value, &token.Created,
		&token.Expires, &token.Approved, &token.IP, &token.UserAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(ErrStorageUnavailable, "[scanLoginToken] %v", err)
	}
	return &token, nil
}
