package directory

import (
	"context"
	"errors"
	"time"

	"github.com/fusione/authcore"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// Querier is the subset of pgxpool.Pool used by Postgres. pgxmock pools
// satisfy it too.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the users table. EnsureSchema runs it.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	role           TEXT NOT NULL,
	password_hash  TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
)`

const selectUser = `
		SELECT id, email, name, role, password_hash, active, email_verified,
		       created_at, updated_at
		FROM auth_users`

// Postgres is a Directory over the auth_users table.
type Postgres struct {
	db  Querier
	now func() time.Time
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return oops.Code("DIRECTORY_SCHEMA_FAILED").
			With("operation", "create auth_users").
			Wrap(err)
	}
	return nil
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (*authcore.UserRecord, error) {
	row := p.db.QueryRow(ctx, selectUser+`
		WHERE email = $1`, email)

	rec, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "get user by email").
			Wrap(err)
	}
	return rec, nil
}

func (p *Postgres) FindByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	row := p.db.QueryRow(ctx, selectUser+`
		WHERE id = $1`, id)

	rec, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(authcore.ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return rec, nil
}

// Save inserts the user or updates the row with the same id. A unique
// violation on email maps to authcore.ErrDuplicateUser.
func (p *Postgres) Save(ctx context.Context, user authcore.UserRecord) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO auth_users (
			id, email, name, role, password_hash, active, email_verified,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash,
			active = EXCLUDED.active,
			email_verified = EXCLUDED.email_verified,
			updated_at = EXCLUDED.updated_at
	`,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Active,
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").
				With("email", user.Email).
				Wrap(authcore.ErrDuplicateUser)
		}
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "save user").
			With("id", user.ID).
			Wrap(err)
	}
	return nil
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE auth_users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, hash, p.now().UTC())
	if err != nil {
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	return nil
}

// SetActive flips the active flag of id.
func (p *Postgres) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE auth_users SET active = $2, updated_at = $3
		WHERE id = $1
	`, id, active, p.now().UTC())
	if err != nil {
		return oops.Code("DIRECTORY_UNAVAILABLE").
			With("operation", "set active").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(authcore.ErrUserNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*authcore.UserRecord, error) {
	var rec authcore.UserRecord
	err := row.Scan(
		&rec.ID,
		&rec.Email,
		&rec.Name,
		&rec.Role,
		&rec.PasswordHash,
		&rec.Active,
		&rec.EmailVerified,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
