package core

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned by a UserRepository when no user matches.
var ErrUserNotFound = errors.New("user not found")

// UserRecord represents a minimal projection stored in persistence layer.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	Create(ctx context.Context, username, passwordHash string) (int64, error)
	HasUsers(ctx context.Context) (bool, error)
}

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func findUserQuery(username string) (string, []any, error) {
	return psql.
		Select("id", "username", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	q, args, err := findUserQuery(username)
	if err != nil {
		return nil, err
	}
	var u UserRecord
	if err := r.db.QueryRow(ctx, q, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, username, passwordHash string) (int64, error) {
	q, args, err := psql.
		Insert("users").
		Columns("username", "password_hash").
		Values(username, passwordHash).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgUserRepository) HasUsers(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureUserSchema creates the users table when missing.
func EnsureUserSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}
