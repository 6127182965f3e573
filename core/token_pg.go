package core

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTokenManager keeps tokens in the session_tokens table so several API processes can share them.
type PgTokenManager struct {
	db *pgxpool.Pool
}

var _ TokenManager = (*PgTokenManager)(nil)

func NewPgTokenManager(db *pgxpool.Pool) *PgTokenManager {
	return &PgTokenManager{db: db}
}

// EnsureTokenSchema creates the session_tokens table when missing.
func EnsureTokenSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS session_tokens (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	issued_at  TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS session_tokens_expires_at_idx ON session_tokens (expires_at)`)
	return err
}

var tokenColumns = []string{"id", "username", "issued_at", "expires_at"}

func upsertTokenQuery(t Token) (string, []any, error) {
	return psql.
		Insert("session_tokens").
		Columns(tokenColumns...).
		Values(t.ID, t.Username, t.IssuedAt, t.ExpiresAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at").
		ToSql()
}

func selectTokenQuery(id string) (string, []any, error) {
	return psql.Select(tokenColumns...).From("session_tokens").Where(sq.Eq{"id": id}).ToSql()
}

func deleteExpiredQuery(now time.Time) (string, []any, error) {
	return psql.Delete("session_tokens").
		Where(sq.And{sq.NotEq{"expires_at": nil}, sq.LtOrEq{"expires_at": now}}).
		ToSql()
}

func (m *PgTokenManager) Add(ctx context.Context, t Token) error {
	q, args, err := upsertTokenQuery(t)
	if err != nil {
		return err
	}
	if _, err := m.db.Exec(ctx, q, args...); err != nil {
		return unavailable("add token", err)
	}
	return nil
}

func (m *PgTokenManager) Lookup(ctx context.Context, id string) (Token, bool, error) {
	q, args, err := selectTokenQuery(id)
	if err != nil {
		return Token{}, false, err
	}
	var t Token
	if err := m.db.QueryRow(ctx, q, args...).Scan(&t.ID, &t.Username, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, false, nil
		}
		return Token{}, false, unavailable("lookup token", err)
	}
	if t.ExpiredAt(nowFunc()) {
		_ = m.Remove(ctx, id)
		return Token{}, false, nil
	}
	return t, true, nil
}

func (m *PgTokenManager) Remove(ctx context.Context, id string) error {
	q, args, err := psql.Delete("session_tokens").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := m.db.Exec(ctx, q, args...); err != nil {
		return unavailable("remove token", err)
	}
	return nil
}

func (m *PgTokenManager) Tokens(ctx context.Context) ([]Token, error) {
	q, args, err := psql.Select(tokenColumns...).From("session_tokens").OrderBy("issued_at").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.Query(ctx, q, args...)
	if err != nil {
		return nil, unavailable("list tokens", err)
	}
	defer rows.Close()
	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.Username, &t.IssuedAt, &t.ExpiresAt); err != nil {
			return nil, unavailable("scan token", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list tokens", err)
	}
	return out, nil
}

// DeleteExpired removes every expired row in one statement and returns how many went.
func (m *PgTokenManager) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q, args, err := deleteExpiredQuery(now)
	if err != nil {
		return 0, err
	}
	tag, err := m.db.Exec(ctx, q, args...)
	if err != nil {
		return 0, unavailable("delete expired tokens", err)
	}
	return tag.RowsAffected(), nil
}
