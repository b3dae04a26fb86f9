package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/logger"
)

// Store persists authorization codes and the users they are issued to.
type Store struct {
	db      *sql.DB
	codeTTL time.Duration
	now     func() time.Time
}

// NewStore constructs a Store backed by the given sql.DB. Codes expire
// codeTTL after they are saved.
func NewStore(db *sql.DB, codeTTL time.Duration) *Store {
	return &Store{db: db, codeTTL: codeTTL, now: time.Now}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// SaveAuthorizationCode stores a code for userID and the client's state. An
// empty code is replaced by a random one.
func (s *Store) SaveAuthorizationCode(ctx context.Context, userID int64, state, code string) (*AuthorizationCode, error) {
	if strings.TrimSpace(code) == "" {
		code = uuid.NewString()
	}

	createdAt := s.timestamp()
	expiresAt := createdAt.Add(s.codeTTL)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (code, user_id, state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, code, userID, state, createdAt, expiresAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAuthorizationCodeExists
		}
		return nil, logger.LogErr(fmt.Errorf("insert authorization code for user %d: %w", userID, err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("read authorization code id: %w", err))
	}

	return &AuthorizationCode{
		ID:        id,
		Code:      code,
		UserID:    userID,
		State:     state,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execQuerier is satisfied by *sql.Tx.
type execQuerier interface {
	queryRower
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getAuthorizationCode(ctx context.Context, q queryRower, code string) (*AuthorizationCode, error) {
	var c AuthorizationCode
	err := q.QueryRowContext(ctx, `
		SELECT id, code, user_id, state, created_at, expires_at
		FROM authorization_codes
		WHERE code = ?
	`, code).Scan(&c.ID, &c.Code, &c.UserID, &c.State, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuthorizationCodeNotFound
		}
		return nil, logger.LogErr(fmt.Errorf("query authorization code: %w", err))
	}
	return &c, nil
}

// GetAuthorizationCode returns the code whether or not it has expired.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	return getAuthorizationCode(ctx, s.db, code)
}

// DeleteAuthorizationCode is idempotent.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM authorization_codes WHERE code = ?`, code); err != nil {
		return logger.LogErr(fmt.Errorf("delete authorization code: %w", err))
	}
	return nil
}

// consumeAuthorizationCode deletes an unexpired code inside tx and returns
// it. Of two concurrent exchanges of the same code only one sees the delete.
func (s *Store) consumeAuthorizationCode(ctx context.Context, tx execQuerier, code string) (*AuthorizationCode, error) {
	authCode, err := getAuthorizationCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if !s.now().UTC().Before(authCode.ExpiresAt) {
		return nil, ErrAuthorizationCodeExpired
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM authorization_codes WHERE id = ?`, authCode.ID)
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("consume authorization code: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("consume authorization code: %w", err))
	}
	if n != 1 {
		return nil, ErrAuthorizationCodeNotFound
	}

	return authCode, nil
}

// FindOrCreateUser returns the user with the identity's OpenID, creating it
// on first login. Name and email are refreshed from the identity each time.
func (s *Store) FindOrCreateUser(ctx context.Context, id Identity) (*User, error) {
	user, err := s.findOrCreateUser(ctx, id)
	if db.IsUniqueViolation(err) {
		// a concurrent first login created the row
		user, err = s.findOrCreateUser(ctx, id)
	}
	return user, err
}

func (s *Store) findOrCreateUser(ctx context.Context, id Identity) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("begin user transaction: %w", err))
	}
	defer db.Rollback(tx)

	now := s.timestamp()
	user := &User{Username: id.Username, FullName: id.FullName, Email: id.Email, OpenID: id.OpenID}

	err = tx.QueryRowContext(ctx, `SELECT id, username FROM users WHERE openid = ?`, id.OpenID).Scan(&user.ID, &user.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, full_name, email, openid, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id.Username, id.FullName, id.Email, id.OpenID, now, now)
		if err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		if user.ID, err = res.LastInsertId(); err != nil {
			return nil, logger.LogErr(fmt.Errorf("read user id: %w", err))
		}
	case err != nil:
		return nil, logger.LogErr(fmt.Errorf("query user by openid: %w", err))
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?
		`, id.FullName, id.Email, now, user.ID); err != nil {
			return nil, logger.LogErr(fmt.Errorf("update user %d: %w", user.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, logger.LogErr(fmt.Errorf("commit user: %w", err))
	}
	return user, nil
}
