package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/logger"
)

const (
	tokenBytes        = 32
	defaultIssueTries = 5
)

// TokenIssuer mints access and refresh token pairs.
type TokenIssuer struct {
	db         *sql.DB
	accessTTL  time.Duration
	refreshTTL time.Duration
	maxTries   uint
	generate   func() (string, error)
	now        func() time.Time
}

func NewTokenIssuer(db *sql.DB, cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		db:         db,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		maxTries:   defaultIssueTries,
		generate:   randomToken,
		now:        time.Now,
	}
}

// AccessTTL is the lifetime given to new access tokens.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates a token pair for userID in its own transaction.
func (i *TokenIssuer) Issue(ctx context.Context, userID int64) (*AccessToken, *RefreshToken, error) {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, logger.LogErr(fmt.Errorf("begin token transaction: %w", err))
	}
	defer db.Rollback(tx)

	access, refresh, err := i.IssueTx(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, logger.LogErr(fmt.Errorf("commit tokens for user %d: %w", userID, err))
	}
	return access, refresh, nil
}

// IssueTx creates a token pair inside tx. Nothing is visible until the
// caller commits.
func (i *TokenIssuer) IssueTx(ctx context.Context, tx *sql.Tx, userID int64) (*AccessToken, *RefreshToken, error) {
	now := i.now().UTC().Truncate(time.Second)

	access, err := i.insertAccessToken(ctx, tx, userID, now)
	if err != nil {
		return nil, nil, err
	}

	refresh, err := i.insertRefreshToken(ctx, tx, userID, access.ID, now)
	if err != nil {
		return nil, nil, err
	}

	return access, refresh, nil
}

// retryOnCollision runs insert with a fresh token value until it does not
// collide with an existing one.
func (i *TokenIssuer) retryOnCollision(ctx context.Context, kind string, insert func(token string) (int64, error)) (string, int64, error) {
	type result struct {
		token string
		id    int64
	}

	res, err := backoff.Retry(ctx, func() (result, error) {
		token, err := i.generate()
		if err != nil {
			return result{}, backoff.Permanent(err)
		}
		id, err := insert(token)
		if err != nil {
			if db.IsUniqueViolation(err) {
				logger.L().Warn("token collision, regenerating", zap.String("kind", kind))
				return result{}, err
			}
			return result{}, backoff.Permanent(err)
		}
		return result{token: token, id: id}, nil
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(i.maxTries),
	)
	if err != nil {
		return "", 0, logger.LogErr(fmt.Errorf("insert %s: %w", kind, err))
	}
	return res.token, res.id, nil
}

func (i *TokenIssuer) insertAccessToken(ctx context.Context, tx *sql.Tx, userID int64, now time.Time) (*AccessToken, error) {
	expiresIn := int64(i.accessTTL / time.Second)
	expiresAt := now.Add(i.accessTTL)

	token, id, err := i.retryOnCollision(ctx, "access token", func(token string) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO access_tokens (access_token, user_id, expires_in, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, token, userID, expiresIn, expiresAt, now)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		return nil, err
	}

	return &AccessToken{
		ID:          id,
		AccessToken: token,
		UserID:      userID,
		ExpiresIn:   expiresIn,
		ExpiresAt:   expiresAt,
	}, nil
}

func (i *TokenIssuer) insertRefreshToken(ctx context.Context, tx *sql.Tx, userID, accessTokenID int64, now time.Time) (*RefreshToken, error) {
	expiresIn := int64(i.refreshTTL / time.Second)
	expiresAt := now.Add(i.refreshTTL)

	token, id, err := i.retryOnCollision(ctx, "refresh token", func(token string) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO refresh_tokens (refresh_token, user_id, access_token_id, expires_in, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, token, userID, accessTokenID, expiresIn, expiresAt, now)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		return nil, err
	}

	return &RefreshToken{
		ID:            id,
		RefreshToken:  token,
		UserID:        userID,
		AccessTokenID: accessTokenID,
		ExpiresIn:     expiresIn,
		ExpiresAt:     expiresAt,
	}, nil
}
