package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/logger"
)

const grantTypeAuthorizationCode = "authorization_code"

type tokenResult struct {
	AccessToken  *AccessToken
	RefreshToken *RefreshToken
	UserID       int64
}

func processTokenRequest(r *http.Request, store *Store, issuer *TokenIssuer) (*tokenResult, error) {
	if r.Method != http.MethodPost {
		return nil, newTokenError(errInvalidRequest, "token endpoint requires POST", http.StatusMethodNotAllowed, nil)
	}

	if err := r.ParseForm(); err != nil {
		return nil, newTokenError(errInvalidRequest, "unable to parse request body", http.StatusBadRequest, err)
	}

	if strings.TrimSpace(r.PostForm.Get("grant_type")) != grantTypeAuthorizationCode {
		return nil, newTokenError(errUnsupportedGrantType, MsgInvalidTokenGrantType, http.StatusBadRequest, nil)
	}

	code := strings.TrimSpace(r.PostForm.Get("code"))
	if code == "" {
		return nil, newTokenError(errInvalidRequest, MsgNoCode, http.StatusBadRequest, nil)
	}

	return exchangeAuthorizationCode(r.Context(), store, issuer, code)
}

// exchangeAuthorizationCode consumes the code and issues a token pair in one
// transaction, so a code is exchanged at most once and never without tokens.
func exchangeAuthorizationCode(ctx context.Context, store *Store, issuer *TokenIssuer, code string) (*tokenResult, error) {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, newTokenError(errServerError, MsgServerError, http.StatusInternalServerError,
			logger.LogErr(fmt.Errorf("begin token exchange: %w", err)))
	}
	defer db.Rollback(tx)

	authCode, err := store.consumeAuthorizationCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrAuthorizationCodeNotFound) || errors.Is(err, ErrAuthorizationCodeExpired) {
			return nil, newTokenError(errInvalidGrant, MsgInvalidCode, http.StatusBadRequest, err)
		}
		return nil, newTokenError(errServerError, MsgServerError, http.StatusInternalServerError, err)
	}

	access, refresh, err := issuer.IssueTx(ctx, tx, authCode.UserID)
	if err != nil {
		return nil, newTokenError(errServerError, MsgServerError, http.StatusInternalServerError, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, newTokenError(errServerError, MsgServerError, http.StatusInternalServerError,
			logger.LogErr(fmt.Errorf("commit token exchange: %w", err)))
	}

	return &tokenResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       authCode.UserID,
	}, nil
}
