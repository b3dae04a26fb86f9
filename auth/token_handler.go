package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
)

// TokenHandler exchanges authorization codes for bearer tokens.
type TokenHandler struct {
	store   *Store
	issuer  *TokenIssuer
	metrics *metrics.Metrics
}

func NewTokenHandler(store *Store, issuer *TokenIssuer, m *metrics.Metrics) http.Handler {
	return &TokenHandler{store: store, issuer: issuer, metrics: m}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      int64  `json:"id_token"`
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := processTokenRequest(r, h.store, h.issuer)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.metrics.OAuthOutcome("token", "success")

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(tokenResponse{
		AccessToken:  result.AccessToken.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.AccessToken.ExpiresIn,
		RefreshToken: result.RefreshToken.RefreshToken,
		IDToken:      result.UserID,
	}); err != nil {
		logger.Error(err)
	}
}

func (h *TokenHandler) handleError(w http.ResponseWriter, err error) {
	var tErr *tokenError
	if !errors.As(err, &tErr) || tErr == nil {
		logger.Error(err)
		h.metrics.OAuthOutcome("token", errServerError)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.metrics.OAuthOutcome("token", tErr.code)
	fields := []zap.Field{zap.String("step", "token"), zap.String("error", tErr.code)}
	if tErr.cause != nil {
		fields = append(fields, zap.NamedError("cause", tErr.cause))
	}
	if tErr.code == errServerError {
		logger.L().Error(tErr.description, fields...)
	} else {
		logger.L().Info(tErr.description, fields...)
	}

	status := tErr.status
	if status == 0 {
		status = http.StatusBadRequest
	}

	response := map[string]string{"error": tErr.code}
	if tErr.description != "" {
		response["error_description"] = tErr.description
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error(err)
	}
}
