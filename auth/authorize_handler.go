package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
)

const (
	AuthorizePath       = "/v1/openid/authorize"
	AuthorizeReturnPath = "/v1/openid/authorize_return"
	TokenPath           = "/v1/openid/token"
)

// AuthorizeHandler validates an OAuth authorization request and sends the
// user agent to the OpenID provider.
type AuthorizeHandler struct {
	openID      config.OpenIDConfig
	validScopes []string
	metrics     *metrics.Metrics
}

func NewAuthorizeHandler(openID config.OpenIDConfig, auth config.AuthConfig, m *metrics.Metrics) http.Handler {
	return &AuthorizeHandler{openID: openID, validScopes: auth.ValidScopes, metrics: m}
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authReq, err := processHTTPAuthorizationRequest(r, redirectURIParam, h.validScopes)
	if err != nil {
		handleAuthorizationError(w, r, "authorize", h.metrics, err)
		return
	}

	location, err := providerRedirect(h.openID, authReq)
	if err != nil {
		handleAuthorizationError(w, r, "authorize", h.metrics,
			newAuthorizationError(errServerError, MsgServerError, authReq.RedirectURI, err))
		return
	}

	h.metrics.OAuthOutcome("authorize", "success")
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// handleAuthorizationError redirects OAuth errors back to the client when a
// usable redirect URI is known and writes a JSON body otherwise.
func handleAuthorizationError(w http.ResponseWriter, r *http.Request, step string, m *metrics.Metrics, err error) {
	var authErr *authorizationError
	if !errors.As(err, &authErr) || authErr == nil {
		logger.Error(err)
		m.OAuthOutcome(step, errServerError)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	m.OAuthOutcome(step, authErr.Code)
	fields := []zap.Field{zap.String("step", step), zap.String("error", authErr.Code)}
	if authErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", authErr.Cause))
	}
	if authErr.Code == errServerError {
		logger.L().Error(authErr.Description, fields...)
	} else {
		logger.L().Info(authErr.Description, fields...)
	}

	if authErr.RedirectURI != nil {
		redirect := appendErrorQuery(authErr.RedirectURI, authErr.Code, authErr.Description)
		http.Redirect(w, r, redirect.String(), http.StatusFound)
		return
	}

	status := http.StatusBadRequest
	if authErr.Code == errServerError {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":             authErr.Code,
		"error_description": authErr.Description,
	}); err != nil {
		logger.Error(err)
	}
}
