package auth

import (
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/logger"
	"github.com/milanbella/storyboard/metrics"
)

// AuthorizeReturnHandler receives the user agent back from the OpenID
// provider, verifies the assertion and hands the client an authorization
// code.
type AuthorizeReturnHandler struct {
	store       *Store
	verifier    Verifier
	validScopes []string
	metrics     *metrics.Metrics
}

func NewAuthorizeReturnHandler(store *Store, verifier Verifier, auth config.AuthConfig, m *metrics.Metrics) http.Handler {
	return &AuthorizeReturnHandler{
		store:       store,
		verifier:    verifier,
		validScopes: auth.ValidScopes,
		metrics:     m,
	}
}

func (h *AuthorizeReturnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.process(r)
	if err != nil {
		handleAuthorizationError(w, r, "authorize_return", h.metrics, err)
		return
	}

	h.metrics.OAuthOutcome("authorize_return", "success")
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (h *AuthorizeReturnHandler) process(r *http.Request) (*url.URL, error) {
	authReq, err := processHTTPAuthorizationRequest(r, sbRedirectURIParam, h.validScopes)
	if err != nil {
		return nil, err
	}
	redirect := authReq.RedirectURI

	valid, err := h.verifier.Verify(r.Context(), authReq.Form)
	if err != nil {
		return nil, newAuthorizationError(errServerError, MsgOpenIDUnavailable, redirect, err)
	}
	if !valid {
		return nil, newAuthorizationError(errAccessDenied, MsgOpenIDTokenInvalid, redirect, nil)
	}

	identity, err := identityFromForm(authReq.Form, redirect)
	if err != nil {
		return nil, err
	}

	user, err := h.store.FindOrCreateUser(r.Context(), identity)
	if err != nil {
		return nil, newAuthorizationError(errServerError, MsgServerError, redirect, err)
	}

	code, err := h.store.SaveAuthorizationCode(r.Context(), user.ID, authReq.State, "")
	if err != nil {
		return nil, newAuthorizationError(errServerError, MsgServerError, redirect, err)
	}

	logger.L().Info("authorization code issued",
		zap.Int64("user_id", user.ID),
		zap.String("client_id", authReq.ClientID),
	)

	return redirectWithQuery(redirect, url.Values{
		"code":  {code.Code},
		"state": {authReq.State},
	}), nil
}

// maxClaimLength bounds the user columns sreg claims are stored in.
const maxClaimLength = 255

// identityFromForm reads the sreg claims of a verified assertion.
func identityFromForm(form url.Values, redirect *url.URL) (Identity, error) {
	openID := strings.TrimSpace(form.Get("openid.claimed_id"))
	if openID == "" {
		return Identity{}, newAuthorizationError(errAccessDenied, MsgOpenIDTokenInvalid, redirect, nil)
	}
	if utf8.RuneCountInString(openID) > maxClaimLength {
		return Identity{}, newAuthorizationError(errInvalidRequest, MsgClaimTooLong, redirect, nil)
	}

	claims := []struct {
		key     string
		message string
	}{
		{"openid.sreg.fullname", MsgInvalidNoName},
		{"openid.sreg.email", MsgInvalidNoEmail},
		{"openid.sreg.nickname", MsgInvalidNoNickname},
	}
	values := make([]string, len(claims))
	for i, c := range claims {
		values[i] = strings.TrimSpace(form.Get(c.key))
		if values[i] == "" {
			return Identity{}, newAuthorizationError(errInvalidRequest, c.message, redirect, nil)
		}
		if utf8.RuneCountInString(values[i]) > maxClaimLength {
			return Identity{}, newAuthorizationError(errInvalidRequest, MsgClaimTooLong, redirect, nil)
		}
	}

	return Identity{
		OpenID:   openID,
		FullName: values[0],
		Email:    values[1],
		Username: values[2],
	}, nil
}
