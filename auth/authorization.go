package auth

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	redirectURIParam   = "redirect_uri"
	sbRedirectURIParam = "sb_redirect_uri"
)

type authorizationRequest struct {
	ResponseType   string
	ClientID       string
	RedirectURI    *url.URL
	RawRedirectURI string
	Scope          []string
	State          string
	Form           url.Values
}

// processHTTPAuthorizationRequest validates an authorize or authorize_return
// request. Checks run in a fixed order (response_type, client_id,
// redirect_uri, scope) and the first failure is returned. redirectParam names
// the parameter holding the client's redirect URI.
func processHTTPAuthorizationRequest(r *http.Request, redirectParam string, validScopes []string) (*authorizationRequest, error) {
	if r.Method != http.MethodGet {
		return nil, newAuthorizationError(errInvalidRequest, "authorization request must use GET", nil, errors.New("invalid_method"))
	}

	if err := r.ParseForm(); err != nil {
		return nil, newAuthorizationError(errInvalidRequest, "unable to parse request parameters", nil, err)
	}

	return validateAuthorizationRequest(r.Form, redirectParam, validScopes)
}

// maxStateLength is the widest state the authorization_codes table holds.
const maxStateLength = 1024

func validateAuthorizationRequest(form url.Values, redirectParam string, validScopes []string) (*authorizationRequest, error) {
	rawRedirectURI := strings.TrimSpace(form.Get(redirectParam))
	redirectURI, redirectErr := parseRedirectURI(rawRedirectURI)

	// Errors before the redirect_uri check are redirected when the URI is usable.
	var redirect *url.URL
	if redirectErr == nil {
		redirect = redirectURI
	}

	responseType := strings.TrimSpace(form.Get("response_type"))
	if responseType == "" {
		return nil, newAuthorizationError(errUnsupportedResponseType, MsgNoResponseType, redirect, nil)
	}
	if responseType != "code" {
		return nil, newAuthorizationError(errUnsupportedResponseType, MsgInvalidResponseType, redirect, nil)
	}

	clientID := strings.TrimSpace(form.Get("client_id"))
	if clientID == "" {
		return nil, newAuthorizationError(errInvalidClient, MsgNoClientID, redirect, nil)
	}

	if redirectErr != nil {
		return nil, redirectErr
	}

	scopes := strings.Fields(form.Get("scope"))
	if len(scopes) == 0 {
		return nil, newAuthorizationError(errInvalidScope, MsgNoScope, redirect, nil)
	}
	for _, s := range scopes {
		if !slices.Contains(validScopes, s) {
			return nil, newAuthorizationError(errInvalidScope, MsgInvalidScope, redirect, nil)
		}
	}

	state := form.Get("state")
	if utf8.RuneCountInString(state) > maxStateLength {
		return nil, newAuthorizationError(errInvalidRequest, MsgStateTooLong, redirect, nil)
	}

	return &authorizationRequest{
		ResponseType:   responseType,
		ClientID:       clientID,
		RedirectURI:    redirectURI,
		RawRedirectURI: rawRedirectURI,
		Scope:          scopes,
		State:          state,
		Form:           form,
	}, nil
}

// parseRedirectURI never returns an error carrying a redirect target.
func parseRedirectURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, newAuthorizationError(errInvalidRequest, MsgNoRedirectURI, nil, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newAuthorizationError(errInvalidRequest, MsgInvalidRedirectURI, nil, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, newAuthorizationError(errInvalidRequest, MsgInvalidRedirectURI, nil, errors.New("invalid_redirect_uri"))
	}
	return u, nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	if u.User != nil {
		user := *u.User
		clone.User = &user
	}
	return &clone
}

// redirectWithQuery returns base with its query replaced by params. Scheme,
// host, path and fragment are kept.
func redirectWithQuery(base *url.URL, params url.Values) *url.URL {
	redirect := cloneURL(base)
	redirect.RawQuery = params.Encode()
	return redirect
}

func appendErrorQuery(base *url.URL, code, description string) *url.URL {
	params := url.Values{"error": {code}}
	if description != "" {
		params.Set("error_description", description)
	}
	return redirectWithQuery(base, params)
}
