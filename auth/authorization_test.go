package auth

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScopes = []string{"user"}

func validForm() url.Values {
	return url.Values{
		"response_type": {"code"},
		"client_id":     {"storyboard.openstack.org"},
		"redirect_uri":  {"https://storyboard.openstack.org/!#/auth/token"},
		"scope":         {"user"},
		"state":         {"some_state_value"},
	}
}

func TestValidateAuthorizationRequest(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(url.Values)
		code         string
		description  string
		withRedirect bool
	}{
		{
			name:         "missing response_type",
			mutate:       func(f url.Values) { f.Del("response_type") },
			code:         errUnsupportedResponseType,
			description:  MsgNoResponseType,
			withRedirect: true,
		},
		{
			name:         "wrong response_type",
			mutate:       func(f url.Values) { f.Set("response_type", "token") },
			code:         errUnsupportedResponseType,
			description:  MsgInvalidResponseType,
			withRedirect: true,
		},
		{
			name:         "missing client_id",
			mutate:       func(f url.Values) { f.Del("client_id") },
			code:         errInvalidClient,
			description:  MsgNoClientID,
			withRedirect: true,
		},
		{
			name:        "missing redirect_uri",
			mutate:      func(f url.Values) { f.Del("redirect_uri") },
			code:        errInvalidRequest,
			description: MsgNoRedirectURI,
		},
		{
			name:        "relative redirect_uri",
			mutate:      func(f url.Values) { f.Set("redirect_uri", "/auth/token") },
			code:        errInvalidRequest,
			description: MsgInvalidRedirectURI,
		},
		{
			name:         "missing scope",
			mutate:       func(f url.Values) { f.Del("scope") },
			code:         errInvalidScope,
			description:  MsgNoScope,
			withRedirect: true,
		},
		{
			name:         "unknown scope",
			mutate:       func(f url.Values) { f.Set("scope", "user admin") },
			code:         errInvalidScope,
			description:  MsgInvalidScope,
			withRedirect: true,
		},
		{
			name:         "oversized state",
			mutate:       func(f url.Values) { f.Set("state", strings.Repeat("s", maxStateLength+1)) },
			code:         errInvalidRequest,
			description:  MsgStateTooLong,
			withRedirect: true,
		},
		{
			name: "response_type checked before redirect_uri",
			mutate: func(f url.Values) {
				f.Del("response_type")
				f.Del("redirect_uri")
			},
			code:        errUnsupportedResponseType,
			description: MsgNoResponseType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(form)

			_, err := validateAuthorizationRequest(form, redirectURIParam, testScopes)
			require.Error(t, err)

			var authErr *authorizationError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, tt.code, authErr.Code)
			assert.Equal(t, tt.description, authErr.Description)
			if tt.withRedirect {
				require.NotNil(t, authErr.RedirectURI)
				assert.Equal(t, "storyboard.openstack.org", authErr.RedirectURI.Host)
			} else {
				assert.Nil(t, authErr.RedirectURI)
			}
		})
	}
}

func TestValidateAuthorizationRequestAccepts(t *testing.T) {
	form := validForm()
	form.Set("redirect_uri", "")
	form.Set(sbRedirectURIParam, "https://client.example.org/cb")

	req, err := validateAuthorizationRequest(form, sbRedirectURIParam, testScopes)
	require.NoError(t, err)
	assert.Equal(t, "code", req.ResponseType)
	assert.Equal(t, "storyboard.openstack.org", req.ClientID)
	assert.Equal(t, []string{"user"}, req.Scope)
	assert.Equal(t, "some_state_value", req.State)
	assert.Equal(t, "https://client.example.org/cb", req.RedirectURI.String())

	form.Set("state", strings.Repeat("é", maxStateLength))
	req, err = validateAuthorizationRequest(form, sbRedirectURIParam, testScopes)
	require.NoError(t, err)
	assert.Len(t, []rune(req.State), maxStateLength)
}

func TestAppendErrorQueryKeepsFragment(t *testing.T) {
	base, err := url.Parse("https://storyboard.openstack.org:8443/path?existing=1#/auth/token")
	require.NoError(t, err)

	got := appendErrorQuery(base, errInvalidScope, MsgInvalidScope)

	assert.Equal(t, "https", got.Scheme)
	assert.Equal(t, "storyboard.openstack.org:8443", got.Host)
	assert.Equal(t, "/path", got.Path)
	assert.Equal(t, "/auth/token", got.Fragment)
	assert.Equal(t, url.Values{
		"error":             {errInvalidScope},
		"error_description": {MsgInvalidScope},
	}, got.Query())

	// base is untouched
	assert.Equal(t, "existing=1", base.RawQuery)
}
