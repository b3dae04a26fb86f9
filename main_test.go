package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milanbella/storyboard/auth"
	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/db/dbtest"
	"github.com/milanbella/storyboard/metrics"
	"github.com/milanbella/storyboard/session"
	"github.com/milanbella/storyboard/tracker"
)

type acceptingVerifier struct{}

func (acceptingVerifier) Verify(context.Context, url.Values) (bool, error) { return true, nil }

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			AccessTokenTTL:       30 * time.Minute,
			RefreshTokenTTL:      48 * time.Hour,
			AuthorizationCodeTTL: time.Minute,
			ValidScopes:          []string{"user"},
		},
		OpenID: config.OpenIDConfig{
			URL:           "https://login.example.org/+openid",
			PublicURL:     "https://storyboard.example.org",
			VerifyTimeout: time.Second,
		},
		Paging: config.PagingConfig{MaxLimit: 100},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	conn := dbtest.New(t)
	cfg := testConfig()
	m := metrics.New()

	return newRouter(
		cfg,
		session.NewManager(conn),
		auth.NewStore(conn, cfg.Auth.AuthorizationCodeTTL),
		auth.NewTokenIssuer(conn, cfg.Auth),
		acceptingVerifier{},
		tracker.NewHandler(tracker.NewStore(conn), cfg.Paging.MaxLimit, m),
		m,
	)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRoundTrip(t *testing.T) {
	h := newTestRouter(t)

	client := url.Values{
		"response_type": {"code"},
		"client_id":     {"storyboard.openstack.org"},
		"redirect_uri":  {"https://client.example.org/callback"},
		"scope":         {"user"},
		"state":         {"s3cr3t"},
	}

	// authorize sends the browser to the provider
	rec := serve(h, httptest.NewRequest(http.MethodGet, auth.AuthorizePath+"?"+client.Encode(), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	provider, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	returnTo, err := url.Parse(provider.Query().Get("openid.return_to"))
	require.NoError(t, err)

	// the provider sends it back with a signed assertion
	back := returnTo.Query()
	back.Set("openid.mode", "id_res")
	back.Set("openid.claimed_id", "https://login.example.org/+id/jdoe")
	back.Set("openid.sreg.fullname", "Jane Doe")
	back.Set("openid.sreg.email", "jane@example.org")
	back.Set("openid.sreg.nickname", "jdoe")

	rec = serve(h, httptest.NewRequest(http.MethodGet, returnTo.Path+"?"+back.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	callback, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client.example.org", callback.Host)
	assert.Equal(t, "s3cr3t", callback.Query().Get("state"))
	code := callback.Query().Get("code")
	require.NotEmpty(t, code)

	exchange := func() *httptest.ResponseRecorder {
		form := url.Values{"grant_type": {"authorization_code"}, "code": {code}}
		req := httptest.NewRequest(http.MethodPost, auth.TokenPath, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return serve(h, req)
	}

	rec = exchange()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		IDToken      int64  `json:"id_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(1800), token.ExpiresIn)
	assert.NotZero(t, token.IDToken)

	rec = exchange()
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the token authorizes writes
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", strings.NewReader(`{"title":"First story"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/stories", strings.NewReader(`{"title":"First story"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var story struct {
		Title     string `json:"title"`
		CreatorID *int64 `json:"creator_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&story))
	assert.Equal(t, "First story", story.Title)
	require.NotNil(t, story.CreatorID)
	assert.Equal(t, token.IDToken, *story.CreatorID)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/v1/stories?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total"))
	assert.Equal(t, "1", rec.Header().Get("X-Limit"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)

	serve(h, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `storyboard_list_requests_total{resource="projects",result="ok"} 1`)
	assert.Contains(t, body, `storyboard_http_requests_total{code="200",method="GET"} 1`)
}
