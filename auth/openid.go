package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/milanbella/storyboard/config"
)

const (
	openIDNamespace  = "http://specs.openid.net/auth/2.0"
	identifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"
	sregNamespace    = "http://openid.net/sreg/1.0"
	axNamespace      = "http://openid.net/srv/ax/1.0"

	maxVerifyResponseBytes = 64 << 10
)

// Verifier confirms that an OpenID positive assertion was issued by the
// provider.
type Verifier interface {
	Verify(ctx context.Context, params url.Values) (bool, error)
}

// HTTPVerifier asks the provider directly using OpenID 2.0
// check_authentication (section 11.4.2).
type HTTPVerifier struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewHTTPVerifier(cfg config.OpenIDConfig) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: cfg.URL,
		timeout:  cfg.VerifyTimeout,
		client:   &http.Client{Timeout: cfg.VerifyTimeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, params url.Values) (bool, error) {
	form := url.Values{}
	for key, values := range params {
		if strings.HasPrefix(key, "openid.") {
			form[key] = values
		}
	}
	form.Set("openid.mode", "check_authentication")

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify openid response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verify openid response: provider returned %s", resp.Status)
	}

	fields, err := parseKeyValueForm(io.LimitReader(resp.Body, maxVerifyResponseBytes))
	if err != nil {
		return false, fmt.Errorf("read verification response: %w", err)
	}
	return fields["is_valid"] == "true", nil
}

// parseKeyValueForm reads the OpenID key-value encoding: one "key:value"
// pair per line.
func parseKeyValueForm(r io.Reader) (map[string]string, error) {
	fields := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, scanner.Err()
}

// providerRedirect builds the checkid_setup URL. The client's parameters
// travel inside openid.return_to so authorize_return can validate them again.
func providerRedirect(cfg config.OpenIDConfig, req *authorizationRequest) (string, error) {
	provider, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse openid url: %w", err)
	}

	returnTo := url.Values{
		"response_type":    {req.ResponseType},
		"client_id":        {req.ClientID},
		"scope":            {strings.Join(req.Scope, " ")},
		"state":            {req.State},
		sbRedirectURIParam: {req.RawRedirectURI},
	}

	query := provider.Query()
	query.Set("openid.ns", openIDNamespace)
	query.Set("openid.mode", "checkid_setup")
	query.Set("openid.claimed_id", identifierSelect)
	query.Set("openid.identity", identifierSelect)
	query.Set("openid.realm", cfg.PublicURL+"/")
	query.Set("openid.return_to", cfg.PublicURL+AuthorizeReturnPath+"?"+returnTo.Encode())

	query.Set("openid.ns.sreg", sregNamespace)
	query.Set("openid.sreg.required", "fullname,email,nickname")

	query.Set("openid.ns.ax", axNamespace)
	query.Set("openid.ax.mode", "fetch_request")
	query.Set("openid.ax.required", "Email,FirstName,LastName")
	query.Set("openid.ax.type.Email", "http://schema.openid.net/contact/email")
	query.Set("openid.ax.type.FirstName", "http://schema.openid.net/namePerson/first")
	query.Set("openid.ax.type.LastName", "http://schema.openid.net/namePerson/last")

	provider.RawQuery = query.Encode()
	return provider.String(), nil
}
