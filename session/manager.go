package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/milanbella/storyboard/logger"
)

type ctxKey string

const userContextKey ctxKey = "session-user"

var (
	ErrTokenNotFound = errors.New("access token not found")
	ErrTokenExpired  = errors.New("access token expired")
)

// User is the account an access token was issued to.
type User struct {
	ID          int64
	Username    string
	IsSuperuser bool
}

// Manager resolves bearer access tokens to users.
type Manager struct {
	db  *sql.DB
	now func() time.Time
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, now: time.Now}
}

// Middleware puts the token owner into the request context when the request
// carries a valid bearer token. Requests without one pass through unchanged;
// RequireUser decides whether that is acceptable.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
			// served as anonymous
		default:
			logger.Error(err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests that Middleware could not authenticate.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="storyboard"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"faultcode":   "Client",
				"faultstring": "A valid access token is required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate returns the user owning an unexpired access token.
func (m *Manager) Authenticate(ctx context.Context, token string) (User, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.is_superuser, t.expires_at
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.access_token = ?
	`, token)

	var (
		user      User
		expiresAt time.Time
	)
	if err := row.Scan(&user.ID, &user.Username, &user.IsSuperuser, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrTokenNotFound
		}
		return User{}, fmt.Errorf("look up access token: %w", err)
	}

	if !m.now().UTC().Before(expiresAt) {
		return User{}, ErrTokenExpired
	}
	return user, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// FromContext extracts the user stored by the middleware.
func FromContext(ctx context.Context) (User, bool) {
	val, ok := ctx.Value(userContextKey).(User)
	return val, ok
}
