package auth

import "time"

// AuthorizationCode is a single-use grant created after OpenID verification.
type AuthorizationCode struct {
	ID        int64
	Code      string
	UserID    int64
	State     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AccessToken represents an issued bearer token.
type AccessToken struct {
	ID          int64
	AccessToken string
	UserID      int64
	ExpiresIn   int64
	ExpiresAt   time.Time
}

// RefreshToken is created together with, and refers to, one AccessToken.
type RefreshToken struct {
	ID            int64
	RefreshToken  string
	UserID        int64
	AccessTokenID int64
	ExpiresIn     int64
	ExpiresAt     time.Time
}

type User struct {
	ID       int64
	Username string
	FullName string
	Email    string
	OpenID   string
}

// Identity is what a verified OpenID response asserts about the user.
type Identity struct {
	OpenID   string
	Username string
	FullName string
	Email    string
}
