package auth

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")
	ErrAuthorizationCodeExists   = errors.New("authorization code already exists")
	ErrAuthorizationCodeExpired  = errors.New("authorization code expired")
)

// OAuth error codes, RFC 6749 section 4.1.2.1 and 5.2.
const (
	errInvalidRequest          = "invalid_request"
	errInvalidClient           = "invalid_client"
	errUnsupportedResponseType = "unsupported_response_type"
	errInvalidScope            = "invalid_scope"
	errAccessDenied            = "access_denied"
	errServerError             = "server_error"
	errInvalidGrant            = "invalid_grant"
	errUnsupportedGrantType    = "unsupported_grant_type"
)

// Values sent as error_description.
const (
	MsgNoResponseType        = "You did not provide a type of response you are expecting."
	MsgInvalidResponseType   = "The response type you requested is not valid."
	MsgNoClientID            = "You did not provide a client_id."
	MsgNoRedirectURI         = "You did not provide a redirect_uri."
	MsgInvalidRedirectURI    = "You did not provide a valid redirect_uri."
	MsgNoScope               = "You did not provide a scope."
	MsgInvalidScope          = "You did not provide a valid scope."
	MsgOpenIDTokenInvalid    = "Unable to verify your OpenID token."
	MsgOpenIDUnavailable     = "Unable to reach the OpenID provider."
	MsgInvalidNoName         = "Your OpenID provider did not provide your name."
	MsgInvalidNoEmail        = "Your OpenID provider did not provide your email address."
	MsgInvalidNoNickname     = "Your OpenID provider did not provide your nickname."
	MsgInvalidTokenGrantType = "This endpoint only supports the authorization_code grant type."
	MsgNoCode                = "You did not provide an authorization code."
	MsgInvalidCode           = "The authorization code is invalid, expired or already used."
	MsgStateTooLong          = "The state you provided is too long."
	MsgClaimTooLong          = "Your OpenID provider returned a value that is too long."
	MsgServerError           = "The server encountered an error while processing the request."
)

// authorizationError is delivered as a redirect to RedirectURI when it is
// set, otherwise as a JSON body.
type authorizationError struct {
	Code        string
	Description string
	RedirectURI *url.URL
	Cause       error
}

func (e *authorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

func (e *authorizationError) Unwrap() error {
	return e.Cause
}

func newAuthorizationError(code, description string, redirect *url.URL, cause error) error {
	return &authorizationError{
		Code:        code,
		Description: description,
		RedirectURI: redirect,
		Cause:       cause,
	}
}

type tokenError struct {
	code        string
	description string
	status      int
	cause       error
}

func (e *tokenError) Error() string {
	if e.description != "" {
		return fmt.Sprintf("%s: %s", e.code, e.description)
	}
	return e.code
}

func (e *tokenError) Unwrap() error {
	return e.cause
}

func newTokenError(code, description string, status int, cause error) error {
	return &tokenError{
		code:        code,
		description: description,
		status:      status,
		cause:       cause,
	}
}
