package authtest

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/restkit/auth"
)

// ErrNoAuthSource is returned when a config has neither ValidateFunc nor
// Credentials configured.
var ErrNoAuthSource = errors.New("authtest: at least one of ValidateFunc or Credentials must be set")

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// BasicConfig configures the Basic middleware.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc7617
type BasicConfig struct {
	// Realm is sent in the WWW-Authenticate header. Defaults to
	// "Restricted" when empty.
	Realm string

	// ValidateFunc validates credentials dynamically. Takes priority over
	// Credentials when both are set.
	ValidateFunc func(username, password string) bool

	// Credentials is a static map of username -> password pairs.
	Credentials map[string]string
}

// BasicMiddleware returns a middleware that requires HTTP Basic
// credentials and answers 401 Unauthorized when they are missing or wrong.
func BasicMiddleware(cfg BasicConfig) (MiddlewareFunc, error) {
	check, err := checker(cfg.ValidateFunc, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}

	wwwAuthenticate := fmt.Sprintf("Basic realm=%q", realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !check(username, password) {
				unauthorized(w, wwwAuthenticate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// HiddenBasicConfig configures the HiddenBasic middleware.
type HiddenBasicConfig struct {
	// Field names. Default to auth.DefaultUsernameField and
	// auth.DefaultPasswordField.
	UsernameField string
	PasswordField string

	ValidateFunc func(username, password string) bool
	Credentials  map[string]string
}

// HiddenBasicMiddleware returns a middleware that reads credentials from
// query, form or multipart fields and answers 401 when they do not match.
func HiddenBasicMiddleware(cfg HiddenBasicConfig) (MiddlewareFunc, error) {
	check, err := checker(cfg.ValidateFunc, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	userField := cfg.UsernameField
	if userField == "" {
		userField = auth.DefaultUsernameField
	}

	passField := cfg.PasswordField
	if passField == "" {
		passField = auth.DefaultPasswordField
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.FormValue(userField)
			if username == "" || !check(username, r.FormValue(passField)) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func checker(validate func(string, string) bool, credentials map[string]string) (func(string, string) bool, error) {
	if validate == nil && len(credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	if validate != nil {
		return validate, nil
	}

	return func(username, password string) bool {
		expected, exists := credentials[username]
		// Compare even for unknown users so timing does not reveal them.
		match := constantTimeEqual(password, expected)

		return exists && match
	}, nil
}

// constantTimeEqual compares two strings in constant time by first hashing
// them with SHA-256.
func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}

// unauthorized writes a 401 response with the WWW-Authenticate header and
// an empty body.
func unauthorized(w http.ResponseWriter, wwwAuthenticate string) {
	w.Header().Set("WWW-Authenticate", wwwAuthenticate)
	w.WriteHeader(http.StatusUnauthorized)
}
