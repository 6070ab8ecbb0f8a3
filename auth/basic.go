package auth

import (
	"encoding/base64"

	"github.com/vitalvas/restkit/rest"
)

// Basic sends HTTP Basic credentials per RFC 7617 in the Authorization
// header of every request.
type Basic struct {
	username string
	password string
}

// NewBasic returns a Basic authenticator.
func NewBasic(username, password string) *Basic {
	return &Basic{username: username, password: password}
}

// Authenticate sets the Authorization header. It returns
// rest.ErrMissingCredentials when no username is configured.
func (b *Basic) Authenticate(_ *rest.Client, req *rest.Request, _ *rest.Response) error {
	if b.username == "" {
		return rest.ErrMissingCredentials
	}

	req.AddOrUpdateParameter("Authorization", BasicHeader(b.username, b.password), rest.Header)

	return nil
}

// BasicHeader returns the Authorization header value for username and
// password.
func BasicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
