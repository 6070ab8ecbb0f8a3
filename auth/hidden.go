package auth

import (
	"github.com/vitalvas/restkit/rest"
)

// Default parameter names used by HiddenBasic.
const (
	DefaultUsernameField = "username"
	DefaultPasswordField = "password"
)

// HiddenBasicConfig configures a HiddenBasic authenticator.
type HiddenBasicConfig struct {
	Username string
	Password string

	// UsernameField is the parameter name carrying the username.
	// Defaults to DefaultUsernameField.
	UsernameField string

	// PasswordField is the parameter name carrying the password.
	// Defaults to DefaultPasswordField.
	PasswordField string
}

// HiddenBasic delivers the credentials as request parameters instead of a
// header, for services that emulate a login form. The parameters use the
// GetOrPost kind: they travel in the body of POST, PUT and PATCH requests
// and in the query string otherwise.
type HiddenBasic struct {
	cfg HiddenBasicConfig
}

// NewHiddenBasic returns a HiddenBasic authenticator.
func NewHiddenBasic(cfg HiddenBasicConfig) (*HiddenBasic, error) {
	if cfg.Username == "" {
		return nil, rest.ErrMissingCredentials
	}

	if cfg.UsernameField == "" {
		cfg.UsernameField = DefaultUsernameField
	}

	if cfg.PasswordField == "" {
		cfg.PasswordField = DefaultPasswordField
	}

	return &HiddenBasic{cfg: cfg}, nil
}

// Authenticate adds the credential parameters, replacing earlier values.
func (h *HiddenBasic) Authenticate(_ *rest.Client, req *rest.Request, _ *rest.Response) error {
	if h.cfg.Username == "" {
		return rest.ErrMissingCredentials
	}

	req.AddOrUpdateParameter(h.cfg.UsernameField, h.cfg.Username, rest.GetOrPost)
	req.AddOrUpdateParameter(h.cfg.PasswordField, h.cfg.Password, rest.GetOrPost)

	return nil
}
