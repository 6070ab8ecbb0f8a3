package oauth1

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/restkit/rest"
)

// Default endpoint paths, relative to the client base URL.
const (
	DefaultRequestTokenPath = "request_token"
	DefaultAuthorizePath    = "authorize"
	DefaultAccessTokenPath  = "access_token"
)

// FlowConfig configures a three-legged token exchange.
type FlowConfig struct {
	ConsumerKey    string
	ConsumerSecret string

	// Callback is sent as oauth_callback. Default: "oob".
	Callback string

	// Endpoint paths. Defaults: DefaultRequestTokenPath,
	// DefaultAuthorizePath and DefaultAccessTokenPath.
	RequestTokenPath string
	AuthorizePath    string
	AccessTokenPath  string

	// Method of the token requests. Default: POST.
	Method string

	// Options are applied to every authenticator the flow builds.
	Options []Option

	// Logger defaults to the client logger.
	Logger logrus.FieldLogger
}

// Flow runs the temporary credential, authorization and token legs of RFC
// 5849 Section 2 through a rest.Client. Each leg is a single request; a
// failed leg is returned to the caller and not retried.
type Flow struct {
	client *rest.Client
	cfg    FlowConfig
	logger logrus.FieldLogger
}

// NewFlow returns a Flow that sends its requests with client.
func NewFlow(client *rest.Client, cfg FlowConfig) (*Flow, error) {
	if client == nil {
		return nil, rest.ErrConfiguration
	}

	if cfg.ConsumerKey == "" {
		return nil, rest.ErrMissingCredentials
	}

	if cfg.RequestTokenPath == "" {
		cfg.RequestTokenPath = DefaultRequestTokenPath
	}

	if cfg.AuthorizePath == "" {
		cfg.AuthorizePath = DefaultAuthorizePath
	}

	if cfg.AccessTokenPath == "" {
		cfg.AccessTokenPath = DefaultAccessTokenPath
	}

	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}

	logger := cfg.Logger
	if logger == nil {
		logger = client.Logger()
	}

	return &Flow{client: client, cfg: cfg, logger: logger}, nil
}

// RequestToken obtains temporary credentials.
func (f *Flow) RequestToken(ctx context.Context) (Token, error) {
	a, err := ForRequestToken(f.cfg.ConsumerKey, f.cfg.ConsumerSecret, f.cfg.Callback, f.cfg.Options...)
	if err != nil {
		return Token{}, err
	}

	return f.exchange(ctx, "request_token", f.cfg.RequestTokenPath, a)
}

// AuthorizationURL returns the URL the resource owner visits to authorize
// requestToken.
func (f *Flow) AuthorizationURL(requestToken Token) (*url.URL, error) {
	req := rest.NewRequest(http.MethodGet, f.cfg.AuthorizePath)
	req.AddQueryParameter("oauth_token", requestToken.Token)

	return f.client.BuildURL(req)
}

// AccessToken exchanges requestToken and the verifier for an access token.
func (f *Flow) AccessToken(ctx context.Context, requestToken Token, verifier string) (Token, error) {
	opts := append([]Option{}, f.cfg.Options...)
	if verifier != "" {
		opts = append(opts, WithVerifier(verifier))
	}

	a, err := ForAccessToken(f.cfg.ConsumerKey, f.cfg.ConsumerSecret, requestToken, opts...)
	if err != nil {
		return Token{}, err
	}

	return f.exchange(ctx, "access_token", f.cfg.AccessTokenPath, a)
}

// Authenticator returns an authenticator for protected resource requests.
func (f *Flow) Authenticator(access Token) (*Authenticator, error) {
	return ForProtectedResource(f.cfg.ConsumerKey, f.cfg.ConsumerSecret, access, f.cfg.Options...)
}

// Client returns a copy of the flow's client that signs with access.
func (f *Flow) Client(access Token) (*rest.Client, error) {
	a, err := f.Authenticator(access)
	if err != nil {
		return nil, err
	}

	return f.client.WithAuthenticator(a), nil
}

func (f *Flow) exchange(ctx context.Context, leg, path string, a *Authenticator) (Token, error) {
	resp, err := f.client.WithAuthenticator(a).Execute(ctx, rest.NewRequest(f.cfg.Method, path))
	if err != nil {
		return Token{}, err
	}

	if !resp.IsSuccess() {
		return Token{}, &rest.StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	t, err := ParseTokenResponse(resp.Body)
	if err != nil {
		return Token{}, err
	}

	f.logger.WithFields(logrus.Fields{
		"leg":    leg,
		"status": resp.StatusCode,
	}).Debug("oauth1 token received")

	return t, nil
}
