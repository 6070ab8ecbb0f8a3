package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/restkit/auth"
	"github.com/vitalvas/restkit/oauth1"
	"github.com/vitalvas/restkit/rest"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Authentication schemes.
const (
	SchemeNone        = ""
	SchemeBasic       = "basic"
	SchemeHiddenBasic = "hidden-basic"
	SchemeDigest      = "digest"
	SchemeOAuth1      = "oauth1"
)

// Profile describes a client: target, transport settings and credentials.
type Profile struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	CookieJar    bool `yaml:"cookie_jar"`
	IgnoreStatus bool `yaml:"ignore_status"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers"`

	Auth Auth `yaml:"auth"`

	// dir resolves relative file references.
	dir string
}

// Auth selects and configures the authenticator.
type Auth struct {
	Scheme        string  `yaml:"scheme"`
	Username      string  `yaml:"username"`
	Password      string  `yaml:"password"`
	UsernameField string  `yaml:"username_field"`
	PasswordField string  `yaml:"password_field"`
	OAuth1        *OAuth1 `yaml:"oauth1"`
}

// OAuth1 holds OAuth 1.0a consumer and token credentials.
type OAuth1 struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	Token             string `yaml:"token"`
	TokenSecret       string `yaml:"token_secret"`
	SignatureMethod   string `yaml:"signature_method"`
	PrivateKeyFile    string `yaml:"private_key_file"`
	ParameterHandling string `yaml:"parameter_handling"`
	Realm             string `yaml:"realm"`
}

// Load reads and parses the profile at path. Relative file references in
// the profile are resolved against the directory of path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.dir = filepath.Dir(path)

	return p, nil
}

// Parse decodes a YAML profile. ${VAR} references are expanded from the
// environment before decoding; unknown keys are rejected.
func Parse(data []byte) (*Profile, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: profile: %w", rest.ErrConfiguration, err)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (p *Profile) validate() error {
	p.Auth.Scheme = strings.ToLower(strings.TrimSpace(p.Auth.Scheme))

	switch p.Auth.Scheme {
	case SchemeNone:
	case SchemeBasic, SchemeHiddenBasic, SchemeDigest:
		if p.Auth.Username == "" {
			return fmt.Errorf("%w: auth.username", rest.ErrMissingCredentials)
		}
	case SchemeOAuth1:
		if p.Auth.OAuth1 == nil || p.Auth.OAuth1.ConsumerKey == "" {
			return fmt.Errorf("%w: auth.oauth1.consumer_key", rest.ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown auth scheme %q", rest.ErrConfiguration, p.Auth.Scheme)
	}

	if p.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", rest.ErrConfiguration)
	}

	if p.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", rest.ErrConfiguration)
	}

	return nil
}

// Authenticator builds the configured authenticator. It returns nil for
// profiles without authentication.
func (p *Profile) Authenticator(logger logrus.FieldLogger) (rest.Authenticator, error) {
	a := p.Auth

	switch a.Scheme {
	case SchemeNone:
		return nil, nil

	case SchemeBasic:
		return auth.NewBasic(a.Username, a.Password), nil

	case SchemeHiddenBasic:
		return auth.NewHiddenBasic(auth.HiddenBasicConfig{
			Username:      a.Username,
			Password:      a.Password,
			UsernameField: a.UsernameField,
			PasswordField: a.PasswordField,
		})

	case SchemeDigest:
		return auth.NewDigest(auth.DigestConfig{
			Username: a.Username,
			Password: a.Password,
			Logger:   logger,
		})

	case SchemeOAuth1:
		return p.oauth1Authenticator()

	default:
		return nil, fmt.Errorf("%w: unknown auth scheme %q", rest.ErrConfiguration, a.Scheme)
	}
}

func (p *Profile) oauth1Authenticator() (*oauth1.Authenticator, error) {
	cfg := p.Auth.OAuth1
	if cfg == nil {
		return nil, fmt.Errorf("%w: auth.oauth1", rest.ErrMissingCredentials)
	}

	provider, err := p.signatureProvider(cfg)
	if err != nil {
		return nil, err
	}

	opts := []oauth1.Option{oauth1.WithSignatureProvider(provider)}

	switch strings.ToLower(cfg.ParameterHandling) {
	case "", oauth1.HeaderAuthorization.String():
	case oauth1.AsParameters.String():
		opts = append(opts, oauth1.WithParameterHandling(oauth1.AsParameters))
	default:
		return nil, fmt.Errorf("%w: unknown parameter_handling %q", rest.ErrConfiguration, cfg.ParameterHandling)
	}

	if cfg.Realm != "" {
		opts = append(opts, oauth1.WithRealm(cfg.Realm))
	}

	access := oauth1.Token{Token: cfg.Token, Secret: cfg.TokenSecret}

	return oauth1.ForProtectedResource(cfg.ConsumerKey, cfg.ConsumerSecret, access, opts...)
}

func (p *Profile) signatureProvider(cfg *OAuth1) (oauth1.SignatureProvider, error) {
	switch strings.ToUpper(cfg.SignatureMethod) {
	case "", oauth1.MethodHMACSHA1:
		return oauth1.HMACSHA1{}, nil

	case oauth1.MethodPlainText:
		return oauth1.PlainText{}, nil

	case oauth1.MethodRSASHA1:
		if cfg.PrivateKeyFile == "" {
			return nil, fmt.Errorf("%w: auth.oauth1.private_key_file is required for RSA-SHA1", rest.ErrInvalidKey)
		}

		data, err := os.ReadFile(p.resolve(cfg.PrivateKeyFile))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rest.ErrInvalidKey, err)
		}

		key, err := oauth1.ParseRSAPrivateKeyPEM(data)
		if err != nil {
			return nil, err
		}

		return oauth1.NewRSASHA1(key)

	default:
		return nil, fmt.Errorf("%w: signature method %q", rest.ErrConfiguration, cfg.SignatureMethod)
	}
}

func (p *Profile) resolve(path string) string {
	if filepath.IsAbs(path) || p.dir == "" {
		return path
	}

	return filepath.Join(p.dir, path)
}

// ClientConfig returns the rest.ClientConfig described by the profile.
func (p *Profile) ClientConfig(logger logrus.FieldLogger) (rest.ClientConfig, error) {
	a, err := p.Authenticator(logger)
	if err != nil {
		return rest.ClientConfig{}, err
	}

	cfg := rest.ClientConfig{
		BaseURL:                  p.BaseURL,
		Timeout:                  p.Timeout,
		UserAgent:                p.UserAgent,
		CookieJar:                p.CookieJar,
		IgnoreResponseStatusCode: p.IgnoreStatus,
		RateLimit:                rate.Limit(p.RateLimit),
		RateBurst:                p.RateBurst,
		Logger:                   logger,
	}

	if a != nil {
		cfg.Authenticator = a
	}

	for _, name := range slices.Sorted(maps.Keys(p.Headers)) {
		cfg.DefaultParameters = append(cfg.DefaultParameters, rest.Parameter{
			Name:  name,
			Value: []byte(p.Headers[name]),
			Kind:  rest.Header,
		})
	}

	return cfg, nil
}

// NewClient builds a rest.Client from the profile.
func (p *Profile) NewClient(logger logrus.FieldLogger) (*rest.Client, error) {
	cfg, err := p.ClientConfig(logger)
	if err != nil {
		return nil, err
	}

	return rest.NewClient(cfg)
}
