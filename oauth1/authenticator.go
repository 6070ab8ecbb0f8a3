package oauth1

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitalvas/restkit/rest"
)

// Version is the oauth_version value.
const Version = "1.0"

// ParameterHandling selects where the protocol parameters are sent.
type ParameterHandling int

const (
	// HeaderAuthorization sends them in an Authorization: OAuth header.
	HeaderAuthorization ParameterHandling = iota

	// AsParameters sends them as request parameters: in the form body for
	// URL-encoded requests, in the query string otherwise.
	AsParameters
)

// String returns the name used in configuration files.
func (h ParameterHandling) String() string {
	switch h {
	case HeaderAuthorization:
		return "header"
	case AsParameters:
		return "parameters"
	default:
		return "unknown"
	}
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithSignatureProvider sets the signature method. Default: HMACSHA1.
func WithSignatureProvider(p SignatureProvider) Option {
	return func(a *Authenticator) {
		a.provider = p
	}
}

// WithParameterHandling sets where protocol parameters are sent.
// Default: HeaderAuthorization.
func WithParameterHandling(h ParameterHandling) Option {
	return func(a *Authenticator) {
		a.handling = h
	}
}

// WithRealm sets the realm of the Authorization header.
func WithRealm(realm string) Option {
	return func(a *Authenticator) {
		a.realm = realm
	}
}

// WithVerifier sets oauth_verifier for the access token request.
func WithVerifier(verifier string) Option {
	return func(a *Authenticator) {
		a.verifier = verifier
	}
}

// WithRand sets the source of nonces. Default: crypto/rand.
func WithRand(r io.Reader) Option {
	return func(a *Authenticator) {
		a.rand = r
	}
}

// WithClock sets the source of timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// Authenticator signs requests with OAuth 1.0a (RFC 5849). It is stateless
// apart from its configuration and safe for concurrent use.
type Authenticator struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string
	callback       string
	verifier       string
	realm          string

	provider SignatureProvider
	handling ParameterHandling
	rand     io.Reader
	now      func() time.Time
}

// ForRequestToken returns an authenticator for the temporary credential
// request. An empty callback is sent as "oob".
func ForRequestToken(consumerKey, consumerSecret, callback string, opts ...Option) (*Authenticator, error) {
	a, err := newAuthenticator(consumerKey, consumerSecret, opts)
	if err != nil {
		return nil, err
	}

	a.callback = callback
	if a.callback == "" {
		a.callback = "oob"
	}

	return a, nil
}

// ForAccessToken returns an authenticator for the token request that
// exchanges requestToken for an access token. Pass the verifier with
// WithVerifier.
func ForAccessToken(consumerKey, consumerSecret string, requestToken Token, opts ...Option) (*Authenticator, error) {
	a, err := newAuthenticator(consumerKey, consumerSecret, opts)
	if err != nil {
		return nil, err
	}

	if requestToken.Token == "" {
		return nil, fmt.Errorf("%w: request token must not be empty", rest.ErrMissingCredentials)
	}

	a.token = requestToken.Token
	a.tokenSecret = requestToken.Secret

	return a, nil
}

// ForProtectedResource returns an authenticator for resource requests made
// with an access token. An empty access token yields two-legged signing
// with consumer credentials only.
func ForProtectedResource(consumerKey, consumerSecret string, access Token, opts ...Option) (*Authenticator, error) {
	a, err := newAuthenticator(consumerKey, consumerSecret, opts)
	if err != nil {
		return nil, err
	}

	a.token = access.Token
	a.tokenSecret = access.Secret

	return a, nil
}

func newAuthenticator(consumerKey, consumerSecret string, opts []Option) (*Authenticator, error) {
	if consumerKey == "" {
		return nil, fmt.Errorf("%w: consumer key", rest.ErrMissingCredentials)
	}

	a := &Authenticator{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		provider:       HMACSHA1{},
		handling:       HeaderAuthorization,
		rand:           rand.Reader,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		return nil, rest.ErrNoSignatureProvider
	}

	if a.rand == nil {
		a.rand = rand.Reader
	}

	if a.now == nil {
		a.now = time.Now
	}

	return a, nil
}

// Authenticate signs req and attaches the protocol parameters. Protocol
// parameters left on req from an earlier attempt are replaced.
func (a *Authenticator) Authenticate(c *rest.Client, req *rest.Request, _ *rest.Response) error {
	req.RemoveFunc(func(p rest.Parameter) bool {
		return (p.Kind == rest.GetOrPost || p.Kind == rest.Query) && strings.HasPrefix(p.Name, "oauth_")
	})

	u, err := c.BuildURL(req)
	if err != nil {
		return err
	}

	params := QueryParams(u.RawQuery)

	if !req.IsMultiPart() {
		for _, p := range req.BodyParameters() {
			params = append(params, Param{Key: p.Name, Value: p.StringValue()})
		}
	}

	method := req.Method
	if method == "" {
		method = "GET"
	}

	oauth, err := a.Sign(method, u, params)
	if err != nil {
		return err
	}

	if a.handling == AsParameters {
		kind := rest.GetOrPost
		if req.IsMultiPart() {
			kind = rest.Query
		}

		for _, p := range oauth {
			req.AddParameter(p.Key, p.Value, kind)
		}

		return nil
	}

	req.AddOrUpdateParameter("Authorization", a.Header(oauth), rest.Header)

	return nil
}

// Sign computes the protocol parameters for a request, oauth_signature
// included. params are the query and form parameters of the request; the
// query of u is ignored. The result is deterministic for a given random
// source and clock.
func (a *Authenticator) Sign(method string, u *url.URL, params []Param) ([]Param, error) {
	nonce, err := a.nonce()
	if err != nil {
		return nil, err
	}

	oauth := []Param{
		{Key: "oauth_consumer_key", Value: a.consumerKey},
		{Key: "oauth_nonce", Value: nonce},
		{Key: "oauth_signature_method", Value: a.provider.Method()},
		{Key: "oauth_timestamp", Value: strconv.FormatInt(a.now().Unix(), 10)},
		{Key: "oauth_version", Value: Version},
	}

	if a.token != "" {
		oauth = append(oauth, Param{Key: "oauth_token", Value: a.token})
	}

	if a.callback != "" {
		oauth = append(oauth, Param{Key: "oauth_callback", Value: a.callback})
	}

	if a.verifier != "" {
		oauth = append(oauth, Param{Key: "oauth_verifier", Value: a.verifier})
	}

	all := make([]Param, 0, len(params)+len(oauth))
	all = append(all, params...)
	all = append(all, oauth...)

	base := BaseString(method, u, all)

	signature, err := a.provider.Sign([]byte(base), a.consumerSecret, a.tokenSecret)
	if err != nil {
		return nil, err
	}

	return append(oauth, Param{Key: "oauth_signature", Value: signature}), nil
}

// Header formats protocol parameters as an Authorization header value.
func (a *Authenticator) Header(oauth []Param) string {
	parts := make([]string, 0, len(oauth)+1)

	if a.realm != "" {
		parts = append(parts, `realm="`+Escape(a.realm)+`"`)
	}

	for _, p := range oauth {
		parts = append(parts, Escape(p.Key)+`="`+Escape(p.Value)+`"`)
	}

	return "OAuth " + strings.Join(parts, ", ")
}

// nonce returns a random UUID in hex form.
func (a *Authenticator) nonce() (string, error) {
	id, err := uuid.NewRandomFromReader(a.rand)
	if err != nil {
		return "", fmt.Errorf("oauth1: generate nonce: %w", err)
	}

	return hex.EncodeToString(id[:]), nil
}
