package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the request timeout of the default HTTP client.
const DefaultTimeout = 30 * time.Second

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the URL request resources are resolved against. It may be
	// empty when every request uses an absolute resource.
	BaseURL string

	// HTTPClient sends requests. When nil, an *http.Client over a clone of
	// http.DefaultTransport (or Transport, when set) is used.
	HTTPClient Doer

	// Transport configures proxy, TLS and pooling of the default HTTP
	// client. Ignored when HTTPClient is set.
	Transport *http.Transport

	// Timeout of the default HTTP client. Defaults to DefaultTimeout.
	Timeout time.Duration

	// CookieJar enables pass-through cookie storage on the default HTTP
	// client, scoped with the public suffix list.
	CookieJar bool

	// Authenticator, when set, is applied to every request.
	Authenticator Authenticator

	// DefaultParameters are added to every request that has no parameter
	// of the same name and kind.
	DefaultParameters []Parameter

	// UserAgent is sent unless the request sets its own User-Agent header.
	UserAgent string

	// RateLimit caps outgoing attempts per second. Zero disables limiting.
	RateLimit rate.Limit

	// RateBurst is the limiter burst size. Defaults to 1.
	RateBurst int

	// IgnoreResponseStatusCode disables the StatusError returned for
	// non-2xx responses.
	IgnoreResponseStatusCode bool

	// Logger receives debug output. Defaults to a discarding logger.
	Logger logrus.FieldLogger
}

// Client executes Requests against a base URL. It is safe for concurrent
// use.
type Client struct {
	baseURL       *url.URL
	doer          Doer
	authenticator Authenticator
	defaults      []Parameter
	userAgent     string
	ignoreStatus  bool
	limiter       *rate.Limiter
	logger        logrus.FieldLogger
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	c := &Client{
		authenticator: cfg.Authenticator,
		defaults:      cfg.DefaultParameters,
		userAgent:     cfg.UserAgent,
		ignoreStatus:  cfg.IgnoreResponseStatusCode,
		logger:        cfg.Logger,
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
		}

		if !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("%w: base url must be absolute", ErrInvalidBaseURL)
		}

		c.baseURL = u
	}

	if c.logger == nil {
		c.logger = discardLogger()
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	c.doer = cfg.HTTPClient
	if c.doer == nil {
		hc, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}

		c.doer = hc
	}

	return c, nil
}

func newHTTPClient(cfg ClientConfig) (*http.Client, error) {
	var rt http.RoundTripper
	if cfg.Transport != nil {
		rt = cfg.Transport
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}

	if cfg.CookieJar {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}

		hc.Jar = jar
	}

	return hc, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}

// Authenticator returns the configured authenticator, which may be nil.
func (c *Client) Authenticator() Authenticator {
	return c.authenticator
}

// Logger returns the client logger.
func (c *Client) Logger() logrus.FieldLogger {
	return c.logger
}

// WithAuthenticator returns a copy of c that uses a. The copy shares the
// HTTP client, rate limiter and logger with c.
func (c *Client) WithAuthenticator(a Authenticator) *Client {
	clone := *c
	clone.authenticator = a

	return &clone
}

// BuildURL returns the absolute URL of req: the base URL joined with the
// resolved resource, followed by the query parameters in insertion order.
func (c *Client) BuildURL(req *Request) (*url.URL, error) {
	resource, err := req.ResolveResource()
	if err != nil {
		return nil, err
	}

	ref, err := url.Parse(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	var u *url.URL

	switch {
	case ref.IsAbs():
		u = ref
	case c.baseURL == nil:
		return nil, fmt.Errorf("%w: relative resource %q without base url", ErrInvalidBaseURL, resource)
	default:
		base := *c.baseURL
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
			if base.RawPath != "" {
				base.RawPath += "/"
			}
		}

		ref.Path = strings.TrimPrefix(ref.Path, "/")
		ref.RawPath = strings.TrimPrefix(ref.RawPath, "/")
		u = base.ResolveReference(ref)
	}

	if params := req.QueryParameters(); len(params) > 0 {
		encoded := string(EncodeForm(params))
		if u.RawQuery == "" {
			u.RawQuery = encoded
		} else {
			u.RawQuery += "&" + encoded
		}
	}

	return u, nil
}

// NewHTTPRequest converts req into an *http.Request: URL, headers and
// encoded body. A Content-Type header set on req takes precedence over the
// computed one.
func (c *Client) NewHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := c.BuildURL(req)
	if err != nil {
		return nil, err
	}

	content, err := req.Content()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if content != nil {
		body = bytes.NewReader(content.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), u.String(), body)
	if err != nil {
		return nil, err
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	userAgentSet := false
	for _, p := range req.parameters {
		if p.Kind != Header {
			continue
		}

		value := p.StringValue()
		if !httpguts.ValidHeaderFieldName(p.Name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, p.Name)
		}

		if strings.EqualFold(p.Name, "User-Agent") && !userAgentSet {
			httpReq.Header.Del("User-Agent")
			userAgentSet = true
		}

		if strings.EqualFold(p.Name, "Host") {
			httpReq.Host = value
			continue
		}

		httpReq.Header.Add(p.Name, value)
	}

	if content != nil && content.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", content.ContentType)
	}

	return httpReq, nil
}

// Execute sends req and reads the response.
//
// The caller's request is not modified: authenticators work on a clone.
// When an attempt returns 401 and the authenticator implements
// ChallengeHandler and accepts the challenge, the request is
// re-authenticated and sent once more. Non-2xx responses are returned
// together with a *StatusError unless IgnoreResponseStatusCode is set.
// Transport errors are returned as-is.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request must not be nil", ErrConfiguration)
	}

	work := req.Clone()
	for _, p := range c.defaults {
		if _, ok := work.Parameter(p.Name, p.Kind); !ok {
			work.Add(p)
		}
	}

	resp, err := c.attempt(ctx, work, nil, 1)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if handler, ok := c.authenticator.(ChallengeHandler); ok && handler.CanHandleChallenge(resp) {
			resp, err = c.attempt(ctx, work, resp, 2)
			if err != nil {
				return nil, err
			}
		}
	}

	if !c.ignoreStatus && !resp.IsSuccess() {
		return resp, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return resp, nil
}

func (c *Client) attempt(ctx context.Context, req *Request, prior *Response, n int) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if c.authenticator != nil {
		if err := c.authenticator.Authenticate(c, req, prior); err != nil {
			return nil, err
		}
	}

	httpReq, err := c.NewHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithFields(logrus.Fields{
		"method":  httpReq.Method,
		"url":     redactURL(httpReq.URL),
		"attempt": n,
	})

	start := time.Now()

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		log.WithError(redactError(err)).Debug("request failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status":   httpResp.StatusCode,
		"duration": time.Since(start),
	}).Debug("request completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       body,
		URL:        httpReq.URL,
	}, nil
}

// redactURL formats u for logs. Query parameters may carry credentials or
// signatures, so their values are masked and only the names are kept.
func redactURL(u *url.URL) string {
	clone := *u
	clone.User = nil

	if clone.RawQuery != "" {
		pairs := strings.Split(clone.RawQuery, "&")
		for i, pair := range pairs {
			name, _, _ := strings.Cut(pair, "=")
			pairs[i] = name + "=xxxxx"
		}

		clone.RawQuery = strings.Join(pairs, "&")
	}

	return clone.String()
}

// redactError drops the request URL embedded in *url.Error values.
func redactError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}

	return err
}
