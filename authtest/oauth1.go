package authtest

import (
	"crypto/rsa"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/vitalvas/restkit/auth"
	"github.com/vitalvas/restkit/oauth1"
)

// OAuth1Config configures an OAuth1Server.
type OAuth1Config struct {
	ConsumerKey    string
	ConsumerSecret string

	// RSAPublicKey enables RSA-SHA1 signatures.
	RSAPublicKey *rsa.PublicKey

	// Verifier is returned by the authorize endpoint. Default: random.
	Verifier string
}

type issuedToken struct {
	secret   string
	access   bool
	verifier string
}

// OAuth1Server is an OAuth 1.0a service provider with request_token,
// authorize, access_token and echo endpoints. It verifies every signature
// by rebuilding the base string with the oauth1 package.
//
// The echo endpoint answers with the non-protocol parameters of the
// request as key=value pairs joined by '&' in key order.
type OAuth1Server struct {
	consumerKey    string
	consumerSecret string
	verifier       string
	verifiers      map[string]oauth1.SignatureVerifier

	mu     sync.Mutex
	tokens map[string]*issuedToken
	nonces map[string]struct{}
}

// NewOAuth1Server returns an OAuth1Server.
func NewOAuth1Server(cfg OAuth1Config) (*OAuth1Server, error) {
	if cfg.ConsumerKey == "" {
		return nil, ErrNoAuthSource
	}

	s := &OAuth1Server{
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		verifier:       cfg.Verifier,
		verifiers: map[string]oauth1.SignatureVerifier{
			oauth1.MethodHMACSHA1:  oauth1.HMACSHA1{},
			oauth1.MethodPlainText: oauth1.PlainText{},
		},
		tokens: make(map[string]*issuedToken),
		nonces: make(map[string]struct{}),
	}

	if cfg.RSAPublicKey != nil {
		v, err := oauth1.NewRSASHA1Verifier(cfg.RSAPublicKey)
		if err != nil {
			return nil, err
		}

		s.verifiers[oauth1.MethodRSASHA1] = v
	}

	if s.verifier == "" {
		s.verifier = randomHex(8)
	}

	return s, nil
}

// IssueAccessToken registers pre-authorized token credentials accepted by
// the echo endpoint.
func (s *OAuth1Server) IssueAccessToken(t oauth1.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[t.Token] = &issuedToken{secret: t.Secret, access: true}
}

// Handler returns the provider endpoints:
//
//	/request_token  issues temporary credentials
//	/authorize      returns oauth_verifier for ?oauth_token=...
//	/access_token   exchanges authorized temporary credentials
//	/echo           echoes parameters of requests signed with an access token
func (s *OAuth1Server) Handler() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/request_token", s.requestToken)
	m.HandleFunc("/authorize", s.authorize)
	m.HandleFunc("/access_token", s.accessToken)
	m.HandleFunc("/echo", s.echo)

	return m
}

func (s *OAuth1Server) requestToken(w http.ResponseWriter, r *http.Request) {
	_, err := s.authenticate(r, func(p map[string]string) (string, error) {
		if p["oauth_callback"] == "" {
			return "", fmt.Errorf("missing oauth_callback")
		}

		return "", nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	t := oauth1.Token{
		Token:  randomHex(8),
		Secret: randomHex(8),
		Extra:  map[string]string{"oauth_callback_confirmed": "true"},
	}

	s.mu.Lock()
	s.tokens[t.Token] = &issuedToken{secret: t.Secret, verifier: s.verifier}
	s.mu.Unlock()

	writeToken(w, t)
}

func (s *OAuth1Server) authorize(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("oauth_token")

	s.mu.Lock()
	issued, ok := s.tokens[token]
	s.mu.Unlock()

	if !ok || issued.access {
		http.Error(w, "unknown token", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	_, _ = w.Write([]byte("oauth_token=" + url.QueryEscape(token) + "&oauth_verifier=" + url.QueryEscape(issued.verifier)))
}

func (s *OAuth1Server) accessToken(w http.ResponseWriter, r *http.Request) {
	var requestToken string

	_, err := s.authenticate(r, func(p map[string]string) (string, error) {
		requestToken = p["oauth_token"]

		s.mu.Lock()
		defer s.mu.Unlock()

		issued, ok := s.tokens[requestToken]
		if !ok || issued.access {
			return "", fmt.Errorf("unknown request token")
		}

		if p["oauth_verifier"] != issued.verifier {
			return "", fmt.Errorf("invalid verifier")
		}

		return issued.secret, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	t := oauth1.Token{Token: randomHex(8), Secret: randomHex(8)}

	s.mu.Lock()
	delete(s.tokens, requestToken)
	s.tokens[t.Token] = &issuedToken{secret: t.Secret, access: true}
	s.mu.Unlock()

	writeToken(w, t)
}

func (s *OAuth1Server) echo(w http.ResponseWriter, r *http.Request) {
	params, err := s.authenticate(r, func(p map[string]string) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		issued, ok := s.tokens[p["oauth_token"]]
		if !ok || !issued.access {
			return "", fmt.Errorf("unknown access token")
		}

		return issued.secret, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var echoed []oauth1.Param
	for _, p := range params {
		if !strings.HasPrefix(p.Key, "oauth_") {
			echoed = append(echoed, p)
		}
	}

	slices.SortStableFunc(echoed, func(a, b oauth1.Param) int {
		return strings.Compare(a.Key, b.Key)
	})

	pairs := make([]string, len(echoed))
	for i, p := range echoed {
		pairs[i] = url.QueryEscape(p.Key) + "=" + url.QueryEscape(p.Value)
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(strings.Join(pairs, "&")))
}

// authenticate verifies the signature of r. tokenSecret checks the
// protocol parameters and returns the token secret to verify with.
func (s *OAuth1Server) authenticate(r *http.Request, tokenSecret func(map[string]string) (string, error)) ([]oauth1.Param, error) {
	params, err := requestParams(r)
	if err != nil {
		return nil, err
	}

	protocol := make(map[string]string)
	for _, p := range params {
		if strings.HasPrefix(p.Key, "oauth_") {
			protocol[p.Key] = p.Value
		}
	}

	if protocol["oauth_consumer_key"] != s.consumerKey {
		return nil, fmt.Errorf("unknown consumer key")
	}

	if v := protocol["oauth_version"]; v != "" && v != oauth1.Version {
		return nil, fmt.Errorf("unsupported version %q", v)
	}

	verifier, ok := s.verifiers[protocol["oauth_signature_method"]]
	if !ok {
		return nil, fmt.Errorf("unsupported signature method %q", protocol["oauth_signature_method"])
	}

	secret, err := tokenSecret(protocol)
	if err != nil {
		return nil, err
	}

	base := oauth1.BaseString(r.Method, requestURL(r), params)
	if err := verifier.Verify([]byte(base), protocol["oauth_signature"], s.consumerSecret, secret); err != nil {
		return nil, err
	}

	replayKey := protocol["oauth_timestamp"] + ":" + protocol["oauth_nonce"]

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.nonces[replayKey]; seen {
		return nil, fmt.Errorf("nonce already used")
	}

	s.nonces[replayKey] = struct{}{}

	return params, nil
}

// requestParams collects the parameters of r that take part in the
// signature: Authorization header, query and URL-encoded form body.
func requestParams(r *http.Request) ([]oauth1.Param, error) {
	params := oauth1.QueryParams(r.URL.RawQuery)

	if header := r.Header.Get("Authorization"); header != "" {
		scheme, remainder, _ := strings.Cut(header, " ")
		if !strings.EqualFold(scheme, "OAuth") {
			return nil, fmt.Errorf("unsupported authorization scheme %q", scheme)
		}

		fields, err := auth.ParseAuthParams(remainder)
		if err != nil {
			return nil, err
		}

		for k, v := range fields {
			if k == "realm" {
				continue
			}

			if decoded, err := url.PathUnescape(v); err == nil {
				v = decoded
			}

			params = append(params, oauth1.Param{Key: k, Value: v})
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" && r.Body != nil {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}

		for k, values := range r.PostForm {
			for _, v := range values {
				params = append(params, oauth1.Param{Key: k, Value: v})
			}
		}
	}

	return params, nil
}

func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return &url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawPath: r.URL.RawPath}
}

func writeToken(w http.ResponseWriter, t oauth1.Token) {
	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	_, _ = w.Write([]byte(t.Encode()))
}
