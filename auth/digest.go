package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/restkit/rest"
)

// cnonceSize is the number of random bytes in a client nonce.
const cnonceSize = 8

// DigestState is the position of a Digest authenticator in the
// challenge-response cycle.
type DigestState int

const (
	// NoChallenge: no challenge seen yet, requests go out without a header.
	NoChallenge DigestState = iota

	// ChallengeReceived: a challenge is cached but no response was sent
	// for its nonce yet.
	ChallengeReceived

	// Authenticated: responses were sent for the cached nonce.
	Authenticated
)

// String returns the name of the state.
func (s DigestState) String() string {
	switch s {
	case NoChallenge:
		return "no-challenge"
	case ChallengeReceived:
		return "challenge-received"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// DigestConfig configures a Digest authenticator.
type DigestConfig struct {
	Username string
	Password string

	// Rand is the source of client nonces. Defaults to crypto/rand.
	Rand io.Reader

	// Logger receives debug output. Defaults to the client logger.
	Logger logrus.FieldLogger
}

// Digest implements HTTP Digest access authentication per RFC 2617.
//
// The first request goes out without credentials. When the server answers
// 401 with a Digest challenge, the client calls Authenticate again with
// that response; the challenge is cached and every later request reuses
// its nonce with the next nonce count. A new challenge (stale or
// otherwise) replaces the cached one and restarts the count at 1.
//
// Digest is safe for concurrent use: nonce counts are allocated under a
// lock, so concurrent requests sharing a nonce get distinct, gap-free
// values.
type Digest struct {
	username string
	password string
	rand     io.Reader
	logger   logrus.FieldLogger

	mu         sync.Mutex
	challenge  *Challenge
	nonceCount uint32
}

// NewDigest returns a Digest authenticator.
func NewDigest(cfg DigestConfig) (*Digest, error) {
	if cfg.Username == "" {
		return nil, rest.ErrMissingCredentials
	}

	source := cfg.Rand
	if source == nil {
		source = rand.Reader
	}

	return &Digest{
		username: cfg.Username,
		password: cfg.Password,
		rand:     source,
		logger:   cfg.Logger,
	}, nil
}

// State returns the current state.
func (d *Digest) State() DigestState {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.challenge == nil:
		return NoChallenge
	case d.nonceCount == 0:
		return ChallengeReceived
	default:
		return Authenticated
	}
}

// NonceCount returns the last nonce count sent for the cached nonce.
func (d *Digest) NonceCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.nonceCount
}

// CanHandleChallenge reports whether resp is a 401 carrying a Digest
// challenge.
func (d *Digest) CanHandleChallenge(resp *rest.Response) bool {
	return resp != nil && resp.StatusCode == 401 && len(resp.Challenges("Digest")) > 0
}

// Authenticate attaches an Authorization: Digest header once a challenge
// is known. With a 401 prior response it first adopts the new challenge.
func (d *Digest) Authenticate(c *rest.Client, req *rest.Request, prior *rest.Response) error {
	if d.username == "" {
		return rest.ErrMissingCredentials
	}

	if prior != nil && d.CanHandleChallenge(prior) {
		ch, err := selectChallenge(prior.Challenges("Digest"))
		if err != nil {
			return err
		}

		d.adopt(ch)
		d.log(c).WithFields(logrus.Fields{
			"realm": ch.Realm,
			"stale": ch.Stale,
		}).Debug("digest challenge received")
	}

	ch, nc, ok := d.next()
	if !ok {
		return nil
	}

	u, err := c.BuildURL(req)
	if err != nil {
		return err
	}

	qop, err := ch.selectQop()
	if err != nil {
		return err
	}

	params := DigestParams{
		Username:   d.username,
		Password:   d.password,
		Realm:      ch.Realm,
		Nonce:      ch.Nonce,
		Opaque:     ch.Opaque,
		Algorithm:  ch.Algorithm,
		Qop:        qop,
		NonceCount: nc,
		Method:     requestMethod(req),
		URI:        u.RequestURI(),
	}

	if qop != "" {
		cnonce, err := GenerateCnonce(d.rand)
		if err != nil {
			return err
		}

		params.Cnonce = cnonce
	}

	if qop == QopAuthInt {
		content, err := req.Content()
		if err != nil {
			return err
		}

		if content != nil {
			params.Body = content.Body
		}
	}

	header, err := params.Authorization()
	if err != nil {
		return err
	}

	req.AddOrUpdateParameter("Authorization", header, rest.Header)
	d.log(c).WithField("nc", nc).Debug("digest response attached")

	return nil
}

// adopt caches ch and resets the nonce count.
func (d *Digest) adopt(ch *Challenge) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.challenge = ch
	d.nonceCount = 0
}

// next allocates the next nonce count for the cached challenge.
func (d *Digest) next() (*Challenge, uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.challenge == nil {
		return nil, 0, false
	}

	d.nonceCount++

	return d.challenge, d.nonceCount, true
}

func (d *Digest) log(c *rest.Client) logrus.FieldLogger {
	if d.logger != nil {
		return d.logger
	}

	return c.Logger()
}

func requestMethod(req *rest.Request) string {
	if req.Method == "" {
		return "GET"
	}

	return strings.ToUpper(req.Method)
}

// DigestParams are the inputs of a Digest response computation.
type DigestParams struct {
	Username   string
	Password   string
	Realm      string
	Nonce      string
	Opaque     string
	Algorithm  string
	Qop        string
	NonceCount uint32
	Cnonce     string
	Method     string
	URI        string

	// Body is hashed into HA2 when Qop is auth-int.
	Body []byte
}

// NC returns the nonce count as eight lowercase hex digits.
func (p DigestParams) NC() string {
	return fmt.Sprintf("%08x", p.NonceCount)
}

// Response computes the request-digest of RFC 2617 Section 3.2.2.1.
func (p DigestParams) Response() (string, error) {
	ha1 := md5Hex(p.Username + ":" + p.Realm + ":" + p.Password)

	switch p.Algorithm {
	case "", AlgorithmMD5:
	case AlgorithmMD5Sess:
		if p.Qop == "" {
			return "", fmt.Errorf("%w: %s without qop", rest.ErrUnsupportedAlgorithm, AlgorithmMD5Sess)
		}

		ha1 = md5Hex(ha1 + ":" + p.Nonce + ":" + p.Cnonce)
	default:
		return "", fmt.Errorf("%w: %s", rest.ErrUnsupportedAlgorithm, p.Algorithm)
	}

	var ha2 string

	switch p.Qop {
	case "", QopAuth:
		ha2 = md5Hex(p.Method + ":" + p.URI)
	case QopAuthInt:
		ha2 = md5Hex(p.Method + ":" + p.URI + ":" + md5Hex(string(p.Body)))
	default:
		return "", fmt.Errorf("%w: qop %s", rest.ErrUnsupportedAlgorithm, p.Qop)
	}

	if p.Qop == "" {
		return md5Hex(ha1 + ":" + p.Nonce + ":" + ha2), nil
	}

	return md5Hex(strings.Join([]string{ha1, p.Nonce, p.NC(), p.Cnonce, p.Qop, ha2}, ":")), nil
}

// Authorization returns the Authorization header value.
func (p DigestParams) Authorization() (string, error) {
	response, err := p.Response()
	if err != nil {
		return "", err
	}

	parts := []string{
		"username=" + quote(p.Username),
		"realm=" + quote(p.Realm),
		"nonce=" + quote(p.Nonce),
		"uri=" + quote(p.URI),
	}

	if p.Algorithm != "" {
		parts = append(parts, "algorithm="+p.Algorithm)
	}

	parts = append(parts, "response="+quote(response))

	if p.Opaque != "" {
		parts = append(parts, "opaque="+quote(p.Opaque))
	}

	if p.Qop != "" {
		parts = append(parts,
			"qop="+p.Qop,
			"nc="+p.NC(),
			"cnonce="+quote(p.Cnonce),
		)
	}

	return "Digest " + strings.Join(parts, ", "), nil
}

// GenerateCnonce returns a random client nonce read from source.
func GenerateCnonce(source io.Reader) (string, error) {
	b := make([]byte, cnonceSize)
	if _, err := io.ReadFull(source, b); err != nil {
		return "", fmt.Errorf("auth: generate cnonce: %w", err)
	}

	return hex.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))

	return hex.EncodeToString(sum[:])
}
