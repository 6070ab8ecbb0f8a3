package authtest

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/vitalvas/restkit/auth"
)

// DigestConfig configures a DigestServer.
type DigestConfig struct {
	// Realm defaults to "Restricted".
	Realm string

	// Credentials is a static map of username -> password pairs.
	Credentials map[string]string

	// Algorithm is auth.AlgorithmMD5 (default) or auth.AlgorithmMD5Sess.
	Algorithm string

	// Qop lists the offered qop values in order. Default: auth. Set to an
	// empty non-nil slice for RFC 2069 challenges without qop.
	Qop []string

	// Opaque is echoed back by clients. Default: random.
	Opaque string

	// MaxNonceUses makes a nonce stale after that many accepted requests.
	// Zero means nonces never go stale.
	MaxNonceUses int

	// ExtraChallenges are WWW-Authenticate values sent before the Digest
	// challenge, such as an RFC 7616 SHA-256 challenge.
	ExtraChallenges []string
}

type nonceState struct {
	seen  map[uint32]struct{}
	uses  int
	stale bool
}

// DigestServer is an RFC 2617 Digest authentication middleware with
// observable state for tests.
//
// Nonce counts are checked against the set already seen for a nonce rather
// than for strict increase, since concurrent requests may arrive out of
// order.
type DigestServer struct {
	realm       string
	credentials map[string]string
	algorithm   string
	qop         []string
	opaque      string
	maxUses     int

	extraChallenges []string

	mu         sync.Mutex
	nonces     map[string]*nonceState
	challenges int
	accepted   int
}

// NewDigestServer returns a DigestServer.
func NewDigestServer(cfg DigestConfig) (*DigestServer, error) {
	if len(cfg.Credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	s := &DigestServer{
		realm:       cfg.Realm,
		credentials: cfg.Credentials,
		algorithm:   cfg.Algorithm,
		qop:         cfg.Qop,
		opaque:      cfg.Opaque,
		maxUses:     cfg.MaxNonceUses,
		nonces:      make(map[string]*nonceState),

		extraChallenges: cfg.ExtraChallenges,
	}

	if s.realm == "" {
		s.realm = "Restricted"
	}

	if s.algorithm == "" {
		s.algorithm = auth.AlgorithmMD5
	}

	if s.qop == nil {
		s.qop = []string{auth.QopAuth}
	}

	if s.opaque == "" {
		s.opaque = randomHex(16)
	}

	return s, nil
}

// Challenges returns the number of challenges issued.
func (s *DigestServer) Challenges() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.challenges
}

// Accepted returns the number of requests that passed authentication.
func (s *DigestServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// NonceCounts returns the nc values accepted for nonce, in no particular
// order.
func (s *DigestServer) NonceCounts(nonce string) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.nonces[nonce]
	if !ok {
		return nil
	}

	out := make([]uint32, 0, len(st.seen))
	for nc := range st.seen {
		out = append(out, nc)
	}

	return out
}

// ExpireNonces marks every issued nonce stale.
func (s *DigestServer) ExpireNonces() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.nonces {
		st.stale = true
	}
}

// Middleware wraps next with Digest authentication.
func (s *DigestServer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, remainder, _ := strings.Cut(header, " ")

		if !strings.EqualFold(scheme, "Digest") {
			s.challenge(w, false)
			return
		}

		params, err := auth.ParseAuthParams(remainder)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ok, stale := s.verify(r, params)
		if !ok {
			s.challenge(w, stale)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *DigestServer) verify(r *http.Request, params map[string]string) (bool, bool) {
	password, exists := s.credentials[params["username"]]
	if !exists || params["realm"] != s.realm || params["uri"] != r.URL.RequestURI() {
		return false, false
	}

	if params["opaque"] != s.opaque {
		return false, false
	}

	qop := params["qop"]
	if len(s.qop) > 0 && !containsFold(s.qop, qop) {
		return false, false
	}

	var nc uint32

	if qop != "" {
		parsed, err := strconv.ParseUint(params["nc"], 16, 32)
		if err != nil || len(params["nc"]) != 8 {
			return false, false
		}

		nc = uint32(parsed)
	}

	dp := auth.DigestParams{
		Username:   params["username"],
		Password:   password,
		Realm:      s.realm,
		Nonce:      params["nonce"],
		Algorithm:  s.algorithm,
		Qop:        qop,
		NonceCount: nc,
		Cnonce:     params["cnonce"],
		Method:     r.Method,
		URI:        params["uri"],
	}

	if qop == auth.QopAuthInt && r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return false, false
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		dp.Body = body
	}

	expected, err := dp.Response()
	if err != nil || subtle.ConstantTimeCompare([]byte(expected), []byte(params["response"])) != 1 {
		return false, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, known := s.nonces[dp.Nonce]
	if !known {
		return false, false
	}

	if st.stale {
		return false, true
	}

	if qop != "" {
		if _, replay := st.seen[nc]; replay {
			return false, false
		}

		st.seen[nc] = struct{}{}
	}

	st.uses++
	if s.maxUses > 0 && st.uses >= s.maxUses {
		st.stale = true
	}

	s.accepted++

	return true, false
}

func (s *DigestServer) challenge(w http.ResponseWriter, stale bool) {
	nonce := randomHex(16)

	s.mu.Lock()
	s.nonces[nonce] = &nonceState{seen: make(map[uint32]struct{})}
	s.challenges++
	s.mu.Unlock()

	parts := []string{
		fmt.Sprintf("realm=%q", s.realm),
		fmt.Sprintf("nonce=%q", nonce),
		fmt.Sprintf("opaque=%q", s.opaque),
		"algorithm=" + s.algorithm,
	}

	if len(s.qop) > 0 {
		parts = append(parts, fmt.Sprintf("qop=%q", strings.Join(s.qop, ",")))
	}

	if stale {
		parts = append(parts, "stale=true")
	}

	w.Header().Del("WWW-Authenticate")

	for _, extra := range s.extraChallenges {
		w.Header().Add("WWW-Authenticate", extra)
	}

	w.Header().Add("WWW-Authenticate", "Digest "+strings.Join(parts, ", "))
	w.WriteHeader(http.StatusUnauthorized)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}

	return false
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return hex.EncodeToString(b)
}
