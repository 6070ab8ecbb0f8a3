package auth

import (
	"bytes"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/restkit/rest"
)

func challengeResponse(header string) *rest.Response {
	h := make(http.Header)
	h.Set("WWW-Authenticate", header)

	return &rest.Response{StatusCode: http.StatusUnauthorized, Header: h}
}

func authorizationParams(t *testing.T, req *rest.Request) map[string]string {
	t.Helper()

	p, ok := req.Parameter("Authorization", rest.Header)
	require.True(t, ok)

	scheme, remainder, _ := strings.Cut(p.StringValue(), " ")
	require.Equal(t, "Digest", scheme)

	params, err := ParseAuthParams(remainder)
	require.NoError(t, err)

	return params
}

func TestDigestParamsResponse(t *testing.T) {
	rfc := DigestParams{
		Username:   "Mufasa",
		Password:   "Circle Of Life",
		Realm:      "testrealm@host.com",
		Nonce:      "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		Qop:        QopAuth,
		NonceCount: 1,
		Cnonce:     "0a4f113b",
		Method:     http.MethodGet,
		URI:        "/dir/index.html",
	}

	t.Run("rfc 2617 section 3.5", func(t *testing.T) {
		got, err := rfc.Response()
		require.NoError(t, err)
		assert.Equal(t, "6629fae49393a05397450978507c4ef1", got)
	})

	t.Run("explicit md5 matches default", func(t *testing.T) {
		p := rfc
		p.Algorithm = AlgorithmMD5

		got, err := p.Response()
		require.NoError(t, err)
		assert.Equal(t, "6629fae49393a05397450978507c4ef1", got)
	})

	t.Run("nc is eight hex digits", func(t *testing.T) {
		p := rfc
		p.NonceCount = 255
		assert.Equal(t, "000000ff", p.NC())
	})

	t.Run("variants differ", func(t *testing.T) {
		base, err := rfc.Response()
		require.NoError(t, err)

		variants := map[string]func(*DigestParams){
			"md5-sess": func(p *DigestParams) { p.Algorithm = AlgorithmMD5Sess },
			"auth-int": func(p *DigestParams) { p.Qop = QopAuthInt; p.Body = []byte("a=1") },
			"no qop":   func(p *DigestParams) { p.Qop = "" },
			"nc":       func(p *DigestParams) { p.NonceCount = 2 },
		}

		for name, mutate := range variants {
			t.Run(name, func(t *testing.T) {
				p := rfc
				mutate(&p)

				got, err := p.Response()
				require.NoError(t, err)
				assert.NotEqual(t, base, got)
			})
		}
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		p := rfc
		p.Algorithm = "SHA-256"

		_, err := p.Response()
		assert.ErrorIs(t, err, rest.ErrUnsupportedAlgorithm)
	})

	t.Run("md5-sess without qop", func(t *testing.T) {
		p := rfc
		p.Algorithm = AlgorithmMD5Sess
		p.Qop = ""

		_, err := p.Response()
		assert.ErrorIs(t, err, rest.ErrUnsupportedAlgorithm)
	})

	t.Run("authorization header", func(t *testing.T) {
		p := rfc
		p.Opaque = "5ccc069c403ebaf9f0171e9517f40e41"

		header, err := p.Authorization()
		require.NoError(t, err)

		assert.Equal(t, `Digest username="Mufasa", realm="testrealm@host.com", `+
			`nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", uri="/dir/index.html", `+
			`response="6629fae49393a05397450978507c4ef1", opaque="5ccc069c403ebaf9f0171e9517f40e41", `+
			`qop=auth, nc=00000001, cnonce="0a4f113b"`, header)
	})
}

func TestNewDigest(t *testing.T) {
	_, err := NewDigest(DigestConfig{Password: "x"})
	assert.ErrorIs(t, err, rest.ErrMissingCredentials)
}

func TestDigestStateMachine(t *testing.T) {
	c := newTestClient(t)

	d, err := NewDigest(DigestConfig{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Rand:     bytes.NewReader(bytes.Repeat([]byte{0xab}, 1024)),
	})
	require.NoError(t, err)

	assert.Equal(t, NoChallenge, d.State())

	t.Run("no header before a challenge", func(t *testing.T) {
		req := rest.NewRequest(http.MethodGet, "dir/index.html")
		require.NoError(t, d.Authenticate(c, req, nil))

		_, ok := req.Parameter("Authorization", rest.Header)
		assert.False(t, ok)
		assert.Equal(t, NoChallenge, d.State())
	})

	challenge := `Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`

	assert.True(t, d.CanHandleChallenge(challengeResponse(challenge)))
	assert.False(t, d.CanHandleChallenge(challengeResponse(`Basic realm="x"`)))
	assert.False(t, d.CanHandleChallenge(nil))

	t.Run("answers the challenge with nc 1", func(t *testing.T) {
		req := rest.NewRequest(http.MethodGet, "dir/index.html")
		require.NoError(t, d.Authenticate(c, req, challengeResponse(challenge)))

		params := authorizationParams(t, req)
		assert.Equal(t, "Mufasa", params["username"])
		assert.Equal(t, "/dir/index.html", params["uri"])
		assert.Equal(t, "auth", params["qop"])
		assert.Equal(t, "00000001", params["nc"])
		assert.Equal(t, "abababababababab", params["cnonce"])
		assert.Equal(t, "5ccc069c403ebaf9f0171e9517f40e41", params["opaque"])

		expected, err := DigestParams{
			Username:   "Mufasa",
			Password:   "Circle Of Life",
			Realm:      "testrealm@host.com",
			Nonce:      "dcd98b7102dd2f0e8b11d0f600bfb0c093",
			Algorithm:  AlgorithmMD5,
			Qop:        QopAuth,
			NonceCount: 1,
			Cnonce:     params["cnonce"],
			Method:     http.MethodGet,
			URI:        "/dir/index.html",
		}.Response()
		require.NoError(t, err)
		assert.Equal(t, expected, params["response"])

		assert.Equal(t, Authenticated, d.State())
	})

	t.Run("reuses the nonce with the next count", func(t *testing.T) {
		req := rest.NewRequest(http.MethodGet, "dir/index.html")
		require.NoError(t, d.Authenticate(c, req, nil))

		params := authorizationParams(t, req)
		assert.Equal(t, "dcd98b7102dd2f0e8b11d0f600bfb0c093", params["nonce"])
		assert.Equal(t, "00000002", params["nc"])
		assert.Equal(t, uint32(2), d.NonceCount())
	})

	t.Run("stale challenge restarts the count", func(t *testing.T) {
		stale := `Digest realm="testrealm@host.com", qop="auth", nonce="fresh", stale=true`

		req := rest.NewRequest(http.MethodGet, "dir/index.html")
		require.NoError(t, d.Authenticate(c, req, challengeResponse(stale)))

		params := authorizationParams(t, req)
		assert.Equal(t, "fresh", params["nonce"])
		assert.Equal(t, "00000001", params["nc"])
		assert.NotContains(t, params, "opaque")
	})

	t.Run("malformed challenge", func(t *testing.T) {
		req := rest.NewRequest(http.MethodGet, "dir/index.html")
		err := d.Authenticate(c, req, challengeResponse(`Digest realm="r"`))
		assert.ErrorIs(t, err, rest.ErrMalformedChallenge)
	})
}

func TestDigestQopVariants(t *testing.T) {
	c := newTestClient(t)

	t.Run("rfc 2069 without qop", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "x")
		require.NoError(t, d.Authenticate(c, req, challengeResponse(`Digest realm="r", nonce="n"`)))

		params := authorizationParams(t, req)
		assert.NotContains(t, params, "qop")
		assert.NotContains(t, params, "nc")
		assert.NotContains(t, params, "cnonce")

		expected, err := DigestParams{
			Username: "u", Password: "p", Realm: "r", Nonce: "n",
			Method: http.MethodGet, URI: "/x",
		}.Response()
		require.NoError(t, err)
		assert.Equal(t, expected, params["response"])
	})

	t.Run("auth-int hashes the encoded body", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodPost, "x")
		req.AddParameter("a", "1", rest.GetOrPost)
		require.NoError(t, d.Authenticate(c, req, challengeResponse(`Digest realm="r", nonce="n", qop="auth-int"`)))

		params := authorizationParams(t, req)
		assert.Equal(t, QopAuthInt, params["qop"])

		expected, err := DigestParams{
			Username: "u", Password: "p", Realm: "r", Nonce: "n",
			Algorithm: AlgorithmMD5, Qop: QopAuthInt, NonceCount: 1, Cnonce: params["cnonce"],
			Method: http.MethodPost, URI: "/x", Body: []byte("a=1"),
		}.Response()
		require.NoError(t, err)
		assert.Equal(t, expected, params["response"])
	})

	t.Run("md5-sess", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "x")
		require.NoError(t, d.Authenticate(c, req, challengeResponse(`Digest realm="r", nonce="n", algorithm=MD5-sess, qop="auth"`)))

		params := authorizationParams(t, req)
		assert.Equal(t, AlgorithmMD5Sess, params["algorithm"])
		assert.NotEmpty(t, params["cnonce"])
	})

	t.Run("unsupported qop", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		err = d.Authenticate(c, rest.NewRequest(http.MethodGet, "x"), challengeResponse(`Digest realm="r", nonce="n", qop="auth-conf"`))
		assert.ErrorIs(t, err, rest.ErrUnsupportedAlgorithm)
	})

	t.Run("md5-sess without qop", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "x")
		err = d.Authenticate(c, req, challengeResponse(`Digest realm="r", nonce="n", algorithm=MD5-sess`))
		assert.ErrorIs(t, err, rest.ErrUnsupportedAlgorithm)
		assert.Equal(t, NoChallenge, d.State())

		_, ok := req.Parameter("Authorization", rest.Header)
		assert.False(t, ok)
	})
}

func TestDigestChallengeSelection(t *testing.T) {
	c := newTestClient(t)

	multi := func(headers ...string) *rest.Response {
		h := make(http.Header)
		for _, v := range headers {
			h.Add("WWW-Authenticate", v)
		}

		return &rest.Response{StatusCode: http.StatusUnauthorized, Header: h}
	}

	t.Run("first usable challenge is adopted", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "x")
		require.NoError(t, d.Authenticate(c, req, multi(
			`Basic realm="r"`,
			`Digest realm="r", nonce="sha", algorithm=SHA-256, qop="auth"`,
			`Digest realm="r", nonce="md5", algorithm=MD5, qop="auth"`,
		)))

		params := authorizationParams(t, req)
		assert.Equal(t, "md5", params["nonce"])
		assert.Equal(t, AlgorithmMD5, params["algorithm"])
	})

	t.Run("first error when nothing is usable", func(t *testing.T) {
		d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
		require.NoError(t, err)

		err = d.Authenticate(c, rest.NewRequest(http.MethodGet, "x"), multi(
			`Digest realm="r", nonce="sha", algorithm=SHA-256`,
			`Digest realm="r"`,
		))
		assert.ErrorIs(t, err, rest.ErrUnsupportedAlgorithm)
	})
}

func TestDigestConcurrentNonceCounts(t *testing.T) {
	c := newTestClient(t)

	d, err := NewDigest(DigestConfig{Username: "u", Password: "p"})
	require.NoError(t, err)

	require.NoError(t, d.Authenticate(c, rest.NewRequest(http.MethodGet, "x"), challengeResponse(`Digest realm="r", nonce="n", qop="auth"`)))

	const workers = 64

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ncs []uint32
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			req := rest.NewRequest(http.MethodGet, "x")
			if err := d.Authenticate(c, req, nil); err != nil {
				t.Error(err)
				return
			}

			p, _ := req.Parameter("Authorization", rest.Header)
			_, remainder, _ := strings.Cut(p.StringValue(), " ")

			params, err := ParseAuthParams(remainder)
			if err != nil {
				t.Error(err)
				return
			}

			nc, err := strconv.ParseUint(params["nc"], 16, 32)
			if err != nil {
				t.Error(err)
				return
			}

			mu.Lock()
			ncs = append(ncs, uint32(nc))
			mu.Unlock()
		}()
	}

	wg.Wait()

	slices.Sort(ncs)
	require.Len(t, ncs, workers)

	for i, nc := range ncs {
		assert.Equal(t, uint32(i+2), nc)
	}
}

func TestGenerateCnonce(t *testing.T) {
	got, err := GenerateCnonce(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, err)
	assert.Equal(t, "0102030405060708", got)

	_, err = GenerateCnonce(bytes.NewReader([]byte{1}))
	assert.Error(t, err)
}

func TestDigestStateString(t *testing.T) {
	assert.Equal(t, "no-challenge", NoChallenge.String())
	assert.Equal(t, "challenge-received", ChallengeReceived.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unknown", DigestState(9).String())
}
