package oauth1

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/restkit/auth"
	"github.com/vitalvas/restkit/rest"
)

var fixedTime = time.Unix(1191242096, 0)

func fixedClock() time.Time { return fixedTime }

func fixedRand() *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte{0x42}, 4096))
}

func newTestClient(t *testing.T) *rest.Client {
	t.Helper()

	c, err := rest.NewClient(rest.ClientConfig{BaseURL: "http://photos.example.net/"})
	require.NoError(t, err)

	return c
}

func headerParams(t *testing.T, req *rest.Request) map[string]string {
	t.Helper()

	p, ok := req.Parameter("Authorization", rest.Header)
	require.True(t, ok)

	scheme, remainder, _ := strings.Cut(p.StringValue(), " ")
	require.Equal(t, "OAuth", scheme)

	raw, err := auth.ParseAuthParams(remainder)
	require.NoError(t, err)

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		decoded, err := url.PathUnescape(v)
		require.NoError(t, err)

		out[k] = decoded
	}

	return out
}

func TestConstructors(t *testing.T) {
	t.Run("missing consumer key", func(t *testing.T) {
		_, err := ForProtectedResource("", "secret", Token{})
		assert.ErrorIs(t, err, rest.ErrMissingCredentials)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := ForRequestToken("key", "secret", "", WithSignatureProvider(nil))
		assert.ErrorIs(t, err, rest.ErrNoSignatureProvider)
	})

	t.Run("access token needs request token", func(t *testing.T) {
		_, err := ForAccessToken("key", "secret", Token{})
		assert.ErrorIs(t, err, rest.ErrMissingCredentials)
	})

	t.Run("request token callback defaults to oob", func(t *testing.T) {
		a, err := ForRequestToken("key", "secret", "")
		require.NoError(t, err)
		assert.Equal(t, "oob", a.callback)
	})

	t.Run("nil rand and clock fall back", func(t *testing.T) {
		a, err := ForProtectedResource("key", "secret", Token{}, WithRand(nil), WithClock(nil))
		require.NoError(t, err)
		assert.NotNil(t, a.rand)
		assert.NotNil(t, a.now)
	})
}

func TestSign(t *testing.T) {
	u, err := url.Parse("http://photos.example.net/photos")
	require.NoError(t, err)

	params := []Param{
		{Key: "file", Value: "vacation.jpg"},
		{Key: "size", Value: "original"},
	}

	newAuth := func(t *testing.T) *Authenticator {
		t.Helper()

		a, err := ForProtectedResource("dpf43f3p2l4k3l03", "kd94hf93k423kf44",
			Token{Token: "nnch734d00sl2jdk", Secret: "pfkkdhi9sl3r4s00"},
			WithRand(fixedRand()), WithClock(fixedClock))
		require.NoError(t, err)

		return a
	}

	t.Run("deterministic for fixed nonce and clock", func(t *testing.T) {
		first, err := newAuth(t).Sign(http.MethodGet, u, params)
		require.NoError(t, err)

		second, err := newAuth(t).Sign(http.MethodGet, u, params)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("protocol parameters", func(t *testing.T) {
		oauth, err := newAuth(t).Sign(http.MethodGet, u, params)
		require.NoError(t, err)

		got := make(map[string]string)
		for _, p := range oauth {
			got[p.Key] = p.Value
		}

		assert.Equal(t, "dpf43f3p2l4k3l03", got["oauth_consumer_key"])
		assert.Equal(t, "nnch734d00sl2jdk", got["oauth_token"])
		assert.Equal(t, "HMAC-SHA1", got["oauth_signature_method"])
		assert.Equal(t, "1191242096", got["oauth_timestamp"])
		assert.Equal(t, "1.0", got["oauth_version"])
		assert.Len(t, got["oauth_nonce"], 32)
		assert.NotContains(t, got, "oauth_callback")
		assert.NotContains(t, got, "oauth_verifier")

		base := BaseString(http.MethodGet, u, append(append([]Param{}, params...), oauth...))
		assert.NoError(t, HMACSHA1{}.Verify([]byte(base), got["oauth_signature"], "kd94hf93k423kf44", "pfkkdhi9sl3r4s00"))
	})

	t.Run("fresh nonce per request", func(t *testing.T) {
		a, err := ForProtectedResource("key", "secret", Token{})
		require.NoError(t, err)

		first, err := a.Sign(http.MethodGet, u, nil)
		require.NoError(t, err)

		second, err := a.Sign(http.MethodGet, u, nil)
		require.NoError(t, err)

		assert.NotEqual(t, first[1].Value, second[1].Value)
	})

	t.Run("nonce source exhausted", func(t *testing.T) {
		a, err := ForProtectedResource("key", "secret", Token{}, WithRand(bytes.NewReader(nil)))
		require.NoError(t, err)

		_, err = a.Sign(http.MethodGet, u, nil)
		assert.Error(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	c := newTestClient(t)
	token := Token{Token: "nnch734d00sl2jdk", Secret: "pfkkdhi9sl3r4s00"}

	verify := func(t *testing.T, method, rawURL string, params []Param, sig string) {
		t.Helper()

		u, err := url.Parse(rawURL)
		require.NoError(t, err)

		base := BaseString(method, u, append(QueryParams(u.RawQuery), params...))
		assert.NoError(t, HMACSHA1{}.Verify([]byte(base), sig, "kd94hf93k423kf44", token.Secret))
	}

	oauthParams := func(m map[string]string) []Param {
		var out []Param
		for k, v := range m {
			out = append(out, Param{Key: k, Value: v})
		}

		return out
	}

	t.Run("header with query parameters", func(t *testing.T) {
		a, err := ForProtectedResource("dpf43f3p2l4k3l03", "kd94hf93k423kf44", token, WithRealm("Photos"))
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "photos")
		req.AddParameter("file", "vacation.jpg", rest.GetOrPost)
		req.AddQueryParameter("size", "original")

		require.NoError(t, a.Authenticate(c, req, nil))

		got := headerParams(t, req)
		assert.Equal(t, "Photos", got["realm"])

		sig := got["oauth_signature"]
		delete(got, "realm")
		verify(t, http.MethodGet, "http://photos.example.net/photos?file=vacation.jpg&size=original", oauthParams(got), sig)
	})

	t.Run("form body parameters are signed", func(t *testing.T) {
		a, err := ForProtectedResource("dpf43f3p2l4k3l03", "kd94hf93k423kf44", token)
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodPost, "echo")
		req.AddParameter("one", "1", rest.GetOrPost)
		req.AddParameter("two", "2", rest.GetOrPost)

		require.NoError(t, a.Authenticate(c, req, nil))

		got := headerParams(t, req)
		sig := got["oauth_signature"]
		params := append(oauthParams(got), Param{Key: "one", Value: "1"}, Param{Key: "two", Value: "2"})
		verify(t, http.MethodPost, "http://photos.example.net/echo", params, sig)
	})

	t.Run("multipart body parameters are not signed", func(t *testing.T) {
		a, err := ForProtectedResource("dpf43f3p2l4k3l03", "kd94hf93k423kf44", token)
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodPost, "upload")
		req.AddParameter("title", "x", rest.GetOrPost)
		req.AddFile("photo", "a.jpg", []byte{1, 2, 3}, "image/jpeg")

		require.NoError(t, a.Authenticate(c, req, nil))

		got := headerParams(t, req)
		sig := got["oauth_signature"]
		verify(t, http.MethodPost, "http://photos.example.net/upload", oauthParams(got), sig)
	})

	t.Run("as parameters", func(t *testing.T) {
		a, err := ForProtectedResource("dpf43f3p2l4k3l03", "kd94hf93k423kf44", token,
			WithParameterHandling(AsParameters))
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodGet, "photos")
		req.AddParameter("file", "vacation.jpg", rest.GetOrPost)

		require.NoError(t, a.Authenticate(c, req, nil))

		_, hasHeader := req.Parameter("Authorization", rest.Header)
		assert.False(t, hasHeader)

		u, err := c.BuildURL(req)
		require.NoError(t, err)

		query := u.Query()
		assert.Equal(t, "nnch734d00sl2jdk", query.Get("oauth_token"))
		require.NotEmpty(t, query.Get("oauth_signature"))

		var signed []Param
		for k, v := range query {
			if k != "oauth_signature" && k != "file" {
				signed = append(signed, Param{Key: k, Value: v[0]})
			}
		}

		verify(t, http.MethodGet, "http://photos.example.net/photos?file=vacation.jpg", signed, query.Get("oauth_signature"))
	})

	t.Run("re-authentication replaces protocol parameters", func(t *testing.T) {
		a, err := ForProtectedResource("key", "secret", Token{}, WithParameterHandling(AsParameters))
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodPost, "echo")
		req.AddParameter("one", "1", rest.GetOrPost)

		require.NoError(t, a.Authenticate(c, req, nil))
		first := len(req.Parameters())

		require.NoError(t, a.Authenticate(c, req, nil))
		assert.Equal(t, first, len(req.Parameters()))
	})

	t.Run("header format", func(t *testing.T) {
		a, err := ForProtectedResource("key", "secret", Token{}, WithRealm("http://sp.example.com/"))
		require.NoError(t, err)

		header := a.Header([]Param{{Key: "oauth_consumer_key", Value: "0685bd9184jfhq22"}, {Key: "oauth_signature", Value: "wOJIO9A2W5mFwDgiDvZbTSMK/PY="}})
		assert.Equal(t, `OAuth realm="http%3A%2F%2Fsp.example.com%2F", oauth_consumer_key="0685bd9184jfhq22", oauth_signature="wOJIO9A2W5mFwDgiDvZbTSMK%2FPY%3D"`, header)
	})
}

func TestParameterHandlingString(t *testing.T) {
	assert.Equal(t, "header", HeaderAuthorization.String())
	assert.Equal(t, "parameters", AsParameters.String())
	assert.Equal(t, "unknown", ParameterHandling(5).String())
}
