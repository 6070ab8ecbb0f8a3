package profile

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/restkit/auth"
	"github.com/vitalvas/restkit/authtest"
	"github.com/vitalvas/restkit/oauth1"
	"github.com/vitalvas/restkit/rest"
)

func TestParse(t *testing.T) {
	t.Run("full profile", func(t *testing.T) {
		p, err := Parse([]byte(`
base_url: https://api.example.com/v1/
timeout: 30s
user_agent: restkit-test
rate_limit: 2.5
rate_burst: 3
cookie_jar: true
ignore_status: true
headers:
  Accept: application/json
auth:
  scheme: Digest
  username: user
  password: passwd
`))
		require.NoError(t, err)

		assert.Equal(t, "https://api.example.com/v1/", p.BaseURL)
		assert.Equal(t, 30*time.Second, p.Timeout)
		assert.Equal(t, "restkit-test", p.UserAgent)
		assert.InDelta(t, 2.5, p.RateLimit, 0.0001)
		assert.Equal(t, 3, p.RateBurst)
		assert.True(t, p.CookieJar)
		assert.True(t, p.IgnoreStatus)
		assert.Equal(t, map[string]string{"Accept": "application/json"}, p.Headers)
		assert.Equal(t, SchemeDigest, p.Auth.Scheme)
	})

	t.Run("empty document", func(t *testing.T) {
		p, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, SchemeNone, p.Auth.Scheme)
	})

	t.Run("environment expansion", func(t *testing.T) {
		t.Setenv("RESTKIT_TEST_SECRET", "s3cret")

		p, err := Parse([]byte("auth:\n  scheme: basic\n  username: foo\n  password: ${RESTKIT_TEST_SECRET}\n"))
		require.NoError(t, err)
		assert.Equal(t, "s3cret", p.Auth.Password)
	})

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "unknown key", data: "base_uri: http://x/\n", wantErr: rest.ErrConfiguration},
		{name: "malformed yaml", data: "headers: [\n", wantErr: rest.ErrConfiguration},
		{name: "unknown scheme", data: "auth:\n  scheme: ntlm\n", wantErr: rest.ErrConfiguration},
		{name: "negative timeout", data: "timeout: -1s\n", wantErr: rest.ErrConfiguration},
		{name: "negative rate limit", data: "rate_limit: -1\n", wantErr: rest.ErrConfiguration},
		{name: "basic without username", data: "auth:\n  scheme: basic\n", wantErr: rest.ErrMissingCredentials},
		{name: "oauth1 without consumer key", data: "auth:\n  scheme: oauth1\n", wantErr: rest.ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("error names the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("auth:\n  scheme: ntlm\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("relative private key", func(t *testing.T) {
		dir := t.TempDir()
		writeKey(t, filepath.Join(dir, "consumer.pem"))

		path := filepath.Join(dir, "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  scheme: oauth1
  oauth1:
    consumer_key: key
    signature_method: rsa-sha1
    private_key_file: consumer.pem
`), 0o600))

		p, err := Load(path)
		require.NoError(t, err)

		a, err := p.Authenticator(nil)
		require.NoError(t, err)
		assert.IsType(t, &oauth1.Authenticator{}, a)
	})
}

func writeKey(t *testing.T, path string) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return key
}

func TestAuthenticator(t *testing.T) {
	tests := []struct {
		name     string
		auth     Auth
		wantType any
		wantErr  error
	}{
		{name: "none", auth: Auth{}},
		{name: "basic", auth: Auth{Scheme: SchemeBasic, Username: "u"}, wantType: &auth.Basic{}},
		{name: "hidden basic", auth: Auth{Scheme: SchemeHiddenBasic, Username: "u"}, wantType: &auth.HiddenBasic{}},
		{name: "digest", auth: Auth{Scheme: SchemeDigest, Username: "u"}, wantType: &auth.Digest{}},
		{
			name:     "oauth1 plaintext as parameters",
			auth:     Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{ConsumerKey: "k", SignatureMethod: "PLAINTEXT", ParameterHandling: "parameters"}},
			wantType: &oauth1.Authenticator{},
		},
		{
			name:    "oauth1 unknown signature method",
			auth:    Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{ConsumerKey: "k", SignatureMethod: "HMAC-SHA256"}},
			wantErr: rest.ErrConfiguration,
		},
		{
			name:    "oauth1 unknown parameter handling",
			auth:    Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{ConsumerKey: "k", ParameterHandling: "body"}},
			wantErr: rest.ErrConfiguration,
		},
		{
			name:    "oauth1 rsa without key",
			auth:    Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{ConsumerKey: "k", SignatureMethod: "RSA-SHA1"}},
			wantErr: rest.ErrInvalidKey,
		},
		{
			name:    "oauth1 without settings",
			auth:    Auth{Scheme: SchemeOAuth1},
			wantErr: rest.ErrMissingCredentials,
		},
		{name: "unknown", auth: Auth{Scheme: "ntlm"}, wantErr: rest.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{Auth: tt.auth}

			a, err := p.Authenticator(nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)

			if tt.wantType == nil {
				assert.Nil(t, a)
				return
			}

			assert.IsType(t, tt.wantType, a)
		})
	}
}

func TestNewClient(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	t.Run("basic with default headers", func(t *testing.T) {
		mw, err := authtest.BasicMiddleware(authtest.BasicConfig{Credentials: map[string]string{"foo": "bar"}})
		require.NoError(t, err)

		srv := httptest.NewServer(mw(authtest.EchoHandler()))
		defer srv.Close()

		p := &Profile{
			BaseURL:   srv.URL,
			UserAgent: "restkit-test",
			Headers:   map[string]string{"X-Api-Version": "2", "Accept": "application/json"},
			Auth:      Auth{Scheme: SchemeBasic, Username: "foo", Password: "bar"},
		}

		c, err := p.NewClient(logger)
		require.NoError(t, err)

		resp, err := c.Execute(context.Background(), rest.NewRequest(http.MethodGet, "get"))
		require.NoError(t, err)

		var echo authtest.Echo
		require.NoError(t, resp.DecodeJSON(&echo))
		assert.Equal(t, "2", echo.Headers["X-Api-Version"])
		assert.Equal(t, "application/json", echo.Headers["Accept"])
		assert.Equal(t, "restkit-test", echo.Headers["User-Agent"])
	})

	t.Run("digest", func(t *testing.T) {
		ds, err := authtest.NewDigestServer(authtest.DigestConfig{Credentials: map[string]string{"user": "passwd"}})
		require.NoError(t, err)

		srv := httptest.NewServer(ds.Middleware(authtest.EchoHandler()))
		defer srv.Close()

		p := &Profile{BaseURL: srv.URL, Auth: Auth{Scheme: SchemeDigest, Username: "user", Password: "passwd"}}

		c, err := p.NewClient(logger)
		require.NoError(t, err)

		for range 3 {
			_, err := c.Execute(context.Background(), rest.NewRequest(http.MethodGet, "digest"))
			require.NoError(t, err)
		}

		assert.Equal(t, 1, ds.Challenges())
		assert.Equal(t, 3, ds.Accepted())
	})

	t.Run("oauth1 rsa-sha1", func(t *testing.T) {
		dir := t.TempDir()
		key := writeKey(t, filepath.Join(dir, "consumer.pem"))

		provider, err := authtest.NewOAuth1Server(authtest.OAuth1Config{ConsumerKey: "key", RSAPublicKey: &key.PublicKey})
		require.NoError(t, err)
		provider.IssueAccessToken(oauth1.Token{Token: "access", Secret: "access-secret"})

		srv := httptest.NewServer(provider.Handler())
		defer srv.Close()

		p := &Profile{
			BaseURL: srv.URL,
			Auth: Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{
				ConsumerKey:     "key",
				Token:           "access",
				TokenSecret:     "access-secret",
				SignatureMethod: oauth1.MethodRSASHA1,
				PrivateKeyFile:  "consumer.pem",
			}},
			dir: dir,
		}

		c, err := p.NewClient(logger)
		require.NoError(t, err)

		req := rest.NewRequest(http.MethodPost, "echo")
		req.AddParameter("b", "2", rest.GetOrPost)
		req.AddParameter("a", "1 one", rest.GetOrPost)

		resp, err := c.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "a=1+one&b=2", resp.BodyString())
	})

	t.Run("oauth1 wrong token secret", func(t *testing.T) {
		provider, err := authtest.NewOAuth1Server(authtest.OAuth1Config{ConsumerKey: "key", ConsumerSecret: "secret"})
		require.NoError(t, err)
		provider.IssueAccessToken(oauth1.Token{Token: "access", Secret: "access-secret"})

		srv := httptest.NewServer(provider.Handler())
		defer srv.Close()

		p := &Profile{
			BaseURL: srv.URL,
			Auth: Auth{Scheme: SchemeOAuth1, OAuth1: &OAuth1{
				ConsumerKey:    "key",
				ConsumerSecret: "secret",
				Token:          "access",
				TokenSecret:    "wrong",
			}},
		}

		c, err := p.NewClient(logger)
		require.NoError(t, err)

		_, err = c.Execute(context.Background(), rest.NewRequest(http.MethodGet, "echo"))

		var statusErr *rest.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})

	t.Run("configuration error", func(t *testing.T) {
		_, err := (&Profile{Auth: Auth{Scheme: "ntlm"}}).NewClient(logger)
		assert.ErrorIs(t, err, rest.ErrConfiguration)
	})
}
