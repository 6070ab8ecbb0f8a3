// Package authtest provides in-process HTTP servers for exercising restkit
// clients: Basic and hidden Basic middleware, a Digest server with nonce
// count tracking and stale nonces, an OAuth 1.0a provider that verifies
// signatures, and an echo handler in the style of httpbin.
//
//	digest, err := authtest.NewDigestServer(authtest.DigestConfig{
//	    Credentials: map[string]string{"user": "passwd"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := httptest.NewServer(digest.Middleware(authtest.EchoHandler()))
//	defer srv.Close()
package authtest
