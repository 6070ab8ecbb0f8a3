// Package auth provides rest.Authenticator implementations for HTTP Basic,
// hidden Basic and HTTP Digest authentication.
//
// Basic sends RFC 7617 credentials in the Authorization header:
//
//	client, err := rest.NewClient(rest.ClientConfig{
//	    BaseURL:       "https://api.example.com/",
//	    Authenticator: auth.NewBasic("foo", "bar"), // Authorization: Basic Zm9vOmJhcg==
//	})
//
// HiddenBasic sends the same credentials as request parameters, for
// services that emulate a login form.
//
// Digest implements the RFC 2617 challenge-response cycle with MD5 and
// MD5-sess, qop auth and auth-int. It is a rest.ChallengeHandler: the client
// sends the first request without credentials, answers the 401 challenge
// once, and later requests reuse the nonce with an incremented nonce count.
//
//	digest, err := auth.NewDigest(auth.DigestConfig{
//	    Username: "user",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
package auth
