// Package rest builds, encodes and executes requests against REST-style
// HTTP services.
//
// A Request holds a method, a resource template relative to the client base
// URL and an ordered list of parameters. The parameter kind decides where
// each value ends up:
//
//   - GetOrPost: the body for POST, PUT and PATCH, the query string otherwise
//   - Query: the query string
//   - URLSegment: a {name} placeholder in the resource
//   - Body: the body
//   - Header: a request header
//   - File: a multipart file part
//
// # Body Encoding
//
// Body parameters are encoded as application/x-www-form-urlencoded unless
// the request asks for MultiPart or carries a File parameter, in which case
// a multipart/form-data body is produced with a boundary that does not
// occur in any part. A Content-Type header set on the request overrides
// the computed one.
//
//	req := rest.NewRequest(http.MethodPost, "users/{id}/avatar")
//	req.AddURLSegment("id", "42")
//	req.AddParameter("caption", "me", rest.GetOrPost)
//	req.AddFile("avatar", "me.png", data, "image/png")
//
// # Executing Requests
//
//	client, err := rest.NewClient(rest.ClientConfig{
//	    BaseURL:       "https://api.example.com/v1/",
//	    Authenticator: auth.NewBasic("user", "secret"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Execute(ctx, req)
//
// Authenticators implement Authenticator. Those that answer server
// challenges (HTTP Digest) also implement ChallengeHandler; the client then
// re-sends a request that failed with 401 exactly once.
//
// # Errors
//
// Errors wrap one of ErrConfiguration, ErrProtocol or ErrCrypto. Transport
// errors are returned unchanged.
package rest
