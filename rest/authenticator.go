package rest

// Authenticator attaches credentials to an outgoing request.
//
// Authenticate is called once before every attempt. prior is nil for the
// first attempt and holds the 401 response when the client re-attempts a
// request after a challenge. Implementations mutate req through its
// parameter API (headers, query or body parameters) and may use c to
// resolve the final URL or encoded body.
//
// Implementations must be safe for concurrent use.
type Authenticator interface {
	Authenticate(c *Client, req *Request, prior *Response) error
}

// ChallengeHandler is implemented by authenticators that answer a server
// challenge. When an attempt returns 401 and CanHandleChallenge reports
// true, the client calls Authenticate again with the 401 response and
// re-sends the request once.
type ChallengeHandler interface {
	Authenticator
	CanHandleChallenge(resp *Response) bool
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(c *Client, req *Request, prior *Response) error

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(c *Client, req *Request, prior *Response) error {
	return f(c, req, prior)
}
