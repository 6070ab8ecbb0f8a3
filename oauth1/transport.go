package oauth1

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/vitalvas/restkit/rest"
)

// Transport is an http.RoundTripper that signs outgoing requests with an
// Authenticator and sends the protocol parameters in the Authorization
// header. It lets a plain *http.Client call OAuth 1.0a protected resources.
//
// URL-encoded form bodies are included in the signature; other bodies are
// not.
type Transport struct {
	base          http.RoundTripper
	authenticator *Authenticator
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used.
func NewTransport(base *http.Transport, a *Authenticator) *Transport {
	var rt http.RoundTripper
	if base != nil {
		rt = base
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base:          rt,
		authenticator: a,
	}
}

// RoundTrip signs a clone of req and delegates to the base transport. The
// caller's request is left untouched. The request body is closed on every
// path, including errors.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.authenticator == nil {
		closeBody(req)
		return nil, fmt.Errorf("%w: transport has no authenticator", rest.ErrConfiguration)
	}

	clone := req.Clone(req.Context())

	params := QueryParams(clone.URL.RawQuery)

	if isFormBody(clone) {
		body, err := readBody(req, clone)
		if err != nil {
			return nil, err
		}

		params = append(params, QueryParams(string(body))...)
	}

	method := clone.Method
	if method == "" {
		method = http.MethodGet
	}

	oauth, err := t.authenticator.Sign(method, clone.URL, params)
	if err != nil {
		closeBody(clone)
		return nil, err
	}

	clone.Header.Set("Authorization", t.authenticator.Header(oauth))

	return t.base.RoundTrip(clone)
}

func isFormBody(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return false
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))

	return mediaType == "application/x-www-form-urlencoded"
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

// readBody returns the body of req and gives clone a fresh reader over it.
// The body of req is closed in all cases.
func readBody(req, clone *http.Request) ([]byte, error) {
	defer closeBody(req)

	rc := req.Body

	if req.GetBody != nil {
		copied, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		defer copied.Close()

		rc = copied
	}

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))

	return body, nil
}
