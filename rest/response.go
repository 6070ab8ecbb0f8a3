package rest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// URL is the URL the request was sent to.
	URL *url.URL
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Challenges returns the WWW-Authenticate header values whose scheme
// matches scheme, case-insensitively.
func (r *Response) Challenges(scheme string) []string {
	var out []string
	for _, v := range r.Header.Values("WWW-Authenticate") {
		name, _, _ := strings.Cut(strings.TrimSpace(v), " ")
		if strings.EqualFold(name, scheme) {
			out = append(out, v)
		}
	}

	return out
}
