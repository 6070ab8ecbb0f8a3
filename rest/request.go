package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// ContentCollectionMode selects the framing of body parameters.
type ContentCollectionMode int

const (
	// URLEncoded frames body parameters as application/x-www-form-urlencoded.
	URLEncoded ContentCollectionMode = iota

	// MultiPart frames body parameters as multipart/form-data.
	MultiPart
)

// String returns the name of the mode.
func (m ContentCollectionMode) String() string {
	if m == MultiPart {
		return "multipart"
	}

	return "urlencoded"
}

// Request describes a call against a resource relative to the client base
// URL. A Request is not safe for concurrent mutation; Client.Execute works
// on a clone, so one Request may be executed concurrently.
type Request struct {
	// Method is the HTTP method. Defaults to GET when empty.
	Method string

	// Resource is the path template, relative to the client base URL. It
	// may contain {name} placeholders resolved from URLSegment parameters,
	// in the path as well as in a literal query part.
	Resource string

	// ContentCollectionMode selects the body framing. File parameters
	// force MultiPart regardless of this field.
	ContentCollectionMode ContentCollectionMode

	// Rand is the random source for multipart boundaries. Defaults to
	// crypto/rand.
	Rand io.Reader

	parameters      []Parameter
	body            []byte
	bodyContentType string
	boundary        string
}

// NewRequest returns a Request for method and resource.
func NewRequest(method, resource string) *Request {
	return &Request{
		Method:   method,
		Resource: resource,
	}
}

// method returns the effective HTTP method.
func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}

	return strings.ToUpper(r.Method)
}

// Parameters returns a copy of all parameters in insertion order.
func (r *Request) Parameters() []Parameter {
	return slices.Clone(r.parameters)
}

// Parameter returns the first parameter with the given name and kind.
func (r *Request) Parameter(name string, kind ParameterKind) (Parameter, bool) {
	for _, p := range r.parameters {
		if p.matches(name, kind) {
			return p, true
		}
	}

	return Parameter{}, false
}

// Add appends p. For kinds that do not repeat (everything except Query and
// Header) an existing parameter with the same name is replaced instead.
func (r *Request) Add(p Parameter) *Request {
	if !p.Kind.repeatable() {
		return r.AddOrUpdate(p)
	}

	r.parameters = append(r.parameters, p)

	return r
}

// AddOrUpdate replaces every parameter with the same name and kind by p,
// keeping the position of the first one. It appends p when none exists.
func (r *Request) AddOrUpdate(p Parameter) *Request {
	idx := -1
	kept := r.parameters[:0]

	for _, existing := range r.parameters {
		if existing.matches(p.Name, p.Kind) {
			if idx < 0 {
				idx = len(kept)
				kept = append(kept, p)
			}

			continue
		}

		kept = append(kept, existing)
	}

	r.parameters = kept
	if idx < 0 {
		r.parameters = append(r.parameters, p)
	}

	return r
}

// Remove deletes every parameter with the given name and kind.
func (r *Request) Remove(name string, kind ParameterKind) *Request {
	r.parameters = slices.DeleteFunc(r.parameters, func(p Parameter) bool {
		return p.matches(name, kind)
	})

	return r
}

// RemoveFunc deletes every parameter for which fn returns true.
func (r *Request) RemoveFunc(fn func(Parameter) bool) *Request {
	r.parameters = slices.DeleteFunc(r.parameters, fn)

	return r
}

// AddParameter adds a string parameter of the given kind.
func (r *Request) AddParameter(name, value string, kind ParameterKind) *Request {
	return r.Add(Parameter{Name: name, Value: []byte(value), Kind: kind})
}

// AddOrUpdateParameter adds or replaces a string parameter of the given kind.
func (r *Request) AddOrUpdateParameter(name, value string, kind ParameterKind) *Request {
	return r.AddOrUpdate(Parameter{Name: name, Value: []byte(value), Kind: kind})
}

// AddHeader adds a request header. Header names are case-insensitive.
func (r *Request) AddHeader(name, value string) *Request {
	return r.AddParameter(name, value, Header)
}

// AddQueryParameter appends a query string parameter.
func (r *Request) AddQueryParameter(name, value string) *Request {
	return r.AddParameter(name, value, Query)
}

// AddURLSegment sets the value substituted for {name} in the resource.
func (r *Request) AddURLSegment(name, value string) *Request {
	return r.AddParameter(name, value, URLSegment)
}

// AddFile attaches content as a multipart file part. An empty contentType
// is sent as application/octet-stream.
func (r *Request) AddFile(name, fileName string, content []byte, contentType string) *Request {
	return r.Add(Parameter{
		Name:        name,
		Value:       content,
		Kind:        File,
		FileName:    fileName,
		ContentType: contentType,
	})
}

// SetBody sets a raw request body. Body parameters are moved to the query
// string while a raw body is set.
func (r *Request) SetBody(body []byte, contentType string) *Request {
	r.body = body
	r.bodyContentType = contentType

	return r
}

// SetJSONBody marshals v and sets it as the raw body with an
// application/json content type.
func (r *Request) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rest: marshal json body: %w", err)
	}

	r.SetBody(data, "application/json")

	return nil
}

// HasRawBody reports whether a raw body was set with SetBody.
func (r *Request) HasRawBody() bool {
	return r.body != nil
}

// IsMultiPart reports whether the body will be framed as multipart.
func (r *Request) IsMultiPart() bool {
	if r.ContentCollectionMode == MultiPart {
		return true
	}

	return slices.ContainsFunc(r.parameters, func(p Parameter) bool {
		return p.Kind == File
	})
}

// BodyParameters returns the parameters that are encoded into the body,
// in insertion order. It is empty while a raw body is set.
func (r *Request) BodyParameters() []Parameter {
	if r.HasRawBody() {
		return nil
	}

	hasBody := methodHasBody(r.method())

	var out []Parameter
	for _, p := range r.parameters {
		switch {
		case p.Kind == Body, p.Kind == File:
			out = append(out, p)
		case p.Kind == GetOrPost && hasBody:
			out = append(out, p)
		}
	}

	return out
}

// QueryParameters returns the parameters appended to the query string, in
// insertion order.
func (r *Request) QueryParameters() []Parameter {
	toQuery := !methodHasBody(r.method())
	raw := r.HasRawBody()

	var out []Parameter
	for _, p := range r.parameters {
		switch {
		case p.Kind == Query:
			out = append(out, p)
		case p.Kind == GetOrPost && (toQuery || raw):
			out = append(out, p)
		case p.Kind == Body && raw:
			out = append(out, p)
		}
	}

	return out
}

// Headers returns the header parameters as an http.Header.
func (r *Request) Headers() http.Header {
	h := make(http.Header)
	for _, p := range r.parameters {
		if p.Kind == Header {
			h.Add(p.Name, p.StringValue())
		}
	}

	return h
}

// Validate checks that every parameter has a name and a known kind.
func (r *Request) Validate() error {
	for _, p := range r.parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: empty name for %s parameter", ErrInvalidParameter, p.Kind)
		}

		if p.Kind < GetOrPost || p.Kind > File {
			return fmt.Errorf("%w: %q has unknown kind %d", ErrInvalidParameter, p.Name, int(p.Kind))
		}
	}

	return nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	clone := *r

	clone.parameters = make([]Parameter, len(r.parameters))
	for i, p := range r.parameters {
		p.Value = slices.Clone(p.Value)
		clone.parameters[i] = p
	}

	if r.body != nil {
		clone.body = slices.Clone(r.body)
	}

	return &clone
}
