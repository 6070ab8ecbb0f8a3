package rest

import (
	"net/http"
	"strings"
)

// ParameterKind selects where a parameter ends up in the outgoing request.
type ParameterKind int

const (
	// GetOrPost parameters are sent in the body for methods that carry a
	// body and in the query string otherwise.
	GetOrPost ParameterKind = iota

	// Query parameters are always appended to the query string.
	Query

	// URLSegment parameters replace a {name} placeholder in the resource.
	URLSegment

	// Body parameters are always sent in the body.
	Body

	// Header parameters become request headers.
	Header

	// File parameters are sent as multipart file parts.
	File
)

// String returns the name of the parameter kind.
func (k ParameterKind) String() string {
	switch k {
	case GetOrPost:
		return "get-or-post"
	case Query:
		return "query"
	case URLSegment:
		return "url-segment"
	case Body:
		return "body"
	case Header:
		return "header"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

// repeatable reports whether several parameters of this kind may share a
// name.
func (k ParameterKind) repeatable() bool {
	return k == Query || k == Header
}

// Parameter is a single named value attached to a Request.
type Parameter struct {
	Name  string
	Value []byte
	Kind  ParameterKind

	// ContentType is emitted as the part Content-Type in multipart bodies.
	ContentType string

	// FileName is the filename attribute of File parameters.
	FileName string
}

// StringValue returns the parameter value as a string.
func (p Parameter) StringValue() string {
	return string(p.Value)
}

// matches reports whether p has the given name and kind. Header names are
// compared case-insensitively.
func (p Parameter) matches(name string, kind ParameterKind) bool {
	if p.Kind != kind {
		return false
	}

	if kind == Header {
		return strings.EqualFold(p.Name, name)
	}

	return p.Name == name
}

// methodHasBody reports whether GetOrPost parameters go to the body for
// the given method.
func methodHasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
