package rest

import (
	"fmt"
	"net/url"
	"strings"
)

// segmentDelimiters are the RFC 3986 gen-delims a segment value may not
// carry unescaped. ':' is allowed because it is legal inside a path segment.
const segmentDelimiters = "/?#[]@"

// ResolveResource substitutes every {name} placeholder in the resource
// template with the matching URLSegment parameter. Values are path-escaped
// before the first '?' of the template and query-escaped after it.
//
// It returns ErrUnresolvedSegment for a placeholder without a value,
// ErrUnknownSegment for a segment parameter without a placeholder and
// ErrInvalidSegmentValue for values carrying a raw URL delimiter.
func (r *Request) ResolveResource() (string, error) {
	segments := make(map[string]string)
	for _, p := range r.parameters {
		if p.Kind == URLSegment {
			segments[p.Name] = p.StringValue()
		}
	}

	used := make(map[string]bool, len(segments))

	var b strings.Builder
	b.Grow(len(r.Resource))

	tmpl := r.Resource
	inQuery := false

	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}

		closing := strings.IndexByte(tmpl[open:], '}')
		if closing < 0 {
			b.WriteString(tmpl)
			break
		}

		literal := tmpl[:open]
		if strings.IndexByte(literal, '?') >= 0 {
			inQuery = true
		}

		name := tmpl[open+1 : open+closing]

		value, ok := segments[name]
		if !ok {
			return "", fmt.Errorf("%w: {%s}", ErrUnresolvedSegment, name)
		}

		if strings.ContainsAny(value, segmentDelimiters) {
			return "", fmt.Errorf("%w: {%s}", ErrInvalidSegmentValue, name)
		}

		b.WriteString(literal)
		if inQuery {
			b.WriteString(url.QueryEscape(value))
		} else {
			b.WriteString(url.PathEscape(value))
		}

		used[name] = true
		tmpl = tmpl[open+closing+1:]
	}

	for name := range segments {
		if !used[name] {
			return "", fmt.Errorf("%w: %s", ErrUnknownSegment, name)
		}
	}

	return b.String(), nil
}
