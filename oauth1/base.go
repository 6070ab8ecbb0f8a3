package oauth1

import (
	"net"
	"net/url"
	"slices"
	"strings"
)

// Param is a single name/value pair taking part in the signature base
// string. Names may repeat.
type Param struct {
	Key   string
	Value string
}

// NormalizeURL returns the base string URI of u per RFC 5849 Section
// 3.4.1.2: lowercase scheme and host, the default port dropped, the path
// kept as sent, no query and no fragment.
func NormalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path
}

// NormalizeParameters returns the normalized request parameters per RFC
// 5849 Section 3.4.1.3.2: each name and value percent-encoded, sorted by
// encoded name and then encoded value, joined as name=value with '&'.
func NormalizeParameters(params []Param) string {
	encoded := make([]Param, len(params))
	for i, p := range params {
		encoded[i] = Param{Key: Escape(p.Key), Value: Escape(p.Value)}
	}

	slices.SortFunc(encoded, func(a, b Param) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}

		return strings.Compare(a.Value, b.Value)
	})

	var b strings.Builder

	for i, p := range encoded {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}

	return b.String()
}

// BaseString returns the signature base string of RFC 5849 Section 3.4.1.
// params must already include the query parameters of u; the query of u
// itself is ignored. oauth_signature and realm are excluded.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc5849#section-3.4.1
func BaseString(method string, u *url.URL, params []Param) string {
	filtered := make([]Param, 0, len(params))
	for _, p := range params {
		if p.Key == "oauth_signature" || p.Key == "realm" {
			continue
		}

		filtered = append(filtered, p)
	}

	return strings.ToUpper(method) + "&" + Escape(NormalizeURL(u)) + "&" + Escape(NormalizeParameters(filtered))
}

// QueryParams decodes a raw query string into parameters in order.
// Undecodable pairs are kept verbatim.
func QueryParams(rawQuery string) []Param {
	if rawQuery == "" {
		return nil
	}

	var out []Param

	for pair := range strings.SplitSeq(rawQuery, "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")

		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}

		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}

		out = append(out, Param{Key: key, Value: value})
	}

	return out
}
