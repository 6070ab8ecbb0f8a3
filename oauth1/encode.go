package oauth1

import "strings"

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes s per RFC 5849 Section 3.6: every byte outside the
// RFC 3986 unreserved set is encoded with uppercase hex digits.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}

	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}

		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}

	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	default:
		return false
	}
}
