package auth

import (
	"fmt"
	"strings"

	"github.com/vitalvas/restkit/rest"
)

// Digest hash algorithms per RFC 2617 Section 3.2.1.
const (
	AlgorithmMD5     = "MD5"
	AlgorithmMD5Sess = "MD5-sess"
)

// Quality of protection values per RFC 2617 Section 3.2.1.
const (
	QopAuth    = "auth"
	QopAuthInt = "auth-int"
)

// Challenge is a parsed WWW-Authenticate: Digest header.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc2617#section-3.2.1
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Domain    string
	Algorithm string

	// Qop holds the quality of protection options offered by the server,
	// in server order. Empty for RFC 2069 servers.
	Qop []string

	// Stale reports that the previous nonce expired while the credentials
	// were valid.
	Stale bool
}

// ParseChallenge parses the value of a WWW-Authenticate header carrying a
// Digest challenge.
func ParseChallenge(header string) (*Challenge, error) {
	scheme, remainder, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "Digest") {
		return nil, fmt.Errorf("%w: scheme %q is not Digest", rest.ErrMalformedChallenge, scheme)
	}

	params, err := ParseAuthParams(remainder)
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		Domain:    params["domain"],
		Algorithm: params["algorithm"],
		Stale:     strings.EqualFold(params["stale"], "true"),
	}

	if _, ok := params["realm"]; !ok {
		return nil, fmt.Errorf("%w: missing realm", rest.ErrMalformedChallenge)
	}

	if c.Nonce == "" {
		return nil, fmt.Errorf("%w: missing nonce", rest.ErrMalformedChallenge)
	}

	switch {
	case c.Algorithm == "":
		c.Algorithm = AlgorithmMD5
	case strings.EqualFold(c.Algorithm, AlgorithmMD5):
		c.Algorithm = AlgorithmMD5
	case strings.EqualFold(c.Algorithm, AlgorithmMD5Sess):
		c.Algorithm = AlgorithmMD5Sess
	default:
		return nil, fmt.Errorf("%w: %s", rest.ErrUnsupportedAlgorithm, c.Algorithm)
	}

	if qop := params["qop"]; qop != "" {
		for option := range strings.SplitSeq(qop, ",") {
			if option = strings.TrimSpace(option); option != "" {
				c.Qop = append(c.Qop, option)
			}
		}
	}

	return c, nil
}

// selectQop picks the quality of protection for a response: auth when
// offered, then auth-int, and none for RFC 2069 challenges. MD5-sess needs
// a qop because the cnonce is only sent alongside one.
func (c *Challenge) selectQop() (string, error) {
	if len(c.Qop) == 0 {
		if c.Algorithm == AlgorithmMD5Sess {
			return "", fmt.Errorf("%w: %s without qop", rest.ErrUnsupportedAlgorithm, AlgorithmMD5Sess)
		}

		return "", nil
	}

	for _, want := range []string{QopAuth, QopAuthInt} {
		for _, offered := range c.Qop {
			if strings.EqualFold(offered, want) {
				return want, nil
			}
		}
	}

	return "", fmt.Errorf("%w: qop %s", rest.ErrUnsupportedAlgorithm, strings.Join(c.Qop, ","))
}

// selectChallenge returns the first of the Digest challenge headers that
// parses and can be answered. When none can, the error of the first one is
// returned.
func selectChallenge(headers []string) (*Challenge, error) {
	var firstErr error

	for _, header := range headers {
		ch, err := ParseChallenge(header)
		if err == nil {
			_, err = ch.selectQop()
		}

		if err == nil {
			return ch, nil
		}

		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("%w: no Digest challenge", rest.ErrMalformedChallenge)
	}

	return nil, firstErr
}

// ParseAuthParams parses a comma-separated list of auth-param pairs as used
// by WWW-Authenticate and Authorization headers (RFC 7235 Section 2.1).
// Values may be tokens or quoted strings with backslash escapes. Keys are
// lower-cased.
func ParseAuthParams(s string) (map[string]string, error) {
	params := make(map[string]string)
	i := 0

	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == ',') {
			i++
		}

		if i >= len(s) {
			return params, nil
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: expected key=value at %q", rest.ErrMalformedChallenge, s[i:])
		}

		key := strings.ToLower(strings.TrimSpace(s[i : i+eq]))
		if key == "" || strings.ContainsAny(key, " \t,\"") {
			return nil, fmt.Errorf("%w: invalid parameter name %q", rest.ErrMalformedChallenge, key)
		}

		i += eq + 1
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}

		var value string

		if i < len(s) && s[i] == '"' {
			var b strings.Builder

			i++
			closed := false

			for i < len(s) {
				ch := s[i]
				if ch == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2

					continue
				}

				if ch == '"' {
					closed = true
					i++

					break
				}

				b.WriteByte(ch)
				i++
			}

			if !closed {
				return nil, fmt.Errorf("%w: unterminated quoted string for %q", rest.ErrMalformedChallenge, key)
			}

			value = b.String()
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = len(s) - i
			}

			value = strings.TrimSpace(s[i : i+end])
			i += end
		}

		params[key] = value
	}
}

// quote returns s as an RFC 7230 quoted-string.
func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
