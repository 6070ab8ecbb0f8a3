package oauth1

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vitalvas/restkit/rest"
)

// Token is an OAuth1 token credential: a request token or an access token.
type Token struct {
	Token  string
	Secret string

	// Extra holds the remaining response fields, such as
	// oauth_callback_confirmed.
	Extra map[string]string
}

// ParseTokenResponse parses a token endpoint response body of the form
// oauth_token=T&oauth_token_secret=S[&...] (RFC 5849 Section 2.1). Values
// are URL-decoded. A raw line break anywhere in the body fails with
// rest.ErrUnexpectedNewline.
func ParseTokenResponse(body []byte) (Token, error) {
	s := string(body)
	if strings.ContainsAny(s, "\r\n") {
		return Token{}, rest.ErrUnexpectedNewline
	}

	var t Token

	for pair := range strings.SplitSeq(s, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return Token{}, fmt.Errorf("%w: field %q has no value", rest.ErrMalformedTokenResponse, pair)
		}

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %w", rest.ErrMalformedTokenResponse, err)
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %w", rest.ErrMalformedTokenResponse, err)
		}

		switch key {
		case "oauth_token":
			t.Token = value
		case "oauth_token_secret":
			t.Secret = value
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]string)
			}

			t.Extra[key] = value
		}
	}

	if t.Token == "" {
		return Token{}, fmt.Errorf("%w: missing oauth_token", rest.ErrMalformedTokenResponse)
	}

	if t.Secret == "" {
		return Token{}, fmt.Errorf("%w: missing oauth_token_secret", rest.ErrMalformedTokenResponse)
	}

	return t, nil
}

// Encode returns t in token response form. Extra fields follow in key
// order.
func (t Token) Encode() string {
	v := url.Values{}
	for k, val := range t.Extra {
		v.Set(k, val)
	}

	head := "oauth_token=" + url.QueryEscape(t.Token) + "&oauth_token_secret=" + url.QueryEscape(t.Secret)
	if len(v) == 0 {
		return head
	}

	return head + "&" + v.Encode()
}
