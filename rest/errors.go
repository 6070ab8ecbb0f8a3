package rest

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by restkit packages (except
// transport errors, which pass through unchanged) wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	// ErrConfiguration is the category of errors caused by an incomplete or
	// inconsistent client, request or authenticator setup.
	ErrConfiguration = errors.New("rest: configuration error")

	// ErrProtocol is the category of errors caused by a peer that does not
	// follow the expected wire format.
	ErrProtocol = errors.New("rest: protocol error")

	// ErrCrypto is the category of errors raised by signing or hashing.
	ErrCrypto = errors.New("rest: crypto error")
)

// Configuration errors.
var (
	// ErrMissingCredentials is returned when an authenticator has no
	// username, consumer key or comparable identity configured.
	ErrMissingCredentials = fmt.Errorf("%w: credentials must not be empty", ErrConfiguration)

	// ErrNoSignatureProvider is returned when an OAuth1 authenticator has
	// no signature provider.
	ErrNoSignatureProvider = fmt.Errorf("%w: signature provider must not be nil", ErrConfiguration)

	// ErrUnresolvedSegment is returned when the resource template references
	// a {name} placeholder without a matching URL segment parameter.
	ErrUnresolvedSegment = fmt.Errorf("%w: unresolved url segment", ErrConfiguration)

	// ErrUnknownSegment is returned when a URL segment parameter has no
	// placeholder in the resource template.
	ErrUnknownSegment = fmt.Errorf("%w: url segment has no placeholder", ErrConfiguration)

	// ErrInvalidSegmentValue is returned when a URL segment value contains
	// a raw URL delimiter.
	ErrInvalidSegmentValue = fmt.Errorf("%w: url segment value contains a reserved character", ErrConfiguration)

	// ErrInvalidHeader is returned for header parameters whose name or value
	// is not valid on the wire.
	ErrInvalidHeader = fmt.Errorf("%w: invalid header parameter", ErrConfiguration)

	// ErrInvalidParameter is returned for parameters with an empty name or
	// an unknown kind.
	ErrInvalidParameter = fmt.Errorf("%w: invalid parameter", ErrConfiguration)

	// ErrConflictingBody is returned when a raw body is combined with file
	// parameters.
	ErrConflictingBody = fmt.Errorf("%w: raw body cannot be combined with file parameters", ErrConfiguration)

	// ErrInvalidBaseURL is returned when the client base URL or the
	// resolved request URL cannot be parsed.
	ErrInvalidBaseURL = fmt.Errorf("%w: invalid url", ErrConfiguration)
)

// Protocol errors.
var (
	// ErrMalformedChallenge is returned when a WWW-Authenticate header
	// cannot be parsed.
	ErrMalformedChallenge = fmt.Errorf("%w: malformed authentication challenge", ErrProtocol)

	// ErrUnsupportedAlgorithm is returned when a challenge requests a hash
	// algorithm or quality of protection this package does not implement.
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported challenge algorithm", ErrProtocol)

	// ErrMalformedTokenResponse is returned when an OAuth1 token endpoint
	// answers with something other than &-joined key=value pairs carrying a
	// token and its secret.
	ErrMalformedTokenResponse = fmt.Errorf("%w: malformed token response", ErrProtocol)

	// ErrUnexpectedNewline is returned when an OAuth1 token response
	// contains a raw line break.
	ErrUnexpectedNewline = fmt.Errorf("%w: unexpected newline in token response", ErrMalformedTokenResponse)
)

// Crypto errors.
var (
	// ErrInvalidKey is returned when key material is missing, undecodable
	// or unusable for the requested algorithm.
	ErrInvalidKey = fmt.Errorf("%w: invalid key material", ErrCrypto)

	// ErrSignatureInvalid is returned by signature verifiers.
	ErrSignatureInvalid = fmt.Errorf("%w: signature verification failed", ErrCrypto)
)

// StatusError is returned by Client.Execute when the server answers with a
// non-2xx status and the client does not ignore response status codes. The
// response is returned alongside the error.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "rest: unexpected response status: " + e.Status
	}

	return fmt.Sprintf("rest: unexpected response status: %d", e.StatusCode)
}
