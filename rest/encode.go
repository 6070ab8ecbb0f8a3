package rest

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	// ContentTypeFormURLEncoded is the content type of URL-encoded bodies.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"

	// defaultFileContentType is used for file parts without a content type.
	defaultFileContentType = "application/octet-stream"

	// maxBoundaryAttempts bounds boundary regeneration.
	maxBoundaryAttempts = 16
)

// Content is an encoded request body together with its content type.
type Content struct {
	Body        []byte
	ContentType string
}

// Content encodes the body of the request. It returns nil when the request
// carries neither a raw body, body parameters, nor an explicit multipart
// mode.
//
// Every call encodes into a fresh buffer. The multipart boundary is chosen
// on the first call and kept, so repeated calls return identical bytes.
func (r *Request) Content() (*Content, error) {
	if r.HasRawBody() {
		if r.hasFiles() {
			return nil, ErrConflictingBody
		}

		return &Content{Body: r.body, ContentType: r.bodyContentType}, nil
	}

	params := r.BodyParameters()

	if r.IsMultiPart() {
		return r.encodeMultipart(params)
	}

	if len(params) == 0 {
		return nil, nil
	}

	return &Content{
		Body:        EncodeForm(params),
		ContentType: ContentTypeFormURLEncoded,
	}, nil
}

func (r *Request) hasFiles() bool {
	for _, p := range r.parameters {
		if p.Kind == File {
			return true
		}
	}

	return false
}

// EncodeForm encodes params as application/x-www-form-urlencoded in the
// given order. Spaces become '+', everything outside the unreserved set is
// percent-escaped with uppercase hex.
func EncodeForm(params []Parameter) []byte {
	size := 0
	for _, p := range params {
		size += len(p.Name) + len(p.Value)*3 + 2
	}

	var b strings.Builder
	b.Grow(size)

	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.StringValue()))
	}

	return []byte(b.String())
}

// encodeMultipart writes one form-data part per parameter.
func (r *Request) encodeMultipart(params []Parameter) (*Content, error) {
	boundary, err := r.multipartBoundary(params)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	for _, p := range params {
		part, err := w.CreatePart(partHeader(p))
		if err != nil {
			return nil, err
		}

		if _, err := part.Write(p.Value); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return &Content{
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func partHeader(p Parameter) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)

	disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))

	contentType := p.ContentType
	if p.Kind == File {
		fileName := p.FileName
		if fileName == "" {
			fileName = p.Name
		}

		disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(fileName))

		if contentType == "" {
			contentType = defaultFileContentType
		}
	}

	h.Set("Content-Disposition", disposition)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}

	return h
}

// multipartBoundary returns the boundary of the request, generating one
// that does not occur in any part.
func (r *Request) multipartBoundary(params []Parameter) (string, error) {
	if r.boundary != "" && !boundaryCollides(r.boundary, params) {
		return r.boundary, nil
	}

	source := r.Rand
	if source == nil {
		source = rand.Reader
	}

	for range maxBoundaryAttempts {
		boundary, err := NewBoundary(source)
		if err != nil {
			return "", err
		}

		if !boundaryCollides(boundary, params) {
			r.boundary = boundary
			return boundary, nil
		}
	}

	return "", fmt.Errorf("%w: could not find a multipart boundary absent from the content", ErrConfiguration)
}

// NewBoundary returns a multipart boundary derived from a random UUID read
// from source.
func NewBoundary(source io.Reader) (string, error) {
	id, err := uuid.NewRandomFromReader(source)
	if err != nil {
		return "", fmt.Errorf("rest: generate boundary: %w", err)
	}

	return "restkit-" + strings.ReplaceAll(id.String(), "-", ""), nil
}

func boundaryCollides(boundary string, params []Parameter) bool {
	for _, p := range params {
		if bytes.Contains(p.Value, []byte(boundary)) {
			return true
		}

		if strings.Contains(p.Name, boundary) || strings.Contains(p.FileName, boundary) {
			return true
		}
	}

	return false
}
