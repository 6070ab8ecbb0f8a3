package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitalvas/restkit/rest"
)

// requestFlags describe the parameters of a request built on the command
// line.
type requestFlags struct {
	params      []string
	query       []string
	segments    []string
	headers     []string
	files       []string
	data        string
	contentType string
	multipart   bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.params, "param", "p", nil, "Form or query parameter name=value")
	flags.StringArrayVarP(&f.query, "query", "q", nil, "Query string parameter name=value")
	flags.StringArrayVarP(&f.segments, "segment", "s", nil, "URL segment substitution name=value")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "Request header 'Name: value'")
	flags.StringArrayVarP(&f.files, "file", "f", nil, "File parameter name=@path")
	flags.StringVarP(&f.data, "data", "d", "", "Raw request body, @path reads it from a file")
	flags.StringVar(&f.contentType, "content-type", "application/json", "Content type of the raw body")
	flags.BoolVar(&f.multipart, "multipart", false, "Send form parameters as multipart/form-data")
}

func (f *requestFlags) build(method, resource string) (*rest.Request, error) {
	req := rest.NewRequest(strings.ToUpper(method), resource)

	if f.multipart {
		req.ContentCollectionMode = rest.MultiPart
	}

	pairs := []struct {
		values []string
		kind   rest.ParameterKind
	}{
		{f.params, rest.GetOrPost},
		{f.query, rest.Query},
		{f.segments, rest.URLSegment},
	}

	for _, group := range pairs {
		for _, raw := range group.values {
			name, value, err := splitPair(raw, "=")
			if err != nil {
				return nil, err
			}

			req.AddParameter(name, value, group.kind)
		}
	}

	for _, raw := range f.headers {
		name, value, err := splitPair(raw, ":")
		if err != nil {
			return nil, err
		}

		req.AddHeader(name, strings.TrimSpace(value))
	}

	for _, raw := range f.files {
		name, path, err := splitPair(raw, "=")
		if err != nil {
			return nil, err
		}

		path = strings.TrimPrefix(path, "@")

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		req.AddFile(name, filepath.Base(path), content, contentType)
	}

	if f.data != "" {
		body := []byte(f.data)

		if path, ok := strings.CutPrefix(f.data, "@"); ok {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}

			body = content
		}

		req.SetBody(body, f.contentType)
	}

	return req, nil
}

func splitPair(raw, sep string) (string, string, error) {
	name, value, ok := strings.Cut(raw, sep)
	name = strings.TrimSpace(name)

	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: expected name%svalue, got %q", rest.ErrInvalidParameter, sep, raw)
	}

	return name, value, nil
}
