package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vitalvas/restkit/rest"
)

var errNoCredentials = errors.New("profile has no authentication scheme")

func newSignCommand(opts *options) *cobra.Command {
	var (
		reqFlags  requestFlags
		challenge string
	)

	cmd := &cobra.Command{
		Use:   "sign <method> <url>",
		Short: "Print the request the profile authenticator would send",
		Long: `Authenticate a request without sending it and print the resulting URL
and headers. Digest authentication answers the challenge given with
--challenge.

Examples:
  restkit --profile oauth.yaml sign GET https://photos.example.net/photos -q size=original
  restkit --profile digest.yaml sign GET /dir/index.html \
    --challenge 'Digest realm="testrealm@host.com", qop="auth", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093"'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := reqFlags.build(args[0], args[1])
			if err != nil {
				return err
			}

			p, err := opts.loadProfile()
			if err != nil {
				return err
			}

			cfg, err := p.ClientConfig(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			if cfg.Authenticator == nil {
				return errNoCredentials
			}

			client, err := rest.NewClient(cfg)
			if err != nil {
				return err
			}

			var prior *rest.Response
			if challenge != "" {
				prior = &rest.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}
				prior.Header.Set("WWW-Authenticate", challenge)
			}

			return sign(cmd.OutOrStdout(), client, req, prior)
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().StringVar(&challenge, "challenge", "", "WWW-Authenticate challenge to answer")

	return cmd
}

func sign(w io.Writer, client *rest.Client, req *rest.Request, prior *rest.Response) error {
	work := req.Clone()

	if err := client.Authenticator().Authenticate(client, work, prior); err != nil {
		return err
	}

	u, err := client.BuildURL(work)
	if err != nil {
		return err
	}

	if slices.EqualFunc(work.Parameters(), req.Parameters(), sameParameter) {
		return fmt.Errorf("%w: authenticator produced no credentials, a challenge may be required", rest.ErrMissingCredentials)
	}

	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold(work.Method), u.String())
	printHeaders(w, work.Headers())

	if body := work.BodyParameters(); len(body) > 0 && !work.IsMultiPart() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, string(rest.EncodeForm(body)))
	}

	return nil
}

func sameParameter(a, b rest.Parameter) bool {
	return a.Name == b.Name && a.Kind == b.Kind && bytes.Equal(a.Value, b.Value)
}
