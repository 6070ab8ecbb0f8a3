package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vitalvas/restkit/rest"
)

func newSendCommand(opts *options) *cobra.Command {
	var (
		reqFlags    requestFlags
		headersOnly bool
	)

	cmd := &cobra.Command{
		Use:   "send <method> <resource>",
		Short: "Send a request and print the response",
		Long: `Send a request through the profile client. The resource is resolved
against the profile base URL unless it is absolute.

Examples:
  restkit send GET users/{id} -s id=42
  restkit send POST users -p name=alice -p role=admin
  restkit send POST upload -f file=@photo.jpg -p title=holiday
  restkit send PUT users/42 -d '{"name":"alice"}'`,
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

			client, err := p.NewClient(opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			return send(cmd.Context(), cmd.OutOrStdout(), client, req, headersOnly)
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().BoolVarP(&headersOnly, "head", "I", false, "Print only the status line and headers")

	return cmd
}

func send(ctx context.Context, w io.Writer, client *rest.Client, req *rest.Request, headersOnly bool) error {
	resp, err := client.Execute(ctx, req)

	var statusErr *rest.StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return err
	}

	printResponse(w, resp, headersOnly)

	return err
}

func printResponse(w io.Writer, resp *rest.Response, headersOnly bool) {
	status := color.New(color.FgGreen, color.Bold)
	if !resp.IsSuccess() {
		status = color.New(color.FgRed, color.Bold)
	}

	fmt.Fprintln(w, status.Sprint(resp.Status))
	printHeaders(w, resp.Header)

	if headersOnly || len(resp.Body) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, resp.BodyString())
}

func printHeaders(w io.Writer, header map[string][]string) {
	name := color.New(color.FgCyan).SprintFunc()

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range header[k] {
			fmt.Fprintf(w, "%s: %s\n", name(k), v)
		}
	}
}
