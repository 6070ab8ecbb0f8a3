package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vitalvas/restkit/profile"
)

// options are shared by all commands.
type options struct {
	profilePath string
	baseURL     string
	verbose     int
	noColor     bool
}

// NewRootCommand returns the restkit command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "restkit",
		Short: "Send and sign authenticated HTTP requests",
		Long: `restkit sends requests through a client configured by a YAML profile.
The profile selects Basic, hidden Basic, Digest or OAuth 1.0a authentication.

Examples:
  restkit --profile api.yaml send GET users/{id} -s id=42
  restkit --profile api.yaml send POST upload -f file=@photo.jpg
  restkit --profile oauth.yaml sign GET https://api.example.com/photos`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.profilePath, "profile", "P", os.Getenv("RESTKIT_PROFILE"), "Path to profile file (env: RESTKIT_PROFILE)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Override the profile base URL")
	flags.CountVarP(&opts.verbose, "verbose", "v", "Verbose output (-v, -vv for debug)")
	flags.BoolVar(&opts.noColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colored output")

	cmd.AddCommand(newSendCommand(opts))
	cmd.AddCommand(newSignCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	cmd := NewRootCommand(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

func (o *options) logger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	switch {
	case o.verbose >= 2:
		logger.SetLevel(logrus.DebugLevel)
	case o.verbose == 1:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}

	return logger
}

// loadProfile reads the configured profile. Without --profile an empty
// profile is used.
func (o *options) loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{}

	if o.profilePath != "" {
		loaded, err := profile.Load(o.profilePath)
		if err != nil {
			return nil, err
		}

		p = loaded
	}

	if o.baseURL != "" {
		p.BaseURL = o.baseURL
	}

	return p, nil
}
