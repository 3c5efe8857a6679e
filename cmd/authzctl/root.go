package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	now        string
	verbose    bool
}

type ctxKey struct{}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "authzctl",
		Short:         "goAuthz operator tool",
		Long:          `authzctl generates and checks TOTP codes, issues and inspects access tokens, and evaluates policies declared in a TOML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, opts))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "authzctl.toml", "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&opts.now, "now", "", "evaluate at this RFC 3339 instant instead of the current time")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log policy diagnostics to stderr")

	root.AddCommand(newTOTPCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newPolicyCmd())
	return root
}

func optionsFrom(cmd *cobra.Command) *options {
	if opts, ok := cmd.Context().Value(ctxKey{}).(*options); ok {
		return opts
	}
	return &options{configPath: "authzctl.toml"}
}

// clock returns the --now override or time.Now.
func (o *options) clock() (func() time.Time, error) {
	if o.now == "" {
		return time.Now, nil
	}
	at, err := time.Parse(time.RFC3339, o.now)
	if err != nil {
		return nil, err
	}
	return func() time.Time { return at }, nil
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
