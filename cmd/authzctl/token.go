package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goAuthz/claims"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect access tokens",
	}

	var (
		subject string
		roles   []string
		extra   []string
	)
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			now, err := opts.clock()
			if err != nil {
				return err
			}
			mgr, err := cfg.tokenManager(now)
			if err != nil {
				return err
			}

			p, err := parseClaimArgs(extra)
			if err != nil {
				return err
			}
			tok, exp, err := mgr.IssueAccess(subject, roles, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format("2006-01-02T15:04:05Z"))
			return nil
		},
	}
	issueCmd.Flags().StringVar(&subject, "sub", "", "subject id")
	issueCmd.Flags().StringSliceVar(&roles, "role", nil, "role (repeatable)")
	issueCmd.Flags().StringArrayVar(&extra, "claim", nil, "extra claim as type=value (repeatable)")
	_ = issueCmd.MarkFlagRequired("sub")

	inspectCmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify an access token and print its claims as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseAccess(cmd, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p.ToMap())
		},
	}

	cmd.AddCommand(issueCmd, inspectCmd)
	return cmd
}

func parseAccess(cmd *cobra.Command, token string) (claims.Principal, error) {
	opts := optionsFrom(cmd)
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return claims.Principal{}, err
	}
	now, err := opts.clock()
	if err != nil {
		return claims.Principal{}, err
	}
	mgr, err := cfg.tokenManager(now)
	if err != nil {
		return claims.Principal{}, err
	}
	return mgr.ParseAccess(token)
}

func parseClaimArgs(args []string) (claims.Principal, error) {
	var p claims.Principal
	for _, arg := range args {
		typ, val, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(typ) == "" {
			return claims.Principal{}, fmt.Errorf("claim %q: want type=value", arg)
		}
		p.Add(strings.TrimSpace(typ), val)
	}
	return p, nil
}
