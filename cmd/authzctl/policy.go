package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goAuthz/policy"
)

type denyError struct {
	policy string
}

func (e denyError) Error() string { return "policy " + e.policy + ": deny" }

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and evaluate configured policies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every configured policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(optionsFrom(cmd).configPath)
			if err != nil {
				return err
			}
			set, err := cfg.policySet()
			if err != nil {
				return err
			}
			for _, name := range set.Names() {
				p, _ := set.Get(name)
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			return nil
		},
	})

	var (
		name     string
		token    string
		resource policy.Resource
	)
	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a policy for the claims of an access token",
		Long:  `eval prints "allow" or "deny". A denial exits non-zero.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := optionsFrom(cmd)
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			set, err := cfg.policySet()
			if err != nil {
				return err
			}
			p, err := set.Get(name)
			if err != nil {
				return err
			}
			principal, err := parseAccess(cmd, token)
			if err != nil {
				return err
			}
			grants, err := cfg.grants()
			if err != nil {
				return err
			}
			loc, err := cfg.location()
			if err != nil {
				return err
			}
			now, err := opts.clock()
			if err != nil {
				return err
			}

			eval := policy.NewEvaluator(grants,
				policy.WithClock(now),
				policy.WithLocation(loc),
				policy.WithLogger(opts.logger(cmd)),
			)
			actx := policy.AuthorizationContext{Principal: principal}
			if cmd.Flags().Changed("owner") || cmd.Flags().Changed("resource-department") || cmd.Flags().Changed("public") {
				res := resource
				actx.Resource = &res
			}

			decision := eval.Evaluate(cmd.Context(), p, actx)
			fmt.Fprintln(cmd.OutOrStdout(), decision.String())
			if !decision.Allowed() {
				return denyError{policy: name}
			}
			return nil
		},
	}
	evalCmd.Flags().StringVar(&name, "policy", "", "policy name")
	evalCmd.Flags().StringVar(&token, "token", "", "access token")
	evalCmd.Flags().StringVar(&resource.OwnerID, "owner", "", "resource owner id")
	evalCmd.Flags().StringVar(&resource.Department, "resource-department", "", "resource department")
	evalCmd.Flags().BoolVar(&resource.IsPublic, "public", false, "resource is public")
	_ = evalCmd.MarkFlagRequired("policy")
	_ = evalCmd.MarkFlagRequired("token")

	cmd.AddCommand(evalCmd)
	return cmd
}
