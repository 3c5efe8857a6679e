// Command authzctl is an operator tool for goAuthz: it generates and checks
// TOTP codes, issues and inspects access tokens, and evaluates the policies
// declared in a TOML configuration file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
