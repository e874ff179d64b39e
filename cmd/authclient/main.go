// Package main provides a CLI client for exercising the auth core's
// register-then-authenticate flow end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "authclient",
		Short:   "Client for the encrypted auth core",
		Long:    "authclient registers users and runs the handshake-then-auth-challenge flow against an authserver instance.",
		Version: Version,
	}

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(loginCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
