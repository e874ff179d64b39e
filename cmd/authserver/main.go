// Package main provides the CLI entry point for the auth server.
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
		Use:     "authserver",
		Short:   "Encrypted auth core server",
		Long:    "authserver runs the encrypted framing, handshake, and token-issuing auth core over TCP.",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
