package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Accounts microservice",
	Long:  `An accounts microservice providing registration, login with optional two-factor codes, and session lifecycle management via HTTP and gRPC.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
