package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vidhub",
	Short: "vidhub account API server",
	Long: `vidhub serves the account API: registration, login, logout and
refresh token rotation. Usage:

	vidhub server
	vidhub migrate up
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
