package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is overwritten at build time
var Version = "1.0.0"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "fearings-services",
		Short: "Fearing's Services site and job estimator",
		Long: `fearings-services serves the Fearing's Services marketing page and its
AI job estimator. Running it without a subcommand starts the server.`,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		serveCmd,
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fearings-services version %s\n", Version)
		},
	}
}
