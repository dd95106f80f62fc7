package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the toolception application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "toolception",
	Short: "Serve MCP toolsets that activate on demand",
	Long: `toolception is an MCP server whose tool surface grows at runtime.
Clients start with a small set of meta-tools, discover the available
toolsets, and enable exactly the ones they need. Each caller gets an
isolated activation state, so one assistant's toolsets never leak into
another's session.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This is called from the main package to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "toolception version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
