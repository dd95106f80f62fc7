package cmd

import (
	"context"
	"fmt"

	"github.com/code-rabi/toolception-sub000/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
// The directory should contain config.yaml and, optionally, a toolset
// catalog directory referenced from it.
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolception MCP server",
	Long: `Starts the MCP server and serves the toolset catalog.

Connected clients see the toolset meta-tools immediately; every other
tool appears when its toolset is enabled, either automatically through
the caller's permissions or explicitly via enable_toolset.

Configuration:
  toolception loads config.yaml from ~/.config/toolception by default.
  Use --config-path to point at a different directory. If the config
  names a catalogDir, every YAML file in it defines a toolset backed by
  a remote MCP server, and the directory is watched for changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Config{
		Debug:      serveDebug,
		ConfigPath: serveConfigPath,
		Version:    rootCmd.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
}
