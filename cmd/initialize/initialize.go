// Package initialize implements the initialize command for first-time setup.
package initialize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/unzipd/unzipd/internal/config"
)

// Flag variables for the initialize command.
var (
	initializeForce   bool
	initializeRootDir string
	initializePolicy  string
	initializeWorkers int
	initializePort    int
)

// InitializeCmd writes the default configuration file.
var InitializeCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Write the default configuration file",
	Long: "Write the default configuration file.\n\n" +
		"Creates the configuration directory and writes a config file populated " +
		"with defaults, optionally overridden by flags. An existing config file " +
		"is never overwritten unless --force is given.",
	Example: `  # Write the default configuration
  unzipd initialize

  # Configure the extraction root up front
  unzipd initialize --root-dir /srv/archives

  # Re-initialize over an existing config
  unzipd initialize --force`,
	PreRunE: validateInitialize,
	RunE:    runInitialize,
}

func init() {
	InitializeCmd.Flags().BoolVar(&initializeForce, "force", false,
		"Overwrite an existing configuration file")
	InitializeCmd.Flags().StringVar(&initializeRootDir, "root-dir", "",
		"Extraction root directory to record in the config")
	InitializeCmd.Flags().StringVar(&initializePolicy, "policy", "",
		"Default conflict policy: skip, overwrite or suffix")
	InitializeCmd.Flags().IntVar(&initializeWorkers, "workers", 0,
		"Default worker count for parallel extraction")
	InitializeCmd.Flags().IntVar(&initializePort, "http-port", 0,
		"HTTP API port")
}

func validateInitialize(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runInitialize(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfigPath()
	if dir := os.Getenv("UNZIPD_CONFIG_DIR"); dir != "" {
		path = filepath.Join(dir, "config.yaml")
	}

	if config.ConfigExistsAt(path) && !initializeForce {
		return fmt.Errorf("configuration already exists at %s; use --force to overwrite", path)
	}

	cfg := config.LoadWithDefaults()
	if initializeRootDir != "" {
		cfg.Extract.RootDir = initializeRootDir
	}
	if initializePolicy != "" {
		cfg.Extract.ConflictPolicy = initializePolicy
	}
	if initializeWorkers > 0 {
		cfg.Extract.Workers = initializeWorkers
	}
	if initializePort > 0 {
		cfg.Server.HTTPPort = initializePort
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.Write(cfg, path); err != nil {
		return fmt.Errorf("failed to write config; %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}
