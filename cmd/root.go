package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cleanupcmd "github.com/unzipd/unzipd/cmd/cleanup"
	extractcmd "github.com/unzipd/unzipd/cmd/extract"
	initializecmd "github.com/unzipd/unzipd/cmd/initialize"
	servecmd "github.com/unzipd/unzipd/cmd/serve"
	versioncmd "github.com/unzipd/unzipd/cmd/version"
	"github.com/unzipd/unzipd/internal/cmdutil"
	"github.com/unzipd/unzipd/internal/config"
	"github.com/unzipd/unzipd/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads
var logManager *logging.Manager

var unzipdCmd = &cobra.Command{
	Use:   "unzipd",
	Short: "A bulk, policy-governed ZIP extraction service",
	Long: "unzipd extracts ZIP archives found under a directory tree, defending against " +
		"hostile or malformed archives (path escape, symlink abuse, decompression bombs).\n\n" +
		"It runs either as a long-lived server exposing an HTTP API with live operation " +
		"progress, or as a one-shot command-line tool. Extractions are atomic: an archive's " +
		"target directory is either complete or absent, never partial.",
	PersistentPreRunE: runInitialize,
}

// commandsWithoutConfig run before any configuration exists.
var commandsWithoutConfig = map[string]bool{
	"initialize": true,
	"version":    true,
	"help":       true,
	"completion": true,
}

func init() {
	logManager = logging.NewManager()

	unzipdCmd.AddCommand(servecmd.ServeCmd)
	unzipdCmd.AddCommand(extractcmd.ExtractCmd)
	unzipdCmd.AddCommand(cleanupcmd.CleanupCmd)
	unzipdCmd.AddCommand(initializecmd.InitializeCmd)
	unzipdCmd.AddCommand(versioncmd.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()
	cmdutil.SetLogger(logger)

	if commandsWithoutConfig[cmd.Name()] {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cmdutil.SetConfig(cfg)

	// Upgrade logging after config is available
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default", "configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(config.ExpandPath(cfg.LogFile), level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
		// Don't return error - continue with bootstrap mode
	}

	return nil
}

func Execute() error {
	unzipdCmd.SilenceErrors = true
	unzipdCmd.SilenceUsage = true

	// Ensure logging is properly closed on exit
	defer func() { _ = logManager.Close() }()

	err := unzipdCmd.Execute()

	if err != nil {
		cmd, _, _ := unzipdCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = unzipdCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
