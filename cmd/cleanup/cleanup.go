// Package cleanup provides the one-shot archive cleanup command.
package cleanup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unzipd/unzipd/internal/cmdutil"
	"github.com/unzipd/unzipd/internal/operation"
)

// CleanupCmd deletes archives whose extracted contents are verified on disk.
var CleanupCmd = &cobra.Command{
	Use:   "cleanup <directory>",
	Short: "Delete archives whose contents were fully extracted",
	Long: "Delete archives whose contents were fully extracted.\n\n" +
		"An archive is removed only after every file it contains is confirmed to " +
		"exist under its extraction target directory. Archives with missing or " +
		"absent targets are kept.",
	Example: `  # Reclaim space under the archive root
  unzipd cleanup /srv/archives`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateCleanup,
	RunE:    runCleanup,
}

func validateCleanup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := cmdutil.Config()
	logger := cmdutil.Logger()
	root := args[0]

	eng, _, err := cmdutil.BuildEngine(cfg, logger, root)
	if err != nil {
		return err
	}

	snap, err := eng.RunCleanup(cmd.Context(), root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, line := range snap.Log {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, snap.Message)

	if snap.State == operation.StateError {
		return fmt.Errorf("cleanup aborted: %s", snap.Message)
	}
	if snap.Failed > 0 {
		return fmt.Errorf("%d of %d archives failed", snap.Failed, snap.Processed)
	}
	return nil
}
