// Package extract provides the one-shot bulk extraction command.
package extract

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unzipd/unzipd/internal/cmdutil"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/operation"
)

// ExtractCmd extracts every archive under a directory and prints a report.
var ExtractCmd = &cobra.Command{
	Use:   "extract <directory>",
	Short: "Extract all ZIP archives under a directory",
	Long: "Extract all ZIP archives under a directory.\n\n" +
		"Each archive is validated against the configured safety limits before any " +
		"byte is written, then extracted atomically into a sibling directory named " +
		"after the archive. Archives whose target already exists are handled " +
		"according to the conflict policy.",
	Example: `  # Extract with the configured defaults
  unzipd extract /srv/archives

  # Overwrite existing targets, one archive at a time
  unzipd extract --policy overwrite --serial /srv/archives`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateExtract,
	RunE:    runExtract,
}

var (
	flagPolicy string
	flagSerial bool
)

func init() {
	ExtractCmd.Flags().StringVar(&flagPolicy, "policy", "", "conflict policy: skip, overwrite or suffix (default from config)")
	ExtractCmd.Flags().BoolVar(&flagSerial, "serial", false, "process archives one at a time")
}

func validateExtract(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if flagPolicy != "" {
		if _, err := extract.ParsePolicy(flagPolicy); err != nil {
			return err
		}
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := cmdutil.Config()
	logger := cmdutil.Logger()
	root := args[0]

	eng, _, err := cmdutil.BuildEngine(cfg, logger, root)
	if err != nil {
		return err
	}

	policy, err := cmdutil.PolicyFromConfig(cfg)
	if err != nil {
		return err
	}
	if flagPolicy != "" {
		policy, err = extract.ParsePolicy(flagPolicy)
		if err != nil {
			return err
		}
	}

	snap, err := eng.RunExtraction(cmd.Context(), root, policy, !flagSerial)
	if err != nil {
		return err
	}

	printReport(cmd, snap)

	if snap.State == operation.StateError {
		return fmt.Errorf("extraction aborted: %s", snap.Message)
	}
	if snap.Failed > 0 {
		return fmt.Errorf("%d of %d archives failed", snap.Failed, snap.Processed)
	}
	return nil
}

// printReport writes the per-archive log and summary to stdout.
func printReport(cmd *cobra.Command, snap operation.Snapshot) {
	out := cmd.OutOrStdout()
	for _, line := range snap.Log {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, snap.Message)
}
