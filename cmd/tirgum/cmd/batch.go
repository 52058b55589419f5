package cmd

import (
	"time"

	"github.com/ivritype/tirgum/internal/session"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for asynchronous bulk translation.
var batchCmd = &cobra.Command{
	Use:   "batch [inputs...]",
	Short: "Translate book pages through an asynchronous bulk job",
	Long: `Translate scanned book pages through a remote bulk job.

Extraction and translation for all pages are submitted as one job to the
capability service, polled until it completes, and the remaining stages
(verification and image editing) run locally. This trades latency for
throughput and is suited to whole books.

Inputs may be image files, directories of images, ZIP archives, or PDFs.

Examples:
  tirgum batch scans/
  tirgum batch book.pdf --poll-interval 60 --zip translated.zip`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranslation(cmd, args, session.ModeBatch)
	},
}

// batchPollInterval resolves the remote job poll interval, preferring the
// CLI flag over the configured default.
func batchPollInterval(cmd *cobra.Command, configuredSec int) time.Duration {
	sec := configuredSec
	if cmd.Flags().Changed("poll-interval") {
		sec, _ = cmd.Flags().GetInt("poll-interval")
	}
	if sec < 1 {
		sec = 30
	}
	return time.Duration(sec) * time.Second
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", ".", "directory for translated page images")
	batchCmd.Flags().String("zip", "", "write all outputs to a single ZIP archive instead")
	batchCmd.Flags().String("pages", "", "page range for PDF inputs (e.g. 1-10,15)")
	batchCmd.Flags().Bool("verify", false, "verify translations before editing")
	batchCmd.Flags().Bool("strict-verify", false, "fail pages still flagged after verification retries")
	batchCmd.Flags().Int("concurrency", 0, "parallel page workers for the local stages")
	batchCmd.Flags().Int("poll-interval", 0, "seconds between remote job status polls")
	batchCmd.Flags().Bool("no-progress", false, "log progress instead of drawing a progress bar")
}
