package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/pipeline"
	"github.com/ivritype/tirgum/internal/session"
	"github.com/spf13/cobra"
)

// translateCmd represents the translate command.
var translateCmd = &cobra.Command{
	Use:   "translate [inputs...]",
	Short: "Translate book pages synchronously",
	Long: `Translate scanned book pages page by page.

Inputs may be image files, directories of images, ZIP archives, or PDFs.
Duplicate pages are detected by perceptual fingerprint and translated once.
Outputs are written as translated_<name>.png files, or as a ZIP archive
with --zip.

Supported image formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  tirgum translate scans/
  tirgum translate page1.png page2.png --output out/
  tirgum translate book.pdf --pages 10-25 --zip translated.zip
  tirgum translate scans/ --verify --strict-verify`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranslation(cmd, args, session.ModeSync)
	},
}

// runTranslation drives a full session for both the translate and batch
// commands; only the processing mode differs.
func runTranslation(cmd *cobra.Command, args []string, mode session.Mode) error {
	cfg := GetConfig()

	outDir, _ := cmd.Flags().GetString("output")
	zipPath, _ := cmd.Flags().GetString("zip")
	pageRange, _ := cmd.Flags().GetString("pages")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	verify := cfg.Pipeline.Verify
	if cmd.Flags().Changed("verify") {
		verify, _ = cmd.Flags().GetBool("verify")
	}

	strictVerify := cfg.Pipeline.StrictVerify
	if cmd.Flags().Changed("strict-verify") {
		strictVerify, _ = cmd.Flags().GetBool("strict-verify")
	}

	concurrency := cfg.Pipeline.Concurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d (must be at least 1)", concurrency)
	}

	inputs, err := collectInputs(args, pageRange)
	if err != nil {
		return err
	}

	sess, err := session.New(inputs, session.Options{
		Mode:        mode,
		Verify:      verify,
		MaxDistance: cfg.Dedupe.MaxDistance,
	})
	if err != nil {
		return err
	}
	slog.Info("Session created",
		"session_id", sess.ID,
		"pages", sess.PageCount(),
		"runnable", len(sess.Runnable()),
		"mode", mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	geminiCfg, err := cfg.GeminiClientConfig()
	if err != nil {
		return err
	}
	client, err := gemini.NewClient(ctx, geminiCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize capability client: %w", err)
	}

	var progress pipeline.ProgressCallback
	if noProgress {
		progress = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelInfo)
	} else {
		progress = pipeline.NewConsoleProgressCallback(os.Stderr, "Translating")
	}

	pl := pipeline.New(client, pipeline.Options{
		Concurrency:      concurrency,
		Verify:           verify,
		VerifyRetryLimit: cfg.Pipeline.VerifyRetryLimit,
		StrictVerify:     strictVerify,
		Progress:         progress,
	})

	if mode == session.ModeBatch {
		err = pl.RunBatch(ctx, sess, batchPollInterval(cmd, cfg.Batch.PollIntervalSec))
	} else {
		err = pl.ProcessSync(ctx, sess)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("processing failed: %w", err)
	}

	printSummary(sess)
	return writeOutputs(sess, outDir, zipPath)
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("output", "o", ".", "directory for translated page images")
	translateCmd.Flags().String("zip", "", "write all outputs to a single ZIP archive instead")
	translateCmd.Flags().String("pages", "", "page range for PDF inputs (e.g. 1-10,15)")
	translateCmd.Flags().Bool("verify", false, "verify translations before editing")
	translateCmd.Flags().Bool("strict-verify", false, "fail pages still flagged after verification retries")
	translateCmd.Flags().Int("concurrency", 0, "parallel page workers")
	translateCmd.Flags().Bool("no-progress", false, "log progress instead of drawing a progress bar")
}
