// Package pipeline drives pages through extraction, translation,
// verification, and image editing against a capability service.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/ivritype/tirgum/internal/gemini"
)

// Capability is the slice of the translation service the pipeline consumes.
// *gemini.Client satisfies it; tests substitute fakes.
type Capability interface {
	ExtractAndTranslate(ctx context.Context, png []byte) (*gemini.Extraction, int, error)
	EditImage(ctx context.Context, png []byte, translations []gemini.Translation) ([]byte, int, error)
	Verify(ctx context.Context, sourceText string, translations []gemini.Translation) (gemini.Verdict, int, error)
	SubmitBatch(ctx context.Context, items []gemini.BatchItem) (string, error)
	BatchStatus(ctx context.Context, jobName string) (gemini.BatchState, error)
	BatchResults(ctx context.Context, jobName string, tokens []string) ([]gemini.BatchItemResult, error)
}

// Options configure pipeline behavior.
type Options struct {
	Concurrency      int  // parallel page workers (0 = DefaultConcurrency)
	Verify           bool // run the verification stage after translation
	VerifyRetryLimit int  // flagged re-translations allowed per page
	StrictVerify     bool // fail pages still flagged after the retry budget

	Progress ProgressCallback
	Logger   *slog.Logger
}

// DefaultConcurrency bounds parallel capability calls per session.
const DefaultConcurrency = 4

// Pipeline orchestrates page processing for sessions.
type Pipeline struct {
	cap      Capability
	opts     Options
	progress ProgressCallback
	log      *slog.Logger
}

// New creates a pipeline over the given capability service.
func New(cap Capability, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.VerifyRetryLimit < 0 {
		opts.VerifyRetryLimit = 0
	}
	progress := opts.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cap: cap, opts: opts, progress: progress, log: log}
}
