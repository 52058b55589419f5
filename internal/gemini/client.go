// Package gemini wraps the extraction+translation and image-editing
// capability services. It owns request shaping, response parsing, and the
// retry/backoff policy, and holds no page state: both pipelines get identical
// resilience by going through this client.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// Default model IDs, matching the service's extraction and image-edit tiers.
const (
	DefaultExtractModel = "gemini-2.5-flash"
	DefaultEditModel    = "gemini-2.0-flash-exp"
)

// Config holds client settings.
type Config struct {
	APIKey       string
	ExtractModel string
	EditModel    string

	// RetryLimit bounds total attempts per call for transient failures.
	RetryLimit int

	// RateLimit caps outgoing requests per second. 0 disables limiting.
	RateLimit float64

	Source language.Tag
	Target language.Tag
}

// DefaultConfig returns client defaults for English-to-Hebrew book pages.
func DefaultConfig() Config {
	return Config{
		ExtractModel: DefaultExtractModel,
		EditModel:    DefaultEditModel,
		RetryLimit:   3,
		Source:       language.English,
		Target:       language.Hebrew,
	}
}

// generativeAPI is the narrow surface the client needs from the underlying
// SDK. Batch responses are positional, in submission order.
type generativeAPI interface {
	generateText(ctx context.Context, model, prompt string, images ...[]byte) (string, error)
	generateImage(ctx context.Context, model, prompt string, image []byte) ([]byte, error)
	createBatch(ctx context.Context, model string, requests []batchRequest) (string, error)
	batchState(ctx context.Context, name string) (BatchState, error)
	batchResponses(ctx context.Context, name string) ([]batchResponse, error)
}

type batchRequest struct {
	prompt string
	png    []byte
}

type batchResponse struct {
	text string
	err  string
}

// Client drives the capability service.
type Client struct {
	api          generativeAPI
	limiter      *rate.Limiter
	retryLimit   int
	extractModel string
	editModel    string
	source       language.Tag
	target       language.Tag

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewClient builds a client backed by the Gemini API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrAuthentication)
	}
	api, err := newGenaiAPI(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return newClient(api, cfg), nil
}

func newClient(api generativeAPI, cfg Config) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = DefaultExtractModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = DefaultEditModel
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Source == language.Und {
		cfg.Source = language.English
	}
	if cfg.Target == language.Und {
		cfg.Target = language.Hebrew
	}
	return &Client{
		api:            api,
		limiter:        limiter,
		retryLimit:     cfg.RetryLimit,
		extractModel:   cfg.ExtractModel,
		editModel:      cfg.EditModel,
		source:         cfg.Source,
		target:         cfg.Target,
		initialBackoff: 2 * time.Second,
		maxBackoff:     60 * time.Second,
	}
}

// ExtractAndTranslate extracts all source-language text from a page image and
// translates it, in a single call. Returns the number of transient retries
// spent so the caller can record it on the page.
func (c *Client) ExtractAndTranslate(ctx context.Context, png []byte) (*Extraction, int, error) {
	var ext *Extraction
	retries, err := c.withRetry(ctx, func() error {
		text, err := c.api.generateText(ctx, c.extractModel, c.extractPrompt(), png)
		if err != nil {
			return err
		}
		ext, err = parseExtraction(text)
		return err
	})
	if err != nil {
		return nil, retries, err
	}
	return ext, retries, nil
}

// EditImage replaces the page's source text with the given translations,
// preserving layout and artwork, and returns the edited image bytes.
func (c *Client) EditImage(ctx context.Context, png []byte, translations []Translation) ([]byte, int, error) {
	var out []byte
	retries, err := c.withRetry(ctx, func() error {
		img, err := c.api.generateImage(ctx, c.editModel, c.editPrompt(translations), png)
		if err != nil {
			return err
		}
		if len(img) == 0 {
			return fmt.Errorf("%w: no image in response", ErrMalformedResponse)
		}
		out = img
		return nil
	})
	if err != nil {
		return nil, retries, err
	}
	return out, retries, nil
}

// Verify checks a completed translation against the original text and
// returns an advisory verdict.
func (c *Client) Verify(ctx context.Context, sourceText string, translations []Translation) (Verdict, int, error) {
	var verdict Verdict
	retries, err := c.withRetry(ctx, func() error {
		text, err := c.api.generateText(ctx, c.extractModel, c.verifyPrompt(sourceText, translations))
		if err != nil {
			return err
		}
		verdict, err = parseVerdict(text)
		return err
	})
	return verdict, retries, err
}

// SubmitBatch submits one extract+translate request per item as a single
// asynchronous bulk job and returns the remote job handle. Items keep their
// submission order; results are re-tagged with the same tokens on retrieval.
func (c *Client) SubmitBatch(ctx context.Context, items []BatchItem) (string, error) {
	if len(items) == 0 {
		return "", errors.New("no items to submit")
	}
	requests := make([]batchRequest, len(items))
	for i, item := range items {
		requests[i] = batchRequest{prompt: c.extractPrompt(), png: item.PNG}
	}

	var name string
	_, err := c.withRetry(ctx, func() error {
		n, err := c.api.createBatch(ctx, c.extractModel, requests)
		if err != nil {
			return err
		}
		name = n
		return nil
	})
	return name, err
}

// BatchStatus reports the remote job's current state.
func (c *Client) BatchStatus(ctx context.Context, jobName string) (BatchState, error) {
	var state BatchState
	_, err := c.withRetry(ctx, func() error {
		s, err := c.api.batchState(ctx, jobName)
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	return state, err
}

// BatchResults retrieves and parses per-item results for a completed job.
// tokens must be the identity tokens from submission, in submission order;
// a malformed or failed item yields a BatchItemResult with Err set and never
// affects its siblings.
func (c *Client) BatchResults(ctx context.Context, jobName string, tokens []string) ([]BatchItemResult, error) {
	var raw []batchResponse
	_, err := c.withRetry(ctx, func() error {
		r, err := c.api.batchResponses(ctx, jobName)
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(raw) != len(tokens) {
		return nil, fmt.Errorf("%w: %d responses for %d submitted items",
			ErrMalformedResponse, len(raw), len(tokens))
	}

	results := make([]BatchItemResult, len(raw))
	for i, r := range raw {
		results[i].Token = tokens[i]
		if r.err != "" {
			results[i].Err = fmt.Errorf("%w: %s", ErrServiceUnavailable, r.err)
			continue
		}
		ext, perr := parseExtraction(r.text)
		if perr != nil {
			results[i].Err = perr
			continue
		}
		results[i].Extraction = ext
	}
	return results, nil
}

// withRetry runs op under the client's backoff policy. Transient errors are
// retried up to the configured attempt budget with exponential backoff;
// anything else aborts immediately. Returns how many transient failures were
// observed.
func (c *Client) withRetry(ctx context.Context, op func() error) (int, error) {
	retries := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retryLimit-1)), ctx)

	err := backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			retries++
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err == nil {
		return retries, nil
	}
	if IsTransient(err) {
		return retries, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return retries, err
}
