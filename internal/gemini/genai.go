package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// genaiAPI implements generativeAPI over the official Gemini SDK.
type genaiAPI struct {
	client *genai.Client
}

func newGenaiAPI(ctx context.Context, apiKey string) (*genaiAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiAPI{client: client}, nil
}

func requestContents(prompt string, images ...[]byte) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (a *genaiAPI) generateText(ctx context.Context, model, prompt string, images ...[]byte) (string, error) {
	resp, err := a.client.Models.GenerateContent(ctx, model, requestContents(prompt, images...), nil)
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty text response", ErrMalformedResponse)
	}
	return text, nil
}

func (a *genaiAPI) generateImage(ctx context.Context, model, prompt string, image []byte) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	resp, err := a.client.Models.GenerateContent(ctx, model, requestContents(prompt, image), cfg)
	if err != nil {
		return nil, classify(err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no inline image in response", ErrMalformedResponse)
}

func (a *genaiAPI) createBatch(ctx context.Context, model string, requests []batchRequest) (string, error) {
	inlined := make([]*genai.InlinedRequest, len(requests))
	for i, req := range requests {
		inlined[i] = &genai.InlinedRequest{
			Contents: requestContents(req.prompt, req.png),
		}
	}
	job, err := a.client.Batches.Create(ctx, model,
		&genai.BatchJobSource{InlinedRequests: inlined},
		&genai.CreateBatchJobConfig{DisplayName: "book-page-translation"})
	if err != nil {
		return "", classify(err)
	}
	return job.Name, nil
}

func (a *genaiAPI) batchState(ctx context.Context, name string) (BatchState, error) {
	job, err := a.client.Batches.Get(ctx, name, nil)
	if err != nil {
		return "", classify(err)
	}
	return mapJobState(job.State), nil
}

func (a *genaiAPI) batchResponses(ctx context.Context, name string) ([]batchResponse, error) {
	job, err := a.client.Batches.Get(ctx, name, nil)
	if err != nil {
		return nil, classify(err)
	}
	if job.Dest == nil {
		return nil, fmt.Errorf("%w: batch job has no results", ErrMalformedResponse)
	}

	responses := make([]batchResponse, 0, len(job.Dest.InlinedResponses))
	for _, ir := range job.Dest.InlinedResponses {
		if ir.Error != nil {
			responses = append(responses, batchResponse{err: ir.Error.Message})
			continue
		}
		if ir.Response == nil {
			responses = append(responses, batchResponse{err: "no response for item"})
			continue
		}
		responses = append(responses, batchResponse{text: ir.Response.Text()})
	}
	return responses, nil
}

func mapJobState(state genai.JobState) BatchState {
	switch state {
	case genai.JobStateSucceeded:
		return BatchStateSucceeded
	case genai.JobStateFailed, genai.JobStateExpired:
		return BatchStateFailed
	case genai.JobStateCancelled, genai.JobStateCancelling:
		return BatchStateCancelled
	case genai.JobStateRunning:
		return BatchStateRunning
	default:
		return BatchStatePending
	}
}

// classify maps SDK errors onto the client's taxonomy: auth failures are
// session-fatal, rate-limit and server-side errors are transient, everything
// else is permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuthentication, apiErr.Message)
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return Transient(err)
		default:
			return err
		}
	}
	// Errors without an API status are network-class failures.
	return Transient(err)
}
