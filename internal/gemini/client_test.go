package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI scripts generativeAPI responses for client tests.
type fakeAPI struct {
	textCalls  int
	imageCalls int

	textFn   func(call int) (string, error)
	imageFn  func(call int) ([]byte, error)
	batchFn  func() (string, error)
	stateFn  func() (BatchState, error)
	resultFn func() ([]batchResponse, error)
}

func (f *fakeAPI) generateText(_ context.Context, _, _ string, _ ...[]byte) (string, error) {
	f.textCalls++
	return f.textFn(f.textCalls)
}

func (f *fakeAPI) generateImage(_ context.Context, _, _ string, _ []byte) ([]byte, error) {
	f.imageCalls++
	return f.imageFn(f.imageCalls)
}

func (f *fakeAPI) createBatch(_ context.Context, _ string, _ []batchRequest) (string, error) {
	return f.batchFn()
}

func (f *fakeAPI) batchState(_ context.Context, _ string) (BatchState, error) {
	return f.stateFn()
}

func (f *fakeAPI) batchResponses(_ context.Context, _ string) ([]batchResponse, error) {
	return f.resultFn()
}

func testClient(api generativeAPI, retryLimit int) *Client {
	cfg := DefaultConfig()
	cfg.RetryLimit = retryLimit
	c := newClient(api, cfg)
	c.initialBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

const extractionJSON = `{"extracted_text": "hello", "translations": [{"english": "hello", "hebrew": "שלום"}]}`

func TestExtractAndTranslate_Success(t *testing.T) {
	api := &fakeAPI{textFn: func(int) (string, error) { return extractionJSON, nil }}
	c := testClient(api, 3)

	ext, retries, err := c.ExtractAndTranslate(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Zero(t, retries)
	assert.Equal(t, "hello", ext.ExtractedText)
	assert.Equal(t, 1, api.textCalls)
}

func TestExtractAndTranslate_TransientThenSuccess(t *testing.T) {
	api := &fakeAPI{textFn: func(call int) (string, error) {
		if call <= 2 {
			return "", Transient(errors.New("rate limited"))
		}
		return extractionJSON, nil
	}}
	c := testClient(api, 3)

	ext, retries, err := c.ExtractAndTranslate(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, "hello", ext.ExtractedText)
	assert.Equal(t, 3, api.textCalls)
}

func TestExtractAndTranslate_RetriesExhausted(t *testing.T) {
	api := &fakeAPI{textFn: func(int) (string, error) {
		return "", Transient(errors.New("still rate limited"))
	}}
	c := testClient(api, 3)

	_, retries, err := c.ExtractAndTranslate(context.Background(), []byte("png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, 3, retries)
	assert.Equal(t, 3, api.textCalls, "attempt budget is the retry limit")
}

func TestExtractAndTranslate_MalformedNotRetried(t *testing.T) {
	api := &fakeAPI{textFn: func(int) (string, error) { return "not json", nil }}
	c := testClient(api, 3)

	_, _, err := c.ExtractAndTranslate(context.Background(), []byte("png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 1, api.textCalls, "parse failures must not be retried")
}

func TestExtractAndTranslate_AuthNotRetried(t *testing.T) {
	api := &fakeAPI{textFn: func(int) (string, error) {
		return "", ErrAuthentication
	}}
	c := testClient(api, 3)

	_, _, err := c.ExtractAndTranslate(context.Background(), []byte("png"))
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, api.textCalls)
}

func TestEditImage_Success(t *testing.T) {
	api := &fakeAPI{imageFn: func(int) ([]byte, error) { return []byte("edited"), nil }}
	c := testClient(api, 3)

	out, retries, err := c.EditImage(context.Background(), []byte("png"), []Translation{{English: "hi", Hebrew: "שלום"}})
	require.NoError(t, err)
	assert.Zero(t, retries)
	assert.Equal(t, []byte("edited"), out)
}

func TestEditImage_EmptyResponse(t *testing.T) {
	api := &fakeAPI{imageFn: func(int) ([]byte, error) { return nil, nil }}
	c := testClient(api, 3)

	_, _, err := c.EditImage(context.Background(), []byte("png"), nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestVerify(t *testing.T) {
	api := &fakeAPI{textFn: func(int) (string, error) {
		return `{"pass": true, "issues": [], "confidence": 0.95}`, nil
	}}
	c := testClient(api, 3)

	v, _, err := c.Verify(context.Background(), "hello", []Translation{{English: "hello", Hebrew: "שלום"}})
	require.NoError(t, err)
	assert.True(t, v.Pass)
}

func TestSubmitBatch_Empty(t *testing.T) {
	c := testClient(&fakeAPI{}, 3)
	_, err := c.SubmitBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestSubmitBatch(t *testing.T) {
	api := &fakeAPI{batchFn: func() (string, error) { return "batches/job-1", nil }}
	c := testClient(api, 3)

	name, err := c.SubmitBatch(context.Background(), []BatchItem{{Token: "page_0000", PNG: []byte("a")}})
	require.NoError(t, err)
	assert.Equal(t, "batches/job-1", name)
}

func TestBatchResults_TokenMappingAndPartialFailure(t *testing.T) {
	api := &fakeAPI{resultFn: func() ([]batchResponse, error) {
		return []batchResponse{
			{text: extractionJSON},
			{err: "item exploded"},
			{text: "garbage, not json"},
		}, nil
	}}
	c := testClient(api, 3)

	results, err := c.BatchResults(context.Background(), "batches/job-1",
		[]string{"page_0000", "page_0001", "page_0002"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "page_0000", results[0].Token)
	require.NotNil(t, results[0].Extraction)
	assert.Equal(t, "hello", results[0].Extraction.ExtractedText)

	assert.Equal(t, "page_0001", results[1].Token)
	assert.Nil(t, results[1].Extraction)
	assert.ErrorIs(t, results[1].Err, ErrServiceUnavailable)
	assert.ErrorContains(t, results[1].Err, "item exploded")

	assert.Equal(t, "page_0002", results[2].Token)
	assert.Nil(t, results[2].Extraction)
	assert.ErrorIs(t, results[2].Err, ErrMalformedResponse, "unparseable item fails alone")
}

func TestBatchResults_CountMismatch(t *testing.T) {
	api := &fakeAPI{resultFn: func() ([]batchResponse, error) {
		return []batchResponse{{text: extractionJSON}}, nil
	}}
	c := testClient(api, 3)

	_, err := c.BatchResults(context.Background(), "batches/job-1", []string{"page_0000", "page_0001"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestBatchStatus(t *testing.T) {
	api := &fakeAPI{stateFn: func() (BatchState, error) { return BatchStateRunning, nil }}
	c := testClient(api, 3)

	state, err := c.BatchStatus(context.Background(), "batches/job-1")
	require.NoError(t, err)
	assert.Equal(t, BatchStateRunning, state)
	assert.False(t, state.Done())
	assert.True(t, BatchStateSucceeded.Done())
}
