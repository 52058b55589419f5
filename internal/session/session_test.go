package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/utils"
)

// patternPNG renders deterministic noise so that different seeds produce
// images with distant fingerprints and equal seeds produce exact duplicates.
func patternPNG(t *testing.T, seed int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(seed)))
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestSession(t *testing.T, n int) *Session {
	t.Helper()
	inputs := make([]utils.NamedImage, n)
	for i := range inputs {
		inputs[i] = utils.NamedImage{Name: fmt.Sprintf("page_%03d.png", i+1), PNG: patternPNG(t, i)}
	}
	s, err := New(inputs, Options{Mode: ModeSync, MaxDistance: 5})
	require.NoError(t, err)
	return s
}

func TestNewRejectsEmptyInput(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestNewMarksDuplicates(t *testing.T) {
	a := patternPNG(t, 0)
	b := patternPNG(t, 3)
	s, err := New([]utils.NamedImage{
		{Name: "p1.png", PNG: a},
		{Name: "p2.png", PNG: b},
		{Name: "p3.png", PNG: a},
	}, Options{MaxDistance: 5})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StatusPending, snap[0].Status)
	assert.Equal(t, StatusPending, snap[1].Status)
	assert.Equal(t, StatusDuplicate, snap[2].Status)
	assert.Equal(t, 0, snap[2].DuplicateOf)
	assert.Equal(t, []int{0, 1}, s.Runnable())
}

func TestBeginEnforcesExpectedStatus(t *testing.T) {
	s := newTestSession(t, 1)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	err := s.Begin(0, StatusPending, StatusExtracting)
	assert.ErrorIs(t, err, errConflict)
}

func TestCompletePropagatesToDuplicates(t *testing.T) {
	a := patternPNG(t, 0)
	s, err := New([]utils.NamedImage{
		{Name: "p1.png", PNG: a},
		{Name: "p2.png", PNG: a},
	}, Options{MaxDistance: 5})
	require.NoError(t, err)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	require.NoError(t, s.RecordExtraction(0, ExtractionResult{
		SourceText:   "hello",
		Translations: []gemini.Translation{{English: "hello", Hebrew: "שלום"}},
	}))
	require.NoError(t, s.Begin(0, StatusTranslating, StatusEditing))
	require.NoError(t, s.Complete(0, []byte("out"), 0))

	snap := s.Snapshot()
	assert.Equal(t, StatusDone, snap[0].Status)
	assert.Equal(t, StatusDuplicate, snap[1].Status)
	assert.True(t, snap[1].HasOutput)

	pages := s.CompletedPages()
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, 1, pages[1].Index)
	assert.Equal(t, "p2.png", pages[1].Name)
	assert.Equal(t, []byte("out"), pages[1].Output)
	assert.True(t, s.Finished())
}

func TestFailPropagatesToDuplicates(t *testing.T) {
	a := patternPNG(t, 0)
	s, err := New([]utils.NamedImage{
		{Name: "p1.png", PNG: a},
		{Name: "p2.png", PNG: a},
	}, Options{MaxDistance: 5})
	require.NoError(t, err)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	require.NoError(t, s.Fail(0, errors.New("service unavailable")))

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap[0].Status)
	assert.Equal(t, StatusFailed, snap[1].Status)
	assert.Contains(t, snap[1].Err, "representative page 0 failed")
}

func TestCancelledPageDiscardsInFlightResult(t *testing.T) {
	s := newTestSession(t, 1)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	require.NoError(t, s.CancelPage(0))

	err := s.RecordExtraction(0, ExtractionResult{SourceText: "late"})
	assert.ErrorIs(t, err, ErrCancelled)
	err = s.Complete(0, []byte("late"), 0)
	assert.ErrorIs(t, err, ErrCancelled)

	snap := s.Snapshot()
	assert.Equal(t, StatusCancelled, snap[0].Status)
	assert.False(t, snap[0].HasOutput)
}

func TestCancelSessionFreezesAllPages(t *testing.T) {
	s := newTestSession(t, 3)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	require.NoError(t, s.Begin(0, StatusExtracting, StatusTranslating))
	require.NoError(t, s.Begin(0, StatusTranslating, StatusEditing))
	require.NoError(t, s.Complete(0, []byte("out"), 0))

	s.Cancel()
	assert.True(t, s.Cancelled())

	snap := s.Snapshot()
	assert.Equal(t, StatusDone, snap[0].Status)
	assert.Equal(t, StatusCancelled, snap[1].Status)
	assert.Equal(t, StatusCancelled, snap[2].Status)
	assert.True(t, s.Finished())
}

func TestSetFatalFailsPendingPagesOnce(t *testing.T) {
	s := newTestSession(t, 3)

	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	s.SetFatal(errors.New("authentication failed"))
	s.SetFatal(errors.New("second, ignored"))

	snap := s.Snapshot()
	assert.Equal(t, StatusExtracting, snap[0].Status)
	assert.Equal(t, StatusFailed, snap[1].Status)
	assert.Equal(t, "authentication failed", snap[1].Err)
	assert.Equal(t, "authentication failed", s.FatalErr())
}

func TestVerdictRecording(t *testing.T) {
	s := newTestSession(t, 1)
	require.NoError(t, s.Begin(0, StatusPending, StatusExtracting))
	require.NoError(t, s.RecordExtraction(0, ExtractionResult{SourceText: "x"}))
	require.NoError(t, s.Begin(0, StatusTranslating, StatusVerifying))
	require.NoError(t, s.RecordVerdict(0, VerdictFlag, []string{"name mistranslated"}, 1))

	assert.Equal(t, 1, s.VerifyRetries(0))
	snap := s.Snapshot()
	assert.Equal(t, VerdictFlag, snap[0].Verdict)
	assert.Equal(t, []string{"name mistranslated"}, snap[0].VerifyIssues)
	assert.Equal(t, 1, snap[0].Retries)
}

func TestRegisterJobMovesMembersToExtracting(t *testing.T) {
	s := newTestSession(t, 2)

	require.NoError(t, s.RegisterJob("jobs/abc", []int{0, 1}, []string{"page_0000", "page_0001"}))
	snap := s.Snapshot()
	assert.Equal(t, StatusExtracting, snap[0].Status)
	assert.Equal(t, StatusExtracting, snap[1].Status)

	job, ok := s.Job("jobs/abc")
	require.True(t, ok)
	assert.Equal(t, JobSubmitted, job.Status)
	assert.Equal(t, []string{"page_0000", "page_0001"}, job.Tokens)

	err := s.RegisterJob("jobs/abc", []int{0}, []string{"t"})
	assert.Error(t, err)
}

func TestTryBeginResolveClaimsOnce(t *testing.T) {
	s := newTestSession(t, 1)
	require.NoError(t, s.RegisterJob("jobs/abc", []int{0}, []string{"page_0000"}))
	s.MarkJobRunning("jobs/abc")

	require.NoError(t, s.TryBeginResolve("jobs/abc"))
	assert.ErrorIs(t, s.TryBeginResolve("jobs/abc"), ErrResolveInProgress)

	s.MarkResolved("jobs/abc")
	assert.ErrorIs(t, s.TryBeginResolve("jobs/abc"), ErrResolveInProgress)

	job, _ := s.Job("jobs/abc")
	assert.Equal(t, JobResolved, job.Status)
}

func TestMarkJobFailedFailsWaitingMembers(t *testing.T) {
	s := newTestSession(t, 2)
	require.NoError(t, s.RegisterJob("jobs/abc", []int{0, 1}, []string{"page_0000", "page_0001"}))

	s.MarkJobFailed("jobs/abc", errors.New("job expired"))

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap[0].Status)
	assert.Equal(t, "job expired", snap[0].Err)
	assert.Equal(t, StatusFailed, snap[1].Status)

	job, _ := s.Job("jobs/abc")
	assert.Equal(t, JobFailed, job.Status)
}

func TestStoreLifecycle(t *testing.T) {
	st := NewStore()
	s := newTestSession(t, 1)

	st.Add(s)
	assert.Equal(t, 1, st.Len())

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = st.Get("missing")
	assert.Error(t, err)

	st.Remove(s.ID)
	assert.Equal(t, 0, st.Len())
}
