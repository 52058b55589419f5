// Package session owns all per-page and per-job state for one processing
// run. Records live in memory for the process lifetime; durable persistence
// is an external collaborator concern.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ivritype/tirgum/internal/fingerprint"
	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/utils"
)

// ExtractionResult carries an extract+translate outcome into the session.
type ExtractionResult struct {
	SourceText   string
	Translations []gemini.Translation
	Retries      int
}

var (
	// ErrCancelled is reported by writers whose page or session was cancelled
	// while a capability call was in flight. The result is discarded.
	ErrCancelled = errors.New("page cancelled")

	// ErrTerminal is reported when a writer targets a page that already
	// reached a terminal status.
	ErrTerminal = errors.New("page already in terminal status")

	errConflict = errors.New("page not in expected status")
)

// Options configure a new session.
type Options struct {
	Mode        Mode
	Verify      bool
	MaxDistance int // fingerprint Hamming distance treated as duplicate
}

// Session tracks an ordered set of pages and their batch jobs. One mutex
// guards all records; critical sections are short and never span a
// capability call.
type Session struct {
	ID        string
	Mode      Mode
	Verify    bool
	CreatedAt time.Time

	mu        sync.Mutex
	pages     []*Page
	jobs      map[string]*BatchJob
	cancelled bool
	fatalErr  string
}

// New ingests pages, fingerprints each one, and marks duplicates. The first
// page in upload order with a given fingerprint is the representative; later
// matches are terminal duplicates that never consume capability budget.
func New(inputs []utils.NamedImage, opts Options) (*Session, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no pages to ingest")
	}
	if opts.Mode == "" {
		opts.Mode = ModeSync
	}

	s := &Session{
		ID:        uuid.NewString(),
		Mode:      opts.Mode,
		Verify:    opts.Verify,
		CreatedAt: time.Now(),
		jobs:      make(map[string]*BatchJob),
	}

	index := fingerprint.NewIndex(opts.MaxDistance)
	for i, in := range inputs {
		img, err := utils.DecodeImage(in.PNG)
		if err != nil {
			return nil, fmt.Errorf("page %d (%s): %w", i, in.Name, err)
		}
		page := &Page{
			Index:       i,
			Name:        in.Name,
			Image:       in.PNG,
			Fingerprint: fingerprint.Compute(img),
			Status:      StatusPending,
			DuplicateOf: -1,
			Verdict:     VerdictNone,
		}
		if rep, dup := index.Add(i, page.Fingerprint); dup {
			page.Status = StatusDuplicate
			page.DuplicateOf = rep
		}
		s.pages = append(s.pages, page)
	}
	return s, nil
}

// PageCount returns the number of ingested pages.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// PageImage returns the canonical image bytes for a page.
func (s *Session) PageImage(idx int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.pages) {
		return nil
	}
	return s.pages[idx].Image
}

// Runnable returns indexes of pages still waiting to be processed,
// excluding duplicates.
func (s *Session) Runnable() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idxs []int
	for _, p := range s.pages {
		if p.Status == StatusPending {
			idxs = append(idxs, p.Index)
		}
	}
	return idxs
}

// InStatus returns indexes of pages currently in the given status.
func (s *Session) InStatus(status Status) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idxs []int
	for _, p := range s.pages {
		if p.Status == status {
			idxs = append(idxs, p.Index)
		}
	}
	return idxs
}

// Begin moves a page from one working status to the next. It fails without
// mutating when the page is cancelled, terminal, or not in the expected
// state, which also guarantees at most one writer advances a page at a time.
func (s *Session) Begin(idx int, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if s.cancelled || p.Status == StatusCancelled {
		return ErrCancelled
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	if p.Status != from {
		return fmt.Errorf("%w: have %s, want %s", errConflict, p.Status, from)
	}
	p.Status = to
	return nil
}

// RecordExtraction stores a completed extract+translate result and moves the
// page to translating-complete. Results for cancelled pages are discarded.
func (s *Session) RecordExtraction(idx int, ext ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if s.cancelled || p.Status == StatusCancelled {
		return ErrCancelled
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	p.SourceText = ext.SourceText
	p.Translations = ext.Translations
	p.Retries += ext.Retries
	p.Status = StatusTranslating
	return nil
}

// RecordVerdict attaches a verification outcome to a page.
func (s *Session) RecordVerdict(idx int, verdict VerifyVerdict, issues []string, retries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if s.cancelled || p.Status == StatusCancelled {
		return ErrCancelled
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	p.Verdict = verdict
	p.VerifyIssues = issues
	p.Retries += retries
	if verdict == VerdictFlag {
		p.VerifyRetries++
	}
	return nil
}

// VerifyRetries returns how many flagged re-translations a page has used.
func (s *Session) VerifyRetries(idx int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.pages) {
		return 0
	}
	return s.pages[idx].VerifyRetries
}

// Translations returns the recorded source text and translation pairs for a
// page, for use by the edit and verify stages.
func (s *Session) Translations(idx int) (string, []gemini.Translation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.pages) {
		return "", nil
	}
	p := s.pages[idx]
	return p.SourceText, p.Translations
}

// Complete finishes a page with its output image. Duplicates of this page
// receive the same output. Completion of a cancelled page is discarded.
func (s *Session) Complete(idx int, output []byte, retries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if s.cancelled || p.Status == StatusCancelled {
		return ErrCancelled
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	p.Output = output
	p.Retries += retries
	p.Status = StatusDone
	s.propagateLocked(p)
	return nil
}

// Fail marks a page failed with error detail. Failure propagates to the
// page's duplicates: they must never be left permanently pending.
func (s *Session) Fail(idx int, failure error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if p.Status == StatusCancelled || s.cancelled {
		return ErrCancelled
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	p.Status = StatusFailed
	if failure != nil {
		p.Err = failure.Error()
	}
	s.propagateLocked(p)
	return nil
}

// propagateLocked copies a representative's terminal outcome to its
// duplicates. Callers hold s.mu.
func (s *Session) propagateLocked(rep *Page) {
	if rep.Status != StatusDone && rep.Status != StatusFailed {
		return
	}
	for _, p := range s.pages {
		if p.DuplicateOf != rep.Index || p.Status == StatusCancelled {
			continue
		}
		if rep.Status == StatusDone {
			p.Output = rep.Output
			p.SourceText = rep.SourceText
			p.Translations = rep.Translations
		} else {
			p.Err = fmt.Sprintf("representative page %d failed: %s", rep.Index, rep.Err)
			p.Status = StatusFailed
		}
	}
}

// CancelPage cancels one page. In-flight results for it will be discarded.
func (s *Session) CancelPage(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.page(idx)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, p.Status)
	}
	p.Status = StatusCancelled
	return nil
}

// Cancel cancels the whole session: every non-terminal page becomes
// cancelled and future writes are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	for _, p := range s.pages {
		if !p.Status.Terminal() {
			p.Status = StatusCancelled
		}
	}
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// SetFatal records a session-level fatal condition (e.g. authentication
// failure) and fails every page that has not started, so the error surfaces
// once instead of per page.
func (s *Session) SetFatal(failure error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatalErr != "" {
		return
	}
	s.fatalErr = failure.Error()
	for _, p := range s.pages {
		if p.Status == StatusPending {
			p.Status = StatusFailed
			p.Err = s.fatalErr
		}
	}
}

// FatalErr returns the session-fatal error detail, if any.
func (s *Session) FatalErr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Snapshot returns the externally visible state of every page, in upload
// order.
func (s *Session) Snapshot() []PageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PageStatus, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.snapshot()
	}
	return out
}

// Stats counts pages by status.
func (s *Session) Stats() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[Status]int)
	for _, p := range s.pages {
		stats[p.Status]++
	}
	return stats
}

// Finished reports whether every page reached a terminal status.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if !p.Status.Terminal() {
			return false
		}
	}
	return true
}

// CompletedPages returns finished pages and their outputs, ordered by page
// index. Duplicate pages carry their representative's propagated output and
// are included, so a repeated page still exports once per occurrence.
// Consumers key on page identity: completion order is not upload order.
func (s *Session) CompletedPages() []CompletedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CompletedPage
	for _, p := range s.pages {
		if (p.Status == StatusDone || p.Status == StatusDuplicate) && len(p.Output) > 0 {
			out = append(out, CompletedPage{Index: p.Index, Name: p.Name, Output: p.Output})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *Session) page(idx int) (*Page, error) {
	if idx < 0 || idx >= len(s.pages) {
		return nil, fmt.Errorf("no page with index %d", idx)
	}
	return s.pages[idx], nil
}
