package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/session"
)

// ErrNoRunnablePages is returned by SubmitBatch when every page is already
// terminal or claimed.
var ErrNoRunnablePages = errors.New("no runnable pages to submit")

// pageToken builds the stable identity token for a page within a bulk job.
func pageToken(idx int) string {
	return fmt.Sprintf("page_%04d", idx)
}

// SubmitBatch sends every runnable page's extract+translate request as one
// asynchronous bulk job and records the job on the session. The returned
// name identifies the remote job for polling.
func (p *Pipeline) SubmitBatch(ctx context.Context, s *session.Session) (string, error) {
	idxs := s.Runnable()
	if len(idxs) == 0 {
		return "", ErrNoRunnablePages
	}

	items := make([]gemini.BatchItem, len(idxs))
	tokens := make([]string, len(idxs))
	for i, idx := range idxs {
		tokens[i] = pageToken(idx)
		items[i] = gemini.BatchItem{Token: tokens[i], PNG: s.PageImage(idx)}
	}

	name, err := p.cap.SubmitBatch(ctx, items)
	if err != nil {
		if errors.Is(err, gemini.ErrAuthentication) {
			s.SetFatal(err)
		}
		for _, idx := range idxs {
			_ = s.Fail(idx, fmt.Errorf("batch submission: %w", err))
		}
		return "", err
	}

	if err := s.RegisterJob(name, idxs, tokens); err != nil {
		return "", err
	}
	p.log.Info("batch submitted", "job", name, "pages", len(idxs))
	return name, nil
}

// Poll checks every unresolved job of the session once, resolving finished
// jobs into page state. It is safe to call from several pollers: the session
// guarantees each job's results apply exactly once. The return value reports
// whether all jobs have reached a local terminal status.
func (p *Pipeline) Poll(ctx context.Context, s *session.Session) (bool, error) {
	allDone := true
	for _, name := range s.Jobs() {
		job, ok := s.Job(name)
		if !ok || job.Status == session.JobResolved || job.Status == session.JobFailed {
			continue
		}

		state, err := p.cap.BatchStatus(ctx, name)
		if err != nil {
			if errors.Is(err, gemini.ErrAuthentication) {
				s.SetFatal(err)
				s.MarkJobFailed(name, err)
				continue
			}
			// Transient poll failure: try again on the next tick.
			p.log.Warn("batch status check failed", "job", name, "error", err)
			allDone = false
			continue
		}

		switch state {
		case gemini.BatchStatePending, gemini.BatchStateRunning:
			s.MarkJobRunning(name)
			allDone = false
		case gemini.BatchStateFailed, gemini.BatchStateCancelled:
			s.MarkJobFailed(name, fmt.Errorf("remote job ended %s", state))
		case gemini.BatchStateSucceeded:
			if err := s.TryBeginResolve(name); err != nil {
				// Another poller claimed it.
				continue
			}
			if err := p.resolveJob(ctx, s, name, job); err != nil {
				s.MarkJobFailed(name, err)
				continue
			}
			s.MarkResolved(name)
		}
	}
	return allDone, nil
}

// resolveJob fetches a finished job's responses and applies them per page.
// Individual item failures fail only their own page.
func (p *Pipeline) resolveJob(ctx context.Context, s *session.Session, name string, job session.BatchJob) error {
	results, err := p.cap.BatchResults(ctx, name, job.Tokens)
	if err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}

	members := make(map[string]int, len(job.Members))
	for i, idx := range job.Members {
		members[job.Tokens[i]] = idx
	}

	applied := 0
	for _, res := range results {
		idx, ok := members[res.Token]
		if !ok {
			p.log.Warn("batch response for unknown token", "job", name, "token", res.Token)
			continue
		}
		if res.Err != nil {
			_ = s.Fail(idx, res.Err)
			continue
		}
		err := s.RecordExtraction(idx, session.ExtractionResult{
			SourceText:   res.Extraction.ExtractedText,
			Translations: res.Extraction.Translations,
		})
		if err != nil && !errors.Is(err, session.ErrCancelled) && !errors.Is(err, session.ErrTerminal) {
			return err
		}
		applied++
	}
	p.log.Info("batch resolved", "job", name, "pages", applied)
	return nil
}

// FinishBatch runs the verify and edit tail for every page whose
// translations arrived through a resolved bulk job.
func (p *Pipeline) FinishBatch(ctx context.Context, s *session.Session) error {
	return p.runPool(ctx, s, s.InStatus(session.StatusTranslating), p.finishPageStep)
}

func (p *Pipeline) finishPageStep(ctx context.Context, s *session.Session, idx int) error {
	return p.finishPage(ctx, s, idx)
}

// RunBatch is the single-process batch flow: submit, poll on an interval
// until the remote job settles, then finish locally.
func (p *Pipeline) RunBatch(ctx context.Context, s *session.Session, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if _, err := p.SubmitBatch(ctx, s); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		done, err := p.Poll(ctx, s)
		if err != nil {
			return err
		}
		if done {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.Cancel()
			return ctx.Err()
		}
	}
	return p.FinishBatch(ctx, s)
}
