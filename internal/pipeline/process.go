package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivritype/tirgum/internal/gemini"
	"github.com/ivritype/tirgum/internal/session"
)

// processPage runs one page end to end: extract+translate, then the shared
// verify and edit tail. Pages whose claim fails (already cancelled, already
// terminal) are skipped without error.
func (p *Pipeline) processPage(ctx context.Context, s *session.Session, idx int) error {
	if err := s.Begin(idx, session.StatusPending, session.StatusExtracting); err != nil {
		if errors.Is(err, session.ErrCancelled) || errors.Is(err, session.ErrTerminal) {
			return nil
		}
		return err
	}

	ext, retries, err := p.cap.ExtractAndTranslate(ctx, s.PageImage(idx))
	if err != nil {
		return p.failPage(s, idx, fmt.Errorf("extract: %w", err))
	}
	if err := s.RecordExtraction(idx, session.ExtractionResult{
		SourceText:   ext.ExtractedText,
		Translations: ext.Translations,
		Retries:      retries,
	}); err != nil {
		if errors.Is(err, session.ErrCancelled) {
			return nil
		}
		return err
	}

	return p.finishPage(ctx, s, idx)
}

// finishPage takes a page already holding translations (status translating)
// through verification and image editing to completion. It is shared by the
// sync path and by batch resolution.
func (p *Pipeline) finishPage(ctx context.Context, s *session.Session, idx int) error {
	cur := session.StatusTranslating
	sourceText, translations := s.Translations(idx)

	// Pages with no translatable text pass through with the original image.
	if len(translations) == 0 {
		if err := s.Begin(idx, cur, session.StatusEditing); err != nil {
			if errors.Is(err, session.ErrCancelled) || errors.Is(err, session.ErrTerminal) {
				return nil
			}
			return err
		}
		if err := s.Complete(idx, s.PageImage(idx), 0); err != nil && !errors.Is(err, session.ErrCancelled) {
			return err
		}
		return nil
	}

	if p.opts.Verify {
		for {
			if err := s.Begin(idx, cur, session.StatusVerifying); err != nil {
				if errors.Is(err, session.ErrCancelled) || errors.Is(err, session.ErrTerminal) {
					return nil
				}
				return err
			}
			cur = session.StatusVerifying

			verdict, retries, err := p.cap.Verify(ctx, sourceText, translations)
			if err != nil {
				// Verification is advisory: a broken verifier must not
				// block translation output.
				p.log.Warn("verification unavailable, continuing", "page", idx, "error", err)
				_ = s.RecordVerdict(idx, session.VerdictNone, nil, 0)
				break
			}
			if verdict.Pass {
				if err := s.RecordVerdict(idx, session.VerdictPass, nil, retries); err != nil {
					if errors.Is(err, session.ErrCancelled) {
						return nil
					}
					return err
				}
				break
			}
			if err := s.RecordVerdict(idx, session.VerdictFlag, verdict.Issues, retries); err != nil {
				if errors.Is(err, session.ErrCancelled) {
					return nil
				}
				return err
			}
			if s.VerifyRetries(idx) > p.opts.VerifyRetryLimit {
				if p.opts.StrictVerify {
					return p.failPage(s, idx, fmt.Errorf("verification flagged after %d attempts: %v",
						s.VerifyRetries(idx), verdict.Issues))
				}
				p.log.Warn("verification still flagged, keeping translation", "page", idx, "issues", verdict.Issues)
				break
			}

			// Flagged within budget: redo the translation and verify again.
			if err := s.Begin(idx, session.StatusVerifying, session.StatusExtracting); err != nil {
				if errors.Is(err, session.ErrCancelled) || errors.Is(err, session.ErrTerminal) {
					return nil
				}
				return err
			}
			ext, retries, err := p.cap.ExtractAndTranslate(ctx, s.PageImage(idx))
			if err != nil {
				return p.failPage(s, idx, fmt.Errorf("re-translate: %w", err))
			}
			if err := s.RecordExtraction(idx, session.ExtractionResult{
				SourceText:   ext.ExtractedText,
				Translations: ext.Translations,
				Retries:      retries,
			}); err != nil {
				if errors.Is(err, session.ErrCancelled) {
					return nil
				}
				return err
			}
			cur = session.StatusTranslating
			sourceText, translations = s.Translations(idx)
			if len(translations) == 0 {
				return p.finishPage(ctx, s, idx)
			}
		}
	}

	if err := s.Begin(idx, cur, session.StatusEditing); err != nil {
		if errors.Is(err, session.ErrCancelled) || errors.Is(err, session.ErrTerminal) {
			return nil
		}
		return err
	}
	output, retries, err := p.cap.EditImage(ctx, s.PageImage(idx), translations)
	if err != nil {
		return p.failPage(s, idx, fmt.Errorf("edit: %w", err))
	}
	if err := s.Complete(idx, output, retries); err != nil && !errors.Is(err, session.ErrCancelled) {
		return err
	}
	return nil
}

// failPage records a page failure. Authentication failures poison the whole
// session so remaining pages do not each burn a doomed request.
func (p *Pipeline) failPage(s *session.Session, idx int, err error) error {
	if errors.Is(err, gemini.ErrAuthentication) {
		s.SetFatal(err)
	}
	p.log.Error("page failed", "page", idx, "error", err)
	if ferr := s.Fail(idx, err); ferr != nil && !errors.Is(ferr, session.ErrCancelled) && !errors.Is(ferr, session.ErrTerminal) {
		return ferr
	}
	return err
}
