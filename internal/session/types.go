package session

import (
	"github.com/ivritype/tirgum/internal/fingerprint"
	"github.com/ivritype/tirgum/internal/gemini"
)

// Mode selects how a session's pages are processed.
type Mode string

const (
	// ModeSync drives one capability call chain per page immediately.
	ModeSync Mode = "sync"
	// ModeBatch groups extract+translate into one asynchronous bulk job.
	ModeBatch Mode = "batch"
)

// Status is a page's current processing state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusExtracting  Status = "extracting"
	StatusTranslating Status = "translating"
	StatusVerifying   Status = "verifying"
	StatusEditing     Status = "editing"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusDuplicate   Status = "duplicate"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusDuplicate, StatusCancelled:
		return true
	default:
		return false
	}
}

// VerifyVerdict is the recorded outcome of the verification stage.
type VerifyVerdict string

const (
	VerdictNone VerifyVerdict = "none"
	VerdictPass VerifyVerdict = "pass"
	VerdictFlag VerifyVerdict = "flag"
)

// Page is one unit of work: a single uploaded image and its derived
// artifacts. Pages are owned by their Session; all mutation goes through
// Session methods under the session lock.
type Page struct {
	Index       int
	Name        string
	Image       []byte // canonical PNG bytes
	Fingerprint fingerprint.Key

	Status      Status
	DuplicateOf int // representative page index, -1 if not a duplicate

	SourceText   string
	Translations []gemini.Translation

	Verdict      VerifyVerdict
	VerifyIssues []string

	Output []byte

	Err           string
	Retries       int
	VerifyRetries int
}

// snapshot returns a copy safe to hand out without the session lock.
func (p *Page) snapshot() PageStatus {
	issues := make([]string, len(p.VerifyIssues))
	copy(issues, p.VerifyIssues)
	return PageStatus{
		Index:        p.Index,
		Name:         p.Name,
		Status:       p.Status,
		DuplicateOf:  p.DuplicateOf,
		Verdict:      p.Verdict,
		VerifyIssues: issues,
		Err:          p.Err,
		Retries:      p.Retries,
		HasOutput:    len(p.Output) > 0,
	}
}

// PageStatus is the externally visible view of one page.
type PageStatus struct {
	Index        int           `json:"index"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	DuplicateOf  int           `json:"duplicate_of"`
	Verdict      VerifyVerdict `json:"verdict"`
	VerifyIssues []string      `json:"verify_issues,omitempty"`
	Err          string        `json:"error,omitempty"`
	Retries      int           `json:"retries"`
	HasOutput    bool          `json:"has_output"`
}

// CompletedPage pairs a finished page's identity with its output image.
type CompletedPage struct {
	Index  int
	Name   string
	Output []byte
}

// BatchJobStatus is the local lifecycle of an asynchronous bulk job.
type BatchJobStatus string

const (
	JobSubmitted BatchJobStatus = "submitted"
	JobRunning   BatchJobStatus = "running"
	JobResolving BatchJobStatus = "resolving"
	JobResolved  BatchJobStatus = "resolved"
	JobFailed    BatchJobStatus = "failed"
)

// BatchJob records one bulk submission. The member set and token order are
// fixed at submission time.
type BatchJob struct {
	Name        string
	Members     []int    // page indexes, in submission order
	Tokens      []string // identity tokens, aligned with Members
	Status      BatchJobStatus
	SubmittedAt int64 // unix seconds
}
