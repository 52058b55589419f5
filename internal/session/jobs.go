package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrResolveInProgress is reported when a second poller attempts to resolve
// a job that is already being resolved or was resolved already.
var ErrResolveInProgress = errors.New("batch job already resolving or resolved")

// RegisterJob records a submitted bulk job and moves its member pages into
// the extracting state.
func (s *Session) RegisterJob(name string, members []int, tokens []string) error {
	if len(members) != len(tokens) {
		return fmt.Errorf("member/token length mismatch: %d vs %d", len(members), len(tokens))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	job := &BatchJob{
		Name:        name,
		Members:     append([]int(nil), members...),
		Tokens:      append([]string(nil), tokens...),
		Status:      JobSubmitted,
		SubmittedAt: time.Now().Unix(),
	}
	for _, idx := range job.Members {
		if idx < 0 || idx >= len(s.pages) {
			return fmt.Errorf("job %q references unknown page %d", name, idx)
		}
		p := s.pages[idx]
		if p.Status == StatusPending {
			p.Status = StatusExtracting
		}
	}
	s.jobs[name] = job
	return nil
}

// Job returns a copy of a registered job's record.
func (s *Session) Job(name string) (BatchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return BatchJob{}, false
	}
	return *job, true
}

// Jobs returns the names of all registered jobs.
func (s *Session) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// MarkJobRunning records that the remote service reported the job running.
func (s *Session) MarkJobRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[name]; ok && job.Status == JobSubmitted {
		job.Status = JobRunning
	}
}

// TryBeginResolve claims a finished job for resolution. Exactly one caller
// wins; concurrent or repeated pollers get ErrResolveInProgress so a job's
// results apply once even when several pollers observe completion.
func (s *Session) TryBeginResolve(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("no job named %q", name)
	}
	switch job.Status {
	case JobSubmitted, JobRunning:
		job.Status = JobResolving
		return nil
	default:
		return ErrResolveInProgress
	}
}

// MarkResolved finishes a claimed resolution.
func (s *Session) MarkResolved(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[name]; ok && job.Status == JobResolving {
		job.Status = JobResolved
	}
}

// MarkJobFailed records that the remote job itself failed or was cancelled.
// Member pages still waiting on it are failed with the given detail.
func (s *Session) MarkJobFailed(name string, failure error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return
	}
	job.Status = JobFailed
	for _, idx := range job.Members {
		p := s.pages[idx]
		if p.Status.Terminal() {
			continue
		}
		p.Status = StatusFailed
		if failure != nil {
			p.Err = failure.Error()
		}
		s.propagateLocked(p)
	}
}
