package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/results"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Progress increments per non-terminal attempt and their caps.
const (
	runningStep = 4
	runningCap  = 95
	pendingStep = 3
	pendingCap  = 90
)

// runLoop polls runID until a terminal outcome and records it.
func (s *Session) runLoop(ctx context.Context, runID string) {
	rs, err := s.pollRun(ctx, runID)
	s.finish(ctx, rs, err)
}

// pollRun queries the run status at a fixed interval. It returns the resolved
// results on completion; on any other terminal outcome it returns an error
// and, for a completed run without rows, both.
func (s *Session) pollRun(ctx context.Context, runID string) (*models.ResultSet, error) {
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, errAborted
		}
		s.setAttempt(attempt)

		resp, err := s.client.GetRun(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errAborted
			}
			return nil, fmt.Errorf("polling run %s: %w", runID, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			s.resetNotFound()
			p := results.ParsePayload(resp.Body)

			switch p.Job.Status {
			case results.StatusFailed:
				return nil, &failure{kind: ErrJobFailed, msg: p.Job.FailureMessage()}
			case results.StatusCompleted:
				s.setProgress(progressDone)
				slog.Info("run completed", "session_id", s.ID, "run_id", runID, "attempt", attempt)
				return s.resolve(ctx, runID, p)
			}
			s.markRunning(ctx)
			s.advance(runningStep, runningCap)

		case http.StatusNotFound:
			if n := s.incNotFound(); s.opts.MaxNotFound > 0 && n >= s.opts.MaxNotFound {
				return nil, &failure{
					kind: ErrUnknownRun,
					msg:  fmt.Sprintf("Run %s was not found after %d attempts.", runID, n),
				}
			}
			s.markRunning(ctx)
			s.advance(pendingStep, pendingCap)

		default:
			return nil, &failure{
				kind: ErrUnexpectedStatus,
				msg: fmt.Sprintf("Server responded %d: %s",
					resp.StatusCode, backend.ErrorDetail(resp.Body, resp.StatusCode)),
			}
		}

		if attempt == s.opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(s.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errAborted
		case <-timer.C:
		}
	}

	return nil, errTimedOut
}

func (s *Session) resolve(ctx context.Context, runID string, p *results.RunPayload) (*models.ResultSet, error) {
	rs, err := s.resolver.Resolve(ctx, runID, p)
	switch {
	case errors.Is(err, results.ErrNoResults):
		return rs, errNoResults
	case err != nil:
		if ctx.Err() != nil {
			return nil, errAborted
		}
		return nil, fmt.Errorf("resolving results for run %s: %w", runID, err)
	}
	return rs, nil
}

// finish records the loop outcome in the session and the recorder.
func (s *Session) finish(ctx context.Context, rs *models.ResultSet, err error) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	s.mu.Lock()
	job := s.job
	if job == nil {
		s.mu.Unlock()
		return
	}

	status := terminalStatus(err)
	if rs != nil {
		s.result = rs
		if rs.ModelUsed != "" {
			job.ModelUsed = rs.ModelUsed
		}
	}
	job.Status = status
	job.UpdatedAt = now
	if err != nil {
		msg := Message(err)
		job.ErrorMessage = &msg
	}
	if status == models.UploadStatusCompleted {
		job.CompletedAt = &now
	}

	s.setErrLocked(err)
	s.loopErr = err
	s.processing = false
	s.poll.Active = false
	out := *job
	s.mu.Unlock()

	logArgs := []any{"session_id", s.ID, "run_id", out.RunID, "status", status}
	if err != nil {
		slog.Warn("poll loop finished", append(logArgs, "error", err)...)
	} else {
		slog.Info("poll loop finished", append(logArgs, "rows", len(rs.Rows))...)
	}

	s.recorder.StatusChanged(ctx, out)
	if rs != nil {
		s.recorder.Resolved(ctx, out, rs)
	}
}

func terminalStatus(err error) string {
	switch {
	case err == nil, errors.Is(err, results.ErrNoResults):
		return models.UploadStatusCompleted
	case errors.Is(err, ErrAborted):
		return models.UploadStatusAborted
	case errors.Is(err, ErrTimeout):
		return models.UploadStatusTimedOut
	default:
		return models.UploadStatusFailed
	}
}

func (s *Session) markRunning(ctx context.Context) {
	s.mu.Lock()
	job := s.job
	if job == nil || job.Status != models.UploadStatusSubmitted {
		s.mu.Unlock()
		return
	}
	job.Status = models.UploadStatusRunning
	job.UpdatedAt = s.now()
	out := *job
	s.mu.Unlock()

	s.recorder.StatusChanged(ctx, out)
}

func (s *Session) setAttempt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll.Attempt = n
}

func (s *Session) setProgress(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll.Progress = p
}

// advance raises progress by step up to limit without ever lowering it.
func (s *Session) advance(step, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := min(limit, s.poll.Progress+step)
	s.poll.Progress = max(s.poll.Progress, next)
}

func (s *Session) incNotFound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll.NotFound++
	return s.poll.NotFound
}

func (s *Session) resetNotFound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll.NotFound = 0
}
