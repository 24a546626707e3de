// Package workflow drives one upload from file selection through submission,
// polling and result resolution, and holds the presentation state derived
// from it.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/config"
	"github.com/kiranshivaraju/dnaspecies/internal/intake"
	"github.com/kiranshivaraju/dnaspecies/internal/results"
	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Progress milestones.
const (
	progressSelected  = 2
	progressSubmitted = 10
	progressDone      = 100
)

// Options tunes intake and the poll loop.
type Options struct {
	RequestedK     int
	MaxUploadBytes int64
	PollInterval   time.Duration
	MaxAttempts    int
	MaxNotFound    int
}

// OptionsFrom converts the workflow configuration section.
func OptionsFrom(cfg config.WorkflowConfig) Options {
	return Options{
		RequestedK:     cfg.RequestedK,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PollInterval:   cfg.PollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		MaxNotFound:    cfg.MaxNotFound,
	}
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{
		RequestedK:     10,
		MaxUploadBytes: 25 << 20,
		PollInterval:   time.Second,
		MaxAttempts:    180,
		MaxNotFound:    60,
	}
}

// File is an uploaded file as received from the picker or a multipart form.
type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// PollState tracks the active loop. Progress never decreases and stays
// below 100 until the run completes.
type PollState struct {
	Attempt  int  `json:"attempt"`
	NotFound int  `json:"not_found"`
	Progress int  `json:"progress"`
	Active   bool `json:"active"`
}

// Snapshot is a copy of the session state safe to serialize.
type Snapshot struct {
	SessionID  uuid.UUID           `json:"session_id"`
	Job        *models.UploadJob   `json:"job,omitempty"`
	Poll       PollState           `json:"poll"`
	Result     *models.ResultSet   `json:"result,omitempty"`
	Slots      []models.VisualSlot `json:"visual_slots,omitempty"`
	Processing bool                `json:"processing"`
	Error      string              `json:"error,omitempty"`
	Warning    string              `json:"warning,omitempty"`
}

// Session owns one upload lifecycle at a time. All methods are safe for
// concurrent use; at most one poll loop runs per session.
type Session struct {
	ID uuid.UUID

	client   backend.Client
	resolver *results.Resolver
	recorder Recorder
	opts     Options
	now      func() time.Time

	mu         sync.Mutex
	job        *models.UploadJob
	result     *models.ResultSet
	poll       PollState
	processing bool
	err        error
	warning    string

	cancel  context.CancelFunc
	done    chan struct{}
	loopErr error
	// abortPending records an Abort that arrived while a submission was in
	// flight; the loop then starts already cancelled.
	abortPending bool
}

// NewSession creates an empty session. A nil recorder disables persistence.
func NewSession(id uuid.UUID, client backend.Client, opts Options, rec Recorder) *Session {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Session{
		ID:       id,
		client:   client,
		resolver: results.NewResolver(client, client.BaseURL()),
		recorder: rec,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Select replaces the session's file. Any running loop is cancelled and all
// derived state is cleared before the new metadata is recorded.
func (s *Session) Select(f File) intake.Metadata {
	s.stopLoop()

	md := intake.Inspect(f.Name, f.MimeType, f.Content, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.job = &models.UploadJob{
		ID:          uuid.New(),
		FileName:    md.Name,
		MimeType:    md.MimeType,
		SizeBytes:   md.Size,
		Kind:        string(md.Kind),
		RecordCount: md.RecordCount,
		RequestedK:  s.opts.RequestedK,
		Status:      models.UploadStatusPending,
		SelectedAt:  md.SelectedAt,
		CreatedAt:   md.SelectedAt,
		UpdatedAt:   md.SelectedAt,
	}
	return md
}

// Upload selects f, submits it and starts polling in the background. It
// returns once the backend has accepted the submission. ctx bounds the
// submission only; the loop runs until completion, Abort or Reset.
func (s *Session) Upload(ctx context.Context, f File) (*models.UploadJob, error) {
	s.Select(f)

	job, err := s.submit(ctx, f)
	if err != nil {
		return nil, err
	}

	if !s.startLoop(context.WithoutCancel(ctx), job) {
		return nil, errAborted
	}
	return job, nil
}

// Run uploads f and blocks until the loop finishes. Cancelling ctx aborts the
// loop.
func (s *Session) Run(ctx context.Context, f File) (*models.ResultSet, error) {
	if _, err := s.Upload(ctx, f); err != nil {
		return nil, err
	}
	if err := s.Wait(ctx); err != nil {
		s.mu.Lock()
		rs := s.result
		s.mu.Unlock()
		return rs, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, nil
}

// Wait blocks until the active loop exits and returns its outcome. If ctx
// ends first the loop is aborted.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		s.Abort()
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopErr
}

// Abort cancels the active loop and waits for it to exit. The loop reports
// ErrAborted in the error slot. During submission the abort is held until
// the loop starts.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.cancel == nil && s.processing {
		s.abortPending = true
	}
	s.mu.Unlock()

	s.stopLoop()
}

// Reset cancels any loop and clears all state. Once it returns no loop can
// start for the cleared job.
func (s *Session) Reset() {
	for {
		s.stopLoop()

		s.mu.Lock()
		if s.cancel != nil {
			// A loop was installed after stopLoop looked.
			s.mu.Unlock()
			continue
		}
		s.clearLocked()
		s.job = nil
		s.mu.Unlock()
		return
	}
}

// SetRequestedK overrides the cluster count requested for later selections.
// Values below 1 are ignored.
func (s *Session) SetRequestedK(k int) {
	if k < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.RequestedK = k
}

// DismissWarning clears the warning slot.
func (s *Session) DismissWarning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warning = ""
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:  s.ID,
		Poll:       s.poll,
		Result:     s.result,
		Processing: s.processing,
		Error:      Message(s.err),
		Warning:    s.warning,
	}
	if s.job != nil {
		job := *s.job
		snap.Job = &job
	}
	if s.result != nil {
		snap.Slots = results.Slots(s.result.Visuals, s.result.VisualOrder)
	}
	return snap
}

// Err returns the error in the error slot.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) submit(ctx context.Context, f File) (*models.UploadJob, error) {
	s.mu.Lock()
	job := s.job
	if job == nil {
		s.mu.Unlock()
		return nil, ErrNoFile
	}
	md := intake.Metadata{
		Name:        job.FileName,
		MimeType:    job.MimeType,
		Size:        job.SizeBytes,
		RecordCount: job.RecordCount,
	}
	requested := job.RequestedK
	s.processing = true
	s.poll.Progress = progressSelected
	s.mu.Unlock()

	if err := intake.Validate(md, s.opts.MaxUploadBytes); err != nil {
		s.submitFailed(err)
		return nil, err
	}

	k, warning := intake.ClusterParam(requested, md.RecordCount)
	if warning != "" {
		s.mu.Lock()
		s.warning = warning
		s.mu.Unlock()
	}

	req := backend.PredictRequest{
		FileName:      md.Name,
		MimeType:      f.MimeType,
		Content:       f.Content,
		ClusterMethod: backend.DefaultClusterMethod,
		K:             k,
		Threshold:     backend.DefaultThreshold,
	}
	if req.MimeType == "" {
		req.MimeType = md.MimeType
	}

	if list, err := s.client.ListModels(ctx); err == nil && len(list) > 0 {
		req.ModelRunID = list[0].RunID
	} else if err != nil {
		slog.Debug("model lookup failed, submitting unpinned", "session_id", s.ID, "error", err)
	}

	resp, err := s.client.Predict(ctx, req)
	if err != nil {
		err = submissionError(err)
		s.submitFailed(err)
		return nil, err
	}

	s.mu.Lock()
	if s.job != job {
		// Replaced by a newer selection while the request was in flight.
		s.mu.Unlock()
		return nil, ErrAborted
	}
	job.ClusterK = k
	job.RunID = resp.RunID
	job.ModelID = req.ModelRunID
	job.ModelUsed = resp.ModelUsed
	job.Status = models.UploadStatusSubmitted
	job.UpdatedAt = s.now()
	s.poll.Progress = progressSubmitted
	out := *job
	s.mu.Unlock()

	slog.Info("upload submitted",
		"session_id", s.ID, "upload_id", out.ID, "run_id", out.RunID, "k", k, "model", req.ModelRunID)
	s.recorder.Submitted(ctx, out)
	return &out, nil
}

func (s *Session) submitFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrLocked(err)
	s.processing = false
	s.poll.Progress = 0
	slog.Warn("upload rejected", "session_id", s.ID, "error", err)
}

// startLoop cancels any previous loop, waits for it to exit, then starts a
// new one for job. It reports false without starting when job is no longer
// the session's current job.
func (s *Session) startLoop(parent context.Context, job *models.UploadJob) bool {
	s.stopLoop()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	if s.job == nil || s.job.ID != job.ID {
		s.mu.Unlock()
		cancel()

		out := *job
		msg := Message(errAborted)
		out.Status = models.UploadStatusAborted
		out.ErrorMessage = &msg
		out.UpdatedAt = s.now()
		s.recorder.StatusChanged(parent, out)
		return false
	}
	if s.abortPending {
		s.abortPending = false
		cancel()
	}
	runID := s.job.RunID
	s.cancel = cancel
	s.done = done
	s.loopErr = nil
	s.poll.Active = true
	s.poll.Attempt = 0
	s.poll.NotFound = 0
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		s.runLoop(ctx, runID)
	}()
	return true
}

// stopLoop cancels the active loop, if any, and blocks until it has exited.
func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	if s.done == done {
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Session) clearLocked() {
	s.result = nil
	s.poll = PollState{}
	s.processing = false
	s.err = nil
	s.warning = ""
	s.loopErr = nil
	s.abortPending = false
}

// setErrLocked fills the error slot; the latest error replaces any warning.
func (s *Session) setErrLocked(err error) {
	s.err = err
	if err != nil {
		s.warning = ""
	}
}
