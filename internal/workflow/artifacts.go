package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/kiranshivaraju/dnaspecies/internal/intake"
)

// FileDetails is the downloadable snapshot of the selected file and run.
type FileDetails struct {
	Filename          string  `json:"filename"`
	MimeType          string  `json:"mimeType"`
	SizeBytes         int64   `json:"sizeBytes"`
	SizeHuman         string  `json:"sizeHuman"`
	DetectedSequences *int    `json:"detectedSequences"`
	SelectedAt        string  `json:"selectedAt"`
	RunID             *string `json:"runId"`
	ModelUsed         *string `json:"modelUsed"`
	Progress          int     `json:"progress"`
}

// Details returns the file details document and its download filename,
// <basename>_details.json.
func (s *Session) Details() (string, []byte, error) {
	s.mu.Lock()
	if s.job == nil {
		s.mu.Unlock()
		return "", nil, ErrNoFile
	}
	job := *s.job
	progress := s.poll.Progress
	s.mu.Unlock()

	mimeType := job.MimeType
	if mimeType == "" {
		mimeType = "unknown"
	}
	count := job.RecordCount
	d := FileDetails{
		Filename:          job.FileName,
		MimeType:          mimeType,
		SizeBytes:         job.SizeBytes,
		SizeHuman:         intake.HumanSize(job.SizeBytes),
		DetectedSequences: &count,
		SelectedAt:        job.SelectedAt.Format(time.RFC3339),
		RunID:             optional(job.RunID),
		ModelUsed:         optional(job.ModelUsed),
		Progress:          progress,
	}

	body, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encoding details: %w", err)
	}
	return DetailsFilename(job.FileName), body, nil
}

var reExtension = regexp.MustCompile(`\.[^/.]+$`)

// DetailsFilename strips the last extension: "reads.fasta" -> "reads_details.json".
func DetailsFilename(name string) string {
	return reExtension.ReplaceAllString(name, "") + "_details.json"
}

// ArchiveFilename is the download name of a run's output archive.
func ArchiveFilename(runID string) string {
	return runID + "_results.zip"
}

// RunID returns the current run id, or "" before submission succeeds.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return ""
	}
	return s.job.RunID
}

// DownloadArchive streams the run's output archive into w and returns its
// download filename. Failures are also reported in the error slot.
func (s *Session) DownloadArchive(ctx context.Context, w io.Writer) (string, int64, error) {
	runID := s.RunID()
	if runID == "" {
		return "", 0, ErrNoRunID
	}

	n, err := s.client.Download(ctx, runID, w)
	if err != nil {
		err = downloadError(err)
		s.mu.Lock()
		s.setErrLocked(err)
		s.mu.Unlock()
		return "", n, err
	}
	return ArchiveFilename(runID), n, nil
}

// CopyRunID hands out the run id and confirms it in the warning slot.
func (s *Session) CopyRunID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil || s.job.RunID == "" {
		err := &failure{kind: ErrNoRunID, msg: "Failed to copy run id to clipboard"}
		s.setErrLocked(err)
		return "", err
	}
	s.warning = "Run ID copied to clipboard"
	return s.job.RunID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
