// Package backendtest provides a scriptable in-memory prediction backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kiranshivaraju/dnaspecies/internal/backend"
)

// Fake implements backend.Client. Zero fields give a backend that accepts
// every submission as "run-1" and never finds the run.
type Fake struct {
	Base string

	Models    []backend.Model
	ModelsErr error

	PredictFunc func(req backend.PredictRequest) (*backend.PredictResponse, error)

	// Runs are returned by GetRun in order; the last one repeats.
	Runs   []*backend.RunResponse
	RunErr error

	Medoid  []byte
	Files   map[string][]byte
	Archive []byte

	DownloadErr error

	mu       sync.Mutex
	predicts []backend.PredictRequest
	runCalls int
	fetched  []string
}

// Status builds a run response with the given code and JSON body.
func Status(code int, body string) *backend.RunResponse {
	return &backend.RunResponse{StatusCode: code, ContentType: "application/json", Body: []byte(body)}
}

// Completed is a 200 response for a finished run carrying results.
func Completed(results string) *backend.RunResponse {
	return Status(http.StatusOK, `{"job_details":{"status":"completed"},"results":`+results+`}`)
}

// Running is a 200 response for a run still in progress.
func Running() *backend.RunResponse {
	return Status(http.StatusOK, `{"job_details":{"status":"running"}}`)
}

func (f *Fake) BaseURL() string {
	if f.Base == "" {
		return "http://backend.test"
	}
	return f.Base
}

func (f *Fake) ListModels(ctx context.Context) ([]backend.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Models, f.ModelsErr
}

func (f *Fake) Predict(ctx context.Context, req backend.PredictRequest) (*backend.PredictResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.predicts = append(f.predicts, req)
	f.mu.Unlock()

	if f.PredictFunc != nil {
		return f.PredictFunc(req)
	}
	return &backend.PredictResponse{RunID: "run-1"}, nil
}

func (f *Fake) GetRun(ctx context.Context, runID string) (*backend.RunResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	n := f.runCalls
	f.runCalls++
	f.mu.Unlock()

	if f.RunErr != nil {
		return nil, f.RunErr
	}
	if len(f.Runs) == 0 {
		return Status(http.StatusNotFound, `{"detail":"not found"}`), nil
	}
	return f.Runs[min(n, len(f.Runs)-1)], nil
}

func (f *Fake) MedoidJSON(ctx context.Context, runID string) ([]byte, error) {
	f.record("medoid")
	if f.Medoid == nil {
		return nil, fmt.Errorf("%w: /runs/%s/medoid/json status 404", backend.ErrRequestFailed, runID)
	}
	return f.Medoid, nil
}

func (f *Fake) RunFile(ctx context.Context, runID, name string) ([]byte, error) {
	f.record(name)
	body, ok := f.Files[name]
	if !ok {
		return nil, fmt.Errorf("%w: /runs/%s/file/%s status 404", backend.ErrRequestFailed, runID, name)
	}
	return body, nil
}

func (f *Fake) Download(ctx context.Context, runID string, w io.Writer) (int64, error) {
	if f.DownloadErr != nil {
		return 0, f.DownloadErr
	}
	n, err := w.Write(f.Archive)
	return int64(n), err
}

// Predictions returns the submissions received so far.
func (f *Fake) Predictions() []backend.PredictRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.PredictRequest(nil), f.predicts...)
}

// RunCalls is the number of GetRun requests received.
func (f *Fake) RunCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runCalls
}

// Fetched lists the result artifacts requested, in order.
func (f *Fake) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, name)
}

var _ backend.Client = (*Fake)(nil)
