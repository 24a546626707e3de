package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/backend/backendtest"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
)

// --- mock cache ---

type mockCache struct {
	data    map[string][]byte
	results map[string][]byte
	getErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, results: map[string][]byte{}}
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.data[key] = value
	return nil
}
func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *mockCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}
func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) SetUploadStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetUploadStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (m *mockCache) SetResult(_ context.Context, runID string, data []byte, _ time.Duration) error {
	m.results[runID] = data
	return nil
}
func (m *mockCache) GetResult(_ context.Context, runID string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.results[runID]
	return v, ok, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- helpers ---

const fiveMedoids = `{"medoid_predictions":[
	{"cluster":0,"predicted_species":"Canis lupus","confidence":0.9},
	{"cluster":1,"predicted_species":"Felis catus","confidence":0.8},
	{"cluster":2,"predicted_species":"Mus musculus","confidence":0.7},
	{"cluster":3,"predicted_species":"Bos taurus","confidence":0.6},
	{"cluster":4,"predicted_species":"Gallus gallus","confidence":0.5}
]}`

const fiveRecords = ">a\nACGT\n>b\nACGT\n>c\nACGT\n>d\nACGT\n>e\nACGT\n"

func testRegistry(fake *backendtest.Fake) *workflow.Registry {
	opts := workflow.DefaultOptions()
	opts.PollInterval = time.Millisecond
	opts.MaxAttempts = 10
	return workflow.NewRegistry(fake, opts, nil)
}

// uploadRouter mounts the session handlers the way the API router does.
func uploadRouter(reg *workflow.Registry) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/uploads", NewCreateUploadHandler(reg, 1<<20))
	r.Get("/api/v1/uploads/{sessionID}", NewGetUploadHandler(reg))
	r.Delete("/api/v1/uploads/{sessionID}", NewDeleteUploadHandler(reg))
	r.Post("/api/v1/uploads/{sessionID}/warning/dismiss", NewDismissWarningHandler(reg))
	r.Get("/api/v1/uploads/{sessionID}/details", NewDetailsHandler(reg))
	r.Get("/api/v1/uploads/{sessionID}/download", NewDownloadHandler(reg))
	r.Get("/api/v1/uploads/{sessionID}/run-id", NewRunIDHandler(reg))
	return r
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", "text/plain")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func uploadReq(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, filename, content, fields)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	r.Header.Set("Content-Type", ct)
	return r
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code, env.Error.Message
}
