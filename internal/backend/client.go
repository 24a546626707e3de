package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
	"github.com/sony/gobreaker"
)

// Sentinel errors for prediction backend failures.
var (
	ErrBackendUnreachable = errors.New("prediction backend unreachable")
	ErrBackendTimeout     = errors.New("prediction backend timeout")
	ErrSubmissionFailed   = errors.New("upload failed")
	ErrMissingRunID       = errors.New("server did not return run_id for prediction job")
	ErrRequestFailed      = errors.New("backend request failed")
)

// Fixed submission parameters expected by the prediction API.
const (
	DefaultClusterMethod = "kmeans"
	DefaultThreshold     = "0.7"
)

const (
	maxJSONBody int64 = 8 << 20
	maxFileBody int64 = 64 << 20
)

// Client is the interface for talking to the prediction API.
type Client interface {
	ListModels(ctx context.Context) ([]Model, error)
	Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error)
	GetRun(ctx context.Context, runID string) (*RunResponse, error)
	MedoidJSON(ctx context.Context, runID string) ([]byte, error)
	RunFile(ctx context.Context, runID, name string) ([]byte, error)
	Download(ctx context.Context, runID string, w io.Writer) (int64, error)
	BaseURL() string
}

// Model is one entry of the backend's model registry.
type Model struct {
	RunID string      `json:"run_id"`
	Info  *models.Row `json:"info"`
}

// PredictRequest carries the uploaded file and derived clustering parameters.
type PredictRequest struct {
	FileName      string
	MimeType      string
	Content       []byte
	ClusterMethod string
	K             int
	Threshold     string
	ModelRunID    string
}

// PredictResponse is the backend's acknowledgement of a submission.
type PredictResponse struct {
	RunID     string `json:"run_id"`
	ModelUsed string `json:"model_used,omitempty"`
}

// RunResponse is the raw outcome of a run status request. The poll loop
// interprets status codes itself, so no status is treated as an error here.
type RunResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTTPClient implements Client using the prediction API's HTTP endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	// stream serves archive downloads: only the wait for response headers
	// is bounded, so long transfers are not cut off.
	stream  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a new prediction API client. timeout bounds every
// individual request; for archive downloads it bounds the wait for headers.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{Transport: transport},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "prediction-backend",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.get(ctx, "/models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: models status %d", ErrRequestFailed, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, maxJSONBody)
	if err != nil {
		return nil, fmt.Errorf("reading models response: %w", err)
	}

	var modelsResp struct {
		Models []*models.Row `json:"models"`
	}
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("decoding models response: %w", err)
	}

	out := make([]Model, 0, len(modelsResp.Models))
	for _, row := range modelsResp.Models {
		if row == nil {
			continue
		}
		id, _ := row.Get("run_id")
		out = append(out, Model{RunID: scalarString(id), Info: row})
	}
	return out, nil
}

func (c *HTTPClient) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	body, contentType, err := buildPredictForm(req)
	if err != nil {
		return nil, fmt.Errorf("building predict form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body, maxJSONBody)
	if err != nil {
		return nil, fmt.Errorf("reading predict response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, ErrorDetail(respBody, resp.StatusCode))
	}

	v, err := models.ParseJSON(respBody)
	if err != nil {
		return nil, fmt.Errorf("decoding predict response: %w", err)
	}
	row, ok := v.(*models.Row)
	if !ok {
		return nil, ErrMissingRunID
	}

	runID, _ := row.Get("run_id")
	out := &PredictResponse{RunID: scalarString(runID)}
	if out.RunID == "" {
		return nil, ErrMissingRunID
	}
	if used, ok := row.Get("model_used"); ok {
		out.ModelUsed = scalarString(used)
	}
	return out, nil
}

func (c *HTTPClient) GetRun(ctx context.Context, runID string) (*RunResponse, error) {
	resp, err := c.get(ctx, "/runs/"+url.PathEscape(runID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, maxJSONBody)
	if err != nil {
		return nil, fmt.Errorf("reading run response: %w", err)
	}

	return &RunResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *HTTPClient) MedoidJSON(ctx context.Context, runID string) ([]byte, error) {
	return c.fetch(ctx, "/runs/"+url.PathEscape(runID)+"/medoid/json", maxJSONBody)
}

func (c *HTTPClient) RunFile(ctx context.Context, runID, name string) ([]byte, error) {
	return c.fetch(ctx, "/runs/"+url.PathEscape(runID)+"/file/"+url.PathEscape(name), maxFileBody)
}

// Download streams the run's output archive into w.
func (c *HTTPClient) Download(ctx context.Context, runID string, w io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/runs/"+url.PathEscape(runID)+"/download", nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.doWith(c.stream, httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := readLimited(resp.Body, maxJSONBody)
		return 0, fmt.Errorf("%w: failed to download results: %s", ErrRequestFailed, ErrorDetail(body, resp.StatusCode))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copying archive: %w", err)
	}
	return n, nil
}

func (c *HTTPClient) fetch(ctx context.Context, path string, limit int64) ([]byte, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s status %d", ErrRequestFailed, path, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return c.do(httpReq)
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	return c.doWith(c.client, req)
}

func (c *HTTPClient) doWith(client *http.Client, req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")

	v, err := c.breaker.Execute(func() (any, error) {
		return client.Do(req)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return v.(*http.Response), nil
}

func buildPredictForm(req PredictRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="raw_fasta"; filename="%s"`, escapeQuotes(req.FileName)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, "", err
	}

	method := req.ClusterMethod
	if method == "" {
		method = DefaultClusterMethod
	}
	threshold := req.Threshold
	if threshold == "" {
		threshold = DefaultThreshold
	}
	k := req.K
	if k < 1 {
		k = 1
	}

	fields := [][2]string{
		{"cluster_method", method},
		{"kmeans_n", strconv.Itoa(k)},
		{"threshold", threshold},
	}
	if req.ModelRunID != "" {
		fields = append(fields, [2]string{"model_run_id", req.ModelRunID})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// ErrorDetail extracts a human-readable message from an error response body:
// the JSON "detail" field when present, the JSON text otherwise, then the raw
// text, then the HTTP status.
func ErrorDetail(body []byte, status int) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("HTTP %d", status)
	}

	v, err := models.ParseJSON(body)
	if err != nil {
		return text
	}

	switch t := v.(type) {
	case *models.Row:
		if d, ok := t.Get("detail"); ok && d != nil {
			if s, ok := d.(string); ok {
				return s
			}
			return compactJSON(d, text)
		}
		return compactJSON(t, text)
	case []any:
		return compactJSON(t, text)
	case string:
		if t == "" {
			return fmt.Sprintf("HTTP %d", status)
		}
		return t
	case nil:
		return fmt.Sprintf("HTTP %d", status)
	default:
		return text
	}
}

func compactJSON(v any, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

// scalarString renders a decoded JSON scalar as a string; objects and arrays yield "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// readLimited reads at most maxBytes from r and fails if the body is larger.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
