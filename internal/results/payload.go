// Package results turns completed prediction runs into display-ready tables
// and visualization URLs.
package results

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Job statuses reported by the backend in job_details.status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const defaultFailure = "Job failed - check server logs."

// Shape tags the recognized forms of a decoded backend value.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeRecords
	ShapeObject
	ShapeCSV
	ShapeUnrecognized
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeRecords:
		return "records"
	case ShapeObject:
		return "object"
	case ShapeCSV:
		return "csv"
	default:
		return "unrecognized"
	}
}

// Value is a decoded backend value classified into one of the known shapes.
// Only the field matching Shape is set; Raw always holds the decoded tree.
type Value struct {
	Shape   Shape
	Records []*models.Row
	Object  *models.Row
	Text    string
	Raw     any
}

// ParseValue classifies a decoded JSON value. Arrays count as records when
// their first element is an object; strings count as CSV when they contain
// both a newline and a comma.
func ParseValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Shape: ShapeNone}
	case *models.Row:
		return Value{Shape: ShapeObject, Object: t, Raw: t}
	case []any:
		if len(t) > 0 {
			if _, ok := t[0].(*models.Row); ok {
				return Value{Shape: ShapeRecords, Records: rowsOf(t), Raw: t}
			}
		}
		return Value{Shape: ShapeUnrecognized, Raw: t}
	case string:
		if strings.Contains(t, "\n") && strings.Contains(t, ",") {
			return Value{Shape: ShapeCSV, Text: t, Raw: t}
		}
		return Value{Shape: ShapeUnrecognized, Text: t, Raw: t}
	default:
		return Value{Shape: ShapeUnrecognized, Raw: t}
	}
}

// JobDetails is the job_details section of a run status response.
type JobDetails struct {
	Status     string
	Error      any
	ModelRunID string
	Outputs    []string
}

// FailureMessage renders the server-reported error of a failed job.
func (j JobDetails) FailureMessage() string {
	switch e := j.Error.(type) {
	case nil:
		return defaultFailure
	case string:
		if e == "" {
			return defaultFailure
		}
		return e
	default:
		b, err := json.Marshal(e)
		if err != nil {
			return defaultFailure
		}
		return string(b)
	}
}

// Section is the results section of a run status response.
type Section struct {
	Value             Value
	MedoidPredictions []*models.Row
	ModelUsed         string
	Files             []string
	Visuals           map[string]string
	VisualOrder       []string
	HasVisuals        bool
}

// RunPayload is the typed view of a GET /runs/{id} response body.
type RunPayload struct {
	Job     JobDetails
	Results Section
}

// ModelUsed prefers the model recorded in the job parameters over the one
// reported in the results.
func (p *RunPayload) ModelUsed() string {
	if p.Job.ModelRunID != "" {
		return p.Job.ModelRunID
	}
	return p.Results.ModelUsed
}

// ParsePayload decodes a run status body. Bodies that are not JSON objects
// yield a payload with no status, which the poll loop treats as still running.
func ParsePayload(body []byte) *RunPayload {
	p := &RunPayload{}

	v, err := models.ParseJSON(body)
	if err != nil {
		return p
	}
	root, ok := v.(*models.Row)
	if !ok {
		return p
	}

	if jd, ok := field(root, "job_details").(*models.Row); ok {
		p.Job.Status, _ = field(jd, "status").(string)
		p.Job.Error = field(jd, "error")
		if params, ok := field(jd, "parameters").(*models.Row); ok {
			p.Job.ModelRunID = scalar(field(params, "model_run_id"))
		}
		p.Job.Outputs = stringsOf(field(jd, "outputs"))
	}

	rv := field(root, "results")
	p.Results.Value = ParseValue(rv)
	res, ok := rv.(*models.Row)
	if !ok {
		return p
	}

	if arr, ok := field(res, "medoid_predictions").([]any); ok {
		p.Results.MedoidPredictions = rowsOf(arr)
	}
	p.Results.ModelUsed = scalar(field(res, "model_used"))
	if files, ok := field(res, "files").([]any); ok {
		p.Results.Files = stringsOf(files)
	} else {
		p.Results.Files = p.Job.Outputs
	}

	for _, key := range []string{"visualizations", "visuals", "images"} {
		raw := field(res, key)
		if raw == nil {
			continue
		}
		p.Results.Visuals, p.Results.VisualOrder, p.Results.HasVisuals = visualMap(raw)
		break
	}
	return p
}

// visualMap flattens a visualization mapping into name -> URL, along with the
// names in payload order. Arrays are keyed by index.
func visualMap(v any) (map[string]string, []string, bool) {
	out := make(map[string]string)
	var order []string
	switch t := v.(type) {
	case *models.Row:
		order = t.Keys()
		for _, k := range order {
			u, _ := t.Get(k)
			out[k] = urlString(u)
		}
	case []any:
		order = make([]string, 0, len(t))
		for i, u := range t {
			k := strconv.Itoa(i)
			order = append(order, k)
			out[k] = urlString(u)
		}
	default:
		return nil, nil, false
	}
	return out, order, true
}

func urlString(v any) string {
	if v == nil {
		return ""
	}
	return Stringify(v)
}

func field(r *models.Row, key string) any {
	if r == nil {
		return nil
	}
	v, _ := r.Get(key)
	return v
}

func rowsOf(arr []any) []*models.Row {
	out := make([]*models.Row, 0, len(arr))
	for _, it := range arr {
		if r, ok := it.(*models.Row); ok {
			out = append(out, r)
		}
	}
	return out
}

func stringsOf(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, it := range arr {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
