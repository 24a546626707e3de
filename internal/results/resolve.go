package results

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// ErrNoResults is returned when a run completed but no strategy produced a
// table. The returned ResultSet still carries the visuals.
var ErrNoResults = errors.New("prediction finished but no tabular results were found")

// DefaultResultFiles are tried when the payload lists no CSV outputs.
var DefaultResultFiles = []string{"cluster_medoid_predictions.csv", "medoid_predictions.csv"}

// Strategy source names recorded on the ResultSet.
const (
	SourceEmbedded       = "embedded"
	SourceMedoidEndpoint = "medoid-endpoint"
	SourceResultFile     = "result-file"
	SourceGeneric        = "generic"
)

// Fetcher is the part of the backend client used to resolve results.
type Fetcher interface {
	MedoidJSON(ctx context.Context, runID string) ([]byte, error)
	RunFile(ctx context.Context, runID, name string) ([]byte, error)
}

// strategy yields representative rows or nothing. Fetch failures count as
// nothing; only context errors are returned.
type strategy struct {
	name    string
	resolve func(ctx context.Context, runID string, p *RunPayload) ([]*models.Row, error)
}

// Resolver turns a completed run payload into a ResultSet.
type Resolver struct {
	fetcher    Fetcher
	baseURL    string
	strategies []strategy
}

// NewResolver creates a Resolver. baseURL is the prediction API base used to
// build visualization URLs.
func NewResolver(fetcher Fetcher, baseURL string) *Resolver {
	r := &Resolver{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
	r.strategies = []strategy{
		{name: SourceEmbedded, resolve: r.embedded},
		{name: SourceMedoidEndpoint, resolve: r.medoidEndpoint},
		{name: SourceResultFile, resolve: r.resultFile},
	}
	return r
}

// Resolve evaluates the representative-row strategies in order and stops at
// the first that yields rows; those rows are formatted for display. When none
// does, the generic normalizer runs over the results section unformatted.
func (r *Resolver) Resolve(ctx context.Context, runID string, p *RunPayload) (*models.ResultSet, error) {
	rs := &models.ResultSet{
		RunID:     runID,
		ModelUsed: p.ModelUsed(),
	}
	rs.Visuals, rs.VisualOrder = Visuals(r.baseURL, runID, p.Results)

	for _, s := range r.strategies {
		rows, err := s.resolve(ctx, runID, p)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		formatted := make([]*models.Row, len(rows))
		for i, row := range rows {
			formatted[i] = FormatRow(row)
		}
		rs.Rows = formatted
		rs.Columns = Columns(formatted)
		rs.Source = s.name
		slog.Debug("results resolved", "run_id", runID, "source", s.name, "rows", len(rows))
		return rs, nil
	}

	rows := Normalize(p.Results.Value)
	rs.Rows = rows
	rs.Columns = Columns(rows)
	if len(rows) == 0 {
		rs.Rows = []*models.Row{}
		return rs, ErrNoResults
	}
	rs.Source = SourceGeneric
	slog.Debug("results resolved", "run_id", runID, "source", SourceGeneric, "rows", len(rows))
	return rs, nil
}

func (r *Resolver) embedded(_ context.Context, _ string, p *RunPayload) ([]*models.Row, error) {
	return p.Results.MedoidPredictions, nil
}

func (r *Resolver) medoidEndpoint(ctx context.Context, runID string, _ *RunPayload) ([]*models.Row, error) {
	body, err := r.fetcher.MedoidJSON(ctx, runID)
	if err != nil {
		return nil, ignoreFetchError(ctx, "medoid json", runID, err)
	}

	v, err := models.ParseJSON(body)
	if err != nil {
		return nil, nil
	}
	obj, ok := v.(*models.Row)
	if !ok {
		return nil, nil
	}
	arr, _ := field(obj, "medoid_predictions").([]any)
	return rowsOf(arr), nil
}

func (r *Resolver) resultFile(ctx context.Context, runID string, p *RunPayload) ([]*models.Row, error) {
	var body []byte

	if name := CandidateFile(p.Results.Files); name != "" {
		b, err := r.fetcher.RunFile(ctx, runID, name)
		if err != nil {
			return nil, ignoreFetchError(ctx, name, runID, err)
		}
		body = b
	} else {
		for _, name := range DefaultResultFiles {
			b, err := r.fetcher.RunFile(ctx, runID, name)
			if err != nil {
				if err := ignoreFetchError(ctx, name, runID, err); err != nil {
					return nil, err
				}
				continue
			}
			body = b
			break
		}
	}

	if body == nil {
		return nil, nil
	}
	_, rows := ParseCSV(string(body))
	return rows, nil
}

// CandidateFile picks the listed output most likely to hold representative
// predictions: a CSV whose name mentions "medoid", else the first CSV.
func CandidateFile(files []string) string {
	for _, f := range files {
		lf := strings.ToLower(f)
		if strings.Contains(lf, "medoid") && strings.HasSuffix(lf, ".csv") {
			return f
		}
	}
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), ".csv") {
			return f
		}
	}
	return ""
}

// Normalize extracts rows from an arbitrary results value: an array of
// records, a "predictions" array, CSV text, or the first record array or CSV
// string among the object's fields. A plain object with none of these
// becomes a single row.
func Normalize(v Value) []*models.Row {
	switch v.Shape {
	case ShapeRecords:
		return v.Records
	case ShapeCSV:
		_, rows := ParseCSV(v.Text)
		return rows
	case ShapeObject:
		if preds, ok := field(v.Object, "predictions").([]any); ok {
			return rowsOf(preds)
		}
		for _, k := range v.Object.Keys() {
			child := ParseValue(field(v.Object, k))
			switch child.Shape {
			case ShapeCSV:
				if _, rows := ParseCSV(child.Text); len(rows) > 0 {
					return rows
				}
			case ShapeRecords:
				return child.Records
			}
		}
		if v.Object.Len() == 0 {
			return nil
		}
		return []*models.Row{v.Object}
	}
	return nil
}

func ignoreFetchError(ctx context.Context, what, runID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.Debug("result fetch failed", "run_id", runID, "resource", what, "error", err)
	return nil
}
