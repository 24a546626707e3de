package results

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// Confidence-like keys, in priority order. The first present non-null key
// wins and is collapsed into "confidence".
var confidenceKeys = []string{"confidence", "conf", "prob", "probability"}

// Keys used to backfill predicted_species, in priority order.
var speciesKeys = []string{"species", "prediction", "label"}

var (
	reTuple       = regexp.MustCompile(`\(([^()]+)\)`)
	reTupleNumber = regexp.MustCompile(`-?\d+\.?\d*`)
	reLeadingNum  = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// FormatRow returns a copy of a representative prediction row with its
// confidence, top_labels and top_probs fields rendered for display and
// predicted_species backfilled.
func FormatRow(r *models.Row) *models.Row {
	out := r.Clone()

	for _, k := range confidenceKeys {
		v, ok := out.Get(k)
		if !ok || v == nil {
			continue
		}
		if f, ok := leadingNumber(v); ok {
			out.Set("confidence", Percent(f))
		} else {
			out.Set("confidence", Stringify(v))
		}
		if k != "confidence" {
			out.Delete(k)
		}
		break
	}

	if labels, ok := out.Get("top_labels"); ok {
		switch t := labels.(type) {
		case []any:
			out.Set("top_labels", joinValues(t, ", "))
		case string:
			out.Set("top_labels", stripQuotes(t))
		}
	}

	if tp, ok := out.Get("top_probs"); ok && truthy(tp) {
		out.Set("top_probs", FormatTopProbs(tp))
	}

	if sp, _ := out.Get("predicted_species"); !truthy(sp) {
		if anyTruthy(out, speciesKeys) {
			for _, k := range speciesKeys {
				if v, ok := out.Get(k); ok && v != nil {
					out.Set("predicted_species", v)
					break
				}
			}
		}
	}

	return out
}

// FormatTopProbs renders a top-probabilities value as "label (p%), ...".
// Strings holding "(index, probability)" tuples are parsed; strings without
// tuples are returned unchanged. Arrays may hold [label, p] pairs or objects
// with label|name and prob|probability fields.
func FormatTopProbs(v any) string {
	if !truthy(v) {
		return "-"
	}

	switch t := v.(type) {
	case string:
		matches := reTuple.FindAllStringSubmatch(t, -1)
		if len(matches) == 0 {
			return t
		}
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			nums := reTupleNumber.FindAllString(m[1], -1)
			idx, prob := "", "?"
			if len(nums) > 0 {
				idx = nums[0]
			}
			if len(nums) > 1 {
				f, _ := strconv.ParseFloat(strings.TrimSuffix(nums[1], "."), 64)
				prob = Percent(f)
			}
			parts = append(parts, fmt.Sprintf("%s (%s)", idx, prob))
		}
		return strings.Join(parts, ", ")

	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			parts = append(parts, formatProbItem(it))
		}
		return strings.Join(parts, ", ")

	default:
		return Stringify(v)
	}
}

func formatProbItem(it any) string {
	switch e := it.(type) {
	case []any:
		if len(e) < 2 {
			return Stringify(e)
		}
		return fmt.Sprintf("%s (%s)", Stringify(e[0]), probString(e[1]))
	case *models.Row:
		label := firstNonNil(e, "label", "name")
		prob := firstNonNil(e, "prob", "probability")
		ls := ""
		if label != nil {
			ls = Stringify(label)
		}
		if ls == "" {
			return Stringify(e)
		}
		return fmt.Sprintf("%s (%s)", ls, probString(prob))
	default:
		return Stringify(e)
	}
}

func probString(v any) string {
	if f, ok := number(v); ok {
		return Percent(f)
	}
	if v == nil {
		return "null"
	}
	return Stringify(v)
}

// Percent renders a 0..1 fraction as a percentage with one decimal place.
func Percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

// Stringify renders a decoded JSON value as display text. Arrays join their
// elements with commas and objects render as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		return joinValues(t, ",")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func joinValues(arr []any, sep string) string {
	parts := make([]string, len(arr))
	for i, it := range arr {
		parts[i] = Stringify(it)
	}
	return strings.Join(parts, sep)
}

// number reports the value of a JSON number.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

// leadingNumber parses a number from the start of the value's text form,
// ignoring trailing characters ("0.9 (high)" yields 0.9).
func leadingNumber(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	switch v.(type) {
	case *models.Row:
		return 0, false
	}
	m := reLeadingNum.FindString(strings.TrimSpace(Stringify(v)))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// truthy mirrors the loose emptiness checks applied to backend fields:
// nil, "", false and zero are empty.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

func anyTruthy(r *models.Row, keys []string) bool {
	for _, k := range keys {
		if v, _ := r.Get(k); truthy(v) {
			return true
		}
	}
	return false
}

func firstNonNil(r *models.Row, keys ...string) any {
	for _, k := range keys {
		if v, ok := r.Get(k); ok && v != nil {
			return v
		}
	}
	return nil
}

func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}
