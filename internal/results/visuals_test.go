package results

import (
	"testing"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		runID    string
		expected string
	}{
		{name: "absolute kept", ref: "https://cdn.test/a.png", runID: "r", expected: "https://cdn.test/a.png"},
		{name: "root relative", ref: "/runs/abc/file/x.png", runID: "r", expected: testBase + "/runs/abc/file/x.png"},
		{name: "bare filename", ref: "cluster_scatter.png", runID: "abc", expected: testBase + "/runs/abc/file/cluster_scatter.png"},
		{name: "escaped segments", ref: "my plot.png", runID: "run 1", expected: testBase + "/runs/run%201/file/my%20plot.png"},
		{name: "no run id", ref: "x.png", expected: testBase + "/x.png"},
		{name: "empty", ref: "", runID: "abc", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveURL(testBase+"/", tt.runID, tt.ref))
		})
	}
}

func TestVisuals_FromPayload(t *testing.T) {
	p := ParsePayload([]byte(`{"results":{"visualizations":{"scatter_plot.png":"/runs/abc/file/scatter_plot.png","bar.png":"bar.png"}}}`))
	got, order := Visuals(testBase, "abc", p.Results)

	assert.Equal(t, map[string]string{
		"scatter_plot.png": testBase + "/runs/abc/file/scatter_plot.png",
		"bar.png":          testBase + "/runs/abc/file/bar.png",
	}, got)
	assert.Equal(t, []string{"scatter_plot.png", "bar.png"}, order)
}

func TestVisuals_DefaultOrder(t *testing.T) {
	_, order := Visuals(testBase, "abc", Section{})
	assert.Equal(t, models.DefaultVisuals, order)
}

func TestSlots_FuzzyMatchFollowsPayloadOrder(t *testing.T) {
	p := ParsePayload([]byte(`{"results":{"visualizations":{
		"zz_cluster_scatter.png":"http://x/first.png",
		"aa_cluster_scatter.png":"http://x/second.png"
	}}}`))
	visuals, order := Visuals(testBase, "abc", p.Results)

	slots := Slots(visuals, order)
	assert.Equal(t, "http://x/first.png", slots[0].URL, "first key in payload order wins, not first sorted")
}

func TestSlots_UnorderedKeysFallBackToSorted(t *testing.T) {
	visuals := map[string]string{
		"zz_cluster_scatter.png": "http://x/z.png",
		"aa_cluster_scatter.png": "http://x/a.png",
	}
	assert.Equal(t, "http://x/a.png", Slots(visuals, nil)[0].URL)
	assert.Equal(t, "http://x/z.png", Slots(visuals, []string{"zz_cluster_scatter.png"})[0].URL)
}

func TestSlots_FuzzyBoundary(t *testing.T) {
	visuals := map[string]string{"scatter_plot.png": testBase + "/runs/abc/file/scatter_plot.png"}

	slots := Slots(visuals, nil)
	require.Len(t, slots, 3)

	assert.Equal(t, "cluster_scatter.png", slots[0].Name)
	assert.False(t, slots[0].Available, "scatter_plot.png does not contain \"cluster\"")
	assert.Equal(t, "No visual available: Cluster scatter", slots[0].Placeholder)
}

func TestSlots_FuzzyMatch(t *testing.T) {
	visuals := map[string]string{
		"Species_Abundance_Bar_v2.png": "http://x/bar.png",
		"cluster_scatter_2d.png":       "http://x/scatter.png",
	}

	slots := Slots(visuals, nil)
	assert.Equal(t, "http://x/scatter.png", slots[0].URL)
	assert.Equal(t, "http://x/bar.png", slots[1].URL, "fuzzy match is case-insensitive on the key")
	assert.False(t, slots[2].Available)
	assert.Equal(t, "Species composition pie", slots[2].Label)
}

func TestSlots_ExactEmptyIsUnavailable(t *testing.T) {
	visuals := map[string]string{
		"cluster_scatter.png":    "",
		"cluster_scatter_2d.png": "http://x/scatter.png",
	}
	slots := Slots(visuals, nil)
	assert.False(t, slots[0].Available, "an exact key wins over fuzzy matches")
}

func TestPrettyLabel(t *testing.T) {
	assert.Equal(t, "Cluster scatter", PrettyLabel("cluster_scatter.png"))
	assert.Equal(t, "Species abundance bar", PrettyLabel("species_abundance_bar.PNG"))
	assert.Equal(t, "Heatmap.svg", PrettyLabel("heatmap.svg"))
	assert.Equal(t, "", PrettyLabel(".png"))
}

func TestColumns(t *testing.T) {
	rows := []*models.Row{
		models.RowOf("z", 1, "confidence", "1%", "cluster", 0),
		models.RowOf("cluster", 1, "late", true),
	}
	assert.Equal(t, []string{"cluster", "confidence", "z", "late"}, Columns(rows))
	assert.Equal(t, []string{}, Columns(nil))
}

func TestCellString(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		value    string
		expected string
	}{
		{name: "null", column: "x", value: `null`, expected: "-"},
		{name: "number", column: "x", value: `3`, expected: "3"},
		{name: "bool", column: "x", value: `false`, expected: "false"},
		{name: "numeric confidence", column: "confidence", value: `0.5`, expected: "50.0%"},
		{name: "string top_probs kept", column: "top_probs", value: `"(1, 0.4)"`, expected: "(1, 0.4)"},
		{name: "array top_probs formatted", column: "top_probs", value: `[["A",0.4]]`, expected: "A (40.0%)"},
		{name: "array", column: "x", value: `[1,{"a":2}]`, expected: `1; {"a":2}`},
		{name: "object", column: "x", value: `{"a":[1,2]}`, expected: `{"a":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := models.ParseJSON([]byte(tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, CellString(tt.column, v))
		})
	}
}

func TestCellString_GoValues(t *testing.T) {
	tests := []struct {
		name   string
		column string
		value  any
		want   string
	}{
		{"missing", "predicted_species", nil, "-"},
		{"plain", "predicted_species", "Canis lupus", "Canis lupus"},
		{"numeric confidence", "confidence", 0.873, "87.3%"},
		{"formatted confidence", "confidence", "87.3%", "87.3%"},
		{"preformatted top probs", "top_probs", "1 (42.0%)", "1 (42.0%)"},
		{"list", "top_labels", []any{"a", "b"}, "a; b"},
		{"integer", "cluster", 3, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellString(tt.column, tt.value))
		})
	}
}
