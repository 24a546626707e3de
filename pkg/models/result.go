package models

// Preferred result columns, in display order.
var PreferredColumns = []string{
	"cluster",
	"medoid_index",
	"medoid_id",
	"predicted_species",
	"confidence",
	"top_probs",
	"top_labels",
}

// Default visualization filenames produced by the backend for every run.
var DefaultVisuals = []string{
	"cluster_scatter.png",
	"species_abundance_bar.png",
	"species_composition_pie.png",
}

// ResultSet is the normalized, display-ready outcome of a completed run.
// Visuals maps a visualization name to an absolute URL; any subset of the
// default slots may be missing. VisualOrder lists the names in the order the
// backend reported them.
type ResultSet struct {
	RunID       string            `json:"run_id"`
	Columns     []string          `json:"columns"`
	Rows        []*Row            `json:"rows"`
	Visuals     map[string]string `json:"visuals"`
	VisualOrder []string          `json:"visual_order,omitempty"`
	ModelUsed   string            `json:"model_used,omitempty"`
	Source      string            `json:"source,omitempty"`
}

// VisualSlot is one of the fixed visualization positions. URL is empty when
// no visual could be matched to the slot.
type VisualSlot struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	URL         string `json:"url,omitempty"`
	Available   bool   `json:"available"`
	Placeholder string `json:"placeholder,omitempty"`
}
