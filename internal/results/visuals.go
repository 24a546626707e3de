package results

import (
	"net/url"
	"sort"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/pkg/models"
)

// ResolveURL makes a visualization reference absolute. Absolute URLs are
// kept, root-relative paths are prefixed with base, and bare filenames are
// served from the run's file endpoint.
func ResolveURL(base, runID, ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}

	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	if runID != "" {
		return base + "/runs/" + url.PathEscape(runID) + "/file/" + url.PathEscape(ref)
	}
	return base + "/" + ref
}

// Visuals resolves the payload's visualization map, or the default
// filenames when the payload has none. The names come back in payload order.
func Visuals(base, runID string, sec Section) (map[string]string, []string) {
	out := make(map[string]string)
	if sec.HasVisuals {
		for name, ref := range sec.Visuals {
			out[name] = ResolveURL(base, runID, ref)
		}
		return out, orderedKeys(out, sec.VisualOrder)
	}
	for _, name := range models.DefaultVisuals {
		out[name] = ResolveURL(base, runID, name)
	}
	return out, append([]string(nil), models.DefaultVisuals...)
}

// Slots maps the resolved visuals onto the fixed slots. An exact key wins
// even when its URL is empty; otherwise the first key in order that contains
// the slot's base name and has a URL is used.
func Slots(visuals map[string]string, order []string) []models.VisualSlot {
	keys := orderedKeys(visuals, order)

	slots := make([]models.VisualSlot, 0, len(models.DefaultVisuals))
	for _, name := range models.DefaultVisuals {
		slot := models.VisualSlot{Name: name, Label: PrettyLabel(name)}

		if u, ok := visuals[name]; ok {
			slot.URL = u
		} else {
			stem, _, _ := strings.Cut(name, ".")
			for _, k := range keys {
				if visuals[k] != "" && strings.Contains(strings.ToLower(k), stem) {
					slot.URL = visuals[k]
					break
				}
			}
		}

		slot.Available = slot.URL != ""
		if !slot.Available {
			slot.Placeholder = "No visual available: " + slot.Label
		}
		slots = append(slots, slot)
	}
	return slots
}

// orderedKeys returns the keys of visuals listed in order, followed by any
// unlisted keys in sorted order.
func orderedKeys(visuals map[string]string, order []string) []string {
	keys := make([]string, 0, len(visuals))
	seen := make(map[string]bool, len(visuals))
	for _, k := range order {
		if _, ok := visuals[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range visuals {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// PrettyLabel turns a visualization filename into a caption:
// "cluster_scatter.png" becomes "Cluster scatter".
func PrettyLabel(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		name = name[:len(name)-len(".png")]
	}
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
