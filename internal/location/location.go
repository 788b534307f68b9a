// Package location maps between location display names and backend IDs.
//
// The API returns location lists in several shapes depending on the endpoint
// (name/label/title/nama/...). Normalize is the one place that decides which
// field wins; everything else works on model.LocationRecord.
package location

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kebunops/opsreport/internal/model"
)

// Field priority for names and IDs, first present (non-null) field wins.
var (
	nameFields   = []string{"name", "label", "title", "nama", "nama_lokasi", "location_name"}
	idFields     = []string{"id", "location_id", "lokasi_id", "id_lokasi"}
	hiddenFields = []string{"hidden", "is_hidden"}
)

// Normalize converts a heterogeneous list of raw location items into
// LocationRecords. It never fails: unknown shapes fall back to the item's
// text form and a missing ID.
func Normalize(raw []any) []model.LocationRecord {
	out := make([]model.LocationRecord, 0, len(raw))
	for _, item := range raw {
		out = append(out, NormalizeOne(item))
	}
	return out
}

// NormalizeOne normalises a single raw item.
func NormalizeOne(item any) model.LocationRecord {
	obj, ok := item.(map[string]any)
	if !ok {
		return model.LocationRecord{Name: text(item)}
	}
	rec := model.LocationRecord{Name: text(obj)}
	if v, ok := firstPresent(obj, nameFields); ok {
		rec.Name = text(v)
	}
	if v, ok := firstPresent(obj, idFields); ok {
		rec.ID = IDString(v)
	}
	if v, ok := firstPresent(obj, hiddenFields); ok {
		rec.Hidden = truthy(v)
	}
	return rec
}

// firstPresent returns the value of the first key in keys that exists in obj
// with a non-null value.
func firstPresent(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// IDString renders a raw JSON identifier as text. Whole numbers lose their
// fractional part (5 → "5").
func IDString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number, float64, int, int64:
		return IDString(x)
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	case json.Number:
		n, _ := x.Float64()
		return n != 0
	case float64:
		return x != 0
	default:
		return false
	}
}

// DisplayNames returns the deduplicated, sorted names for UI display.
func DisplayNames(records []model.LocationRecord) []string {
	seen := make(map[string]bool, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// ─── Resolver ────────────────────────────────────────────────────────────────

// Resolver answers name→id and hidden-flag lookups over a fixed record list.
type Resolver struct {
	records []model.LocationRecord
	ids     map[string]string
	hidden  map[string]bool
}

// NewResolver indexes records. When a name repeats, the first record with an
// ID wins.
func NewResolver(records []model.LocationRecord) *Resolver {
	r := &Resolver{
		ids:    make(map[string]string, len(records)),
		hidden: make(map[string]bool, len(records)),
	}
	r.add(records)
	return r
}

func (r *Resolver) add(records []model.LocationRecord) {
	for _, rec := range records {
		r.records = append(r.records, rec)
		if rec.ID != "" {
			if _, exists := r.ids[rec.Name]; !exists {
				r.ids[rec.Name] = rec.ID
			}
		}
		if rec.Hidden {
			r.hidden[rec.Name] = true
		}
	}
}

// Merge folds extra records (typically static reference data) into the
// resolver. Existing IDs are kept; hidden flags accumulate.
func (r *Resolver) Merge(extra []model.LocationRecord) {
	r.add(extra)
}

// Records returns every record known to the resolver, in load order.
func (r *Resolver) Records() []model.LocationRecord {
	out := make([]model.LocationRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Lookup returns the backend ID for a display name.
func (r *Resolver) Lookup(name string) (string, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// IsHidden reports whether a location is flagged hidden.
func (r *Resolver) IsHidden(name string) bool {
	return r.hidden[name]
}

// HiddenNames lists every location flagged hidden, sorted.
func (r *Resolver) HiddenNames() []string {
	names := make([]string, 0, len(r.hidden))
	for n := range r.hidden {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Names returns the sorted, deduplicated display names.
func (r *Resolver) Names() []string {
	return DisplayNames(r.records)
}

// DefaultSelection is the initial selection on first load: every name.
func (r *Resolver) DefaultSelection() []string {
	return r.Names()
}

// IDs resolves the selected names to IDs in selection order. Names without
// an ID are skipped.
func (r *Resolver) IDs(selected []string) []string {
	ids := make([]string, 0, len(selected))
	for _, name := range selected {
		if id, ok := r.ids[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// IDQuery builds the comma-separated location_id query parameter.
func (r *Resolver) IDQuery(selected []string) string {
	return strings.Join(r.IDs(selected), ",")
}
