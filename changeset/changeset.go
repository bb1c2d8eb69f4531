// Package changeset computes stable, order-independent field diffs between
// two snapshots of an entity. Callers describe the fields they intend to
// change via FieldSpec; everything else is ignored so a partial update is
// never confused with an explicit clear.
package changeset

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Change holds the before/after pair for a single field.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff maps field names to their changes. Only fields whose normalized
// values differ appear in the map.
type Diff map[string]Change

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d) == 0
}

// FieldNames returns the changed field names in sorted order.
func (d Diff) FieldNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldSpec describes a tracked field.
type FieldSpec struct {
	Name string
	// EmptyAsNull folds empty strings into nil before comparison. By
	// default nil and "" are distinct values.
	EmptyAsNull bool
}

// Field builds a FieldSpec with default comparison semantics.
func Field(name string) FieldSpec {
	return FieldSpec{Name: name}
}

// Fields builds specs for a list of field names.
func Fields(names ...string) []FieldSpec {
	specs := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, Field(name))
	}
	return specs
}

// DateRange is a composite value commonly tracked on staffing records
// (engagements, leaves, availability windows).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label,omitempty"`
}

// Compare produces the minimal diff between two snapshots for the given
// field specs. A field is only compared when the after snapshot carries it;
// fields absent from the update are skipped entirely.
func Compare(before, after map[string]any, specs ...FieldSpec) Diff {
	diff := Diff{}

	for _, spec := range specs {
		rawAfter, ok := after[spec.Name]
		if !ok {
			continue
		}
		rawBefore := before[spec.Name]

		nb := Normalize(rawBefore)
		na := Normalize(rawAfter)

		if spec.EmptyAsNull {
			nb = foldEmpty(nb)
			na = foldEmpty(na)
		}

		if !equal(nb, na) {
			diff[spec.Name] = Change{Before: nb, After: na}
		}
	}

	return diff
}

// Normalize returns the canonical form of a value for comparison and audit
// storage. List values are deduplicated and sorted by content so a pure
// reordering compares as equal. Time values compare by instant.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	case []string:
		return normalizeStrings(val)
	case []DateRange:
		return normalizeDateRanges(val)
	case []any:
		return normalizeList(val)
	default:
		return v
	}
}

func normalizeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeDateRanges(in []DateRange) []DateRange {
	out := make([]DateRange, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r.Start = r.Start.UTC()
		r.End = r.End.UTC()
		key := r.Start.Format(time.RFC3339Nano) + "|" + r.End.Format(time.RFC3339Nano) + "|" + r.Label
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func normalizeList(in []any) []any {
	type keyed struct {
		key string
		val any
	}

	items := make([]keyed, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, el := range in {
		norm := Normalize(el)
		key := canonical(norm)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, keyed{key: key, val: norm})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].key < items[j].key
	})

	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.val)
	}
	return out
}

func foldEmpty(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if (a == nil) != (b == nil) {
		return false
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	return canonical(a) == canonical(b)
}

// canonical serializes a value as sorted-key JSON for comparison purposes
// only; the serialized form is never persisted.
func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}

	var tmp any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return string(b)
	}

	out, err := json.Marshal(tmp)
	if err != nil {
		return string(b)
	}

	return string(out)
}
