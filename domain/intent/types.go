// Package intent holds the row-level data model of an intent-labelled dataset.
package intent

import (
	"sort"

	"intenttune/domain/core"
)

// UnknownLabel marks an example whose label is not in the training label map
const UnknownLabel = -1

// Example is one spreadsheet row prepared for the classifier
type Example struct {
	Row       int               // 1-based data row index in the source sheet
	Question  string            // raw text of the first text column
	Answer    string            // raw text of the second text column
	Label     string            // raw label string
	InputText string            // combined, normalised model input
	LabelID   int               // index into the LabelMap, or UnknownLabel
	TokenIDs  []int             // filled by tokenization
	Source    map[string]string // every original cell, keyed by header
}

// Dataset is an ordered list of examples sharing one label map
type Dataset struct {
	Name     string
	Headers  []string
	Examples []Example
	Labels   *LabelMap
}

// Len returns the number of examples
func (d *Dataset) Len() int {
	return len(d.Examples)
}

// LabelIDs returns the label id of every example in order
func (d *Dataset) LabelIDs() []int {
	ids := make([]int, len(d.Examples))
	for i, ex := range d.Examples {
		ids[i] = ex.LabelID
	}
	return ids
}

// Fingerprint hashes the combined texts and labels of the dataset
func (d *Dataset) Fingerprint() core.DatasetFingerprint {
	texts := make([]string, len(d.Examples))
	labels := make([]string, len(d.Examples))
	for i, ex := range d.Examples {
		texts[i] = ex.InputText
		labels[i] = ex.Label
	}
	return core.ComputeDatasetFingerprint(texts, labels)
}

// Subset returns a dataset containing the examples at the given indices
func (d *Dataset) Subset(name string, indices []int) *Dataset {
	out := &Dataset{Name: name, Headers: d.Headers, Labels: d.Labels}
	out.Examples = make([]Example, len(indices))
	for i, idx := range indices {
		out.Examples[i] = d.Examples[idx]
	}
	return out
}

// LabelMap is a dense, sorted mapping between label strings and class ids
type LabelMap struct {
	names []string
	ids   map[string]int
}

// NewLabelMap builds a label map from observed labels: unique values sorted
// lexicographically, id = position
func NewLabelMap(observed []string) *LabelMap {
	seen := make(map[string]struct{}, len(observed))
	names := make([]string, 0)
	for _, label := range observed {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		names = append(names, label)
	}
	sort.Strings(names)
	return LabelMapFromNames(names)
}

// LabelMapFromNames rebuilds a label map from an id-ordered name list
func LabelMapFromNames(names []string) *LabelMap {
	m := &LabelMap{names: append([]string(nil), names...), ids: make(map[string]int, len(names))}
	for i, name := range m.names {
		m.ids[name] = i
	}
	return m
}

// Len returns the number of classes
func (m *LabelMap) Len() int {
	return len(m.names)
}

// ID returns the class id of a label
func (m *LabelMap) ID(label string) (int, bool) {
	id, ok := m.ids[label]
	return id, ok
}

// Name returns the label at id, or "" when out of range
func (m *LabelMap) Name(id int) string {
	if id < 0 || id >= len(m.names) {
		return ""
	}
	return m.names[id]
}

// Names returns the labels ordered by id
func (m *LabelMap) Names() []string {
	return append([]string(nil), m.names...)
}

// Label2ID returns a copy of the label to id mapping
func (m *LabelMap) Label2ID() map[string]int {
	out := make(map[string]int, len(m.ids))
	for k, v := range m.ids {
		out[k] = v
	}
	return out
}

// Equal reports whether two maps assign the same ids to the same labels
func (m *LabelMap) Equal(other *LabelMap) bool {
	if other == nil || len(m.names) != len(other.names) {
		return false
	}
	for i := range m.names {
		if m.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// Prediction is the classifier output for one example
type Prediction struct {
	LabelID    int
	Label      string
	Confidence float64
	Logits     []float64
}
