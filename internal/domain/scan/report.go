package scan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
)

// Report maps log indices to the observations recorded for them.
// Indices keep the order in which they were first added.
type Report struct {
	order []int64
	obs   map[int64][]observation.Observation
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{obs: make(map[int64][]observation.Observation)}
}

// Add appends observations for index, creating the key if needed.
// Adding zero observations still registers the index.
func (r *Report) Add(index int64, obs ...observation.Observation) {
	existing, ok := r.obs[index]
	if !ok {
		r.order = append(r.order, index)
		existing = make([]observation.Observation, 0, len(obs))
	}
	r.obs[index] = append(existing, obs...)
}

// Indices returns the log indices in insertion order.
func (r *Report) Indices() []int64 {
	out := make([]int64, len(r.order))
	copy(out, r.order)
	return out
}

// Observations returns a copy of the observations recorded for index.
func (r *Report) Observations(index int64) ([]observation.Observation, bool) {
	obs, ok := r.obs[index]
	if !ok {
		return nil, false
	}
	out := make([]observation.Observation, len(obs))
	copy(out, obs)
	return out, true
}

// Len returns the number of indices in the report.
func (r *Report) Len() int {
	return len(r.order)
}

// Total returns the number of observations across all indices.
func (r *Report) Total() int {
	n := 0
	for _, obs := range r.obs {
		n += len(obs)
	}
	return n
}

// All flattens every observation in index order.
func (r *Report) All() []observation.Observation {
	out := make([]observation.Observation, 0, r.Total())
	for _, idx := range r.order {
		out = append(out, r.obs[idx]...)
	}
	return out
}

// Equal reports whether two reports hold the same indices, order and observations.
func (r *Report) Equal(other *Report) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.order) != len(other.order) {
		return false
	}
	for i, idx := range r.order {
		if other.order[i] != idx {
			return false
		}
		a, b := r.obs[idx], other.obs[idx]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

type reportEntryDTO struct {
	LogIndex     int64                     `json:"log_index"`
	Observations []observation.Observation `json:"observations"`
}

// MarshalJSON encodes the report as an ordered list of entries.
func (r *Report) MarshalJSON() ([]byte, error) {
	entries := make([]reportEntryDTO, 0, len(r.order))
	for _, idx := range r.order {
		obs := r.obs[idx]
		if obs == nil {
			obs = []observation.Observation{}
		}
		entries = append(entries, reportEntryDTO{LogIndex: idx, Observations: obs})
	}
	return json.Marshal(entries)
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var entries []reportEntryDTO
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	*r = Report{obs: make(map[int64][]observation.Observation, len(entries))}
	for _, e := range entries {
		if _, dup := r.obs[e.LogIndex]; dup {
			return fmt.Errorf("decode report: duplicate log index %d", e.LogIndex)
		}
		r.Add(e.LogIndex, e.Observations...)
	}
	return nil
}
