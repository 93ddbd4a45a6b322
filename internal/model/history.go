package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// History records per-epoch metric values in a stable metric order.
// The zero value is an empty history ready for Append.
type History struct {
	metrics []string
	values  map[string][]float64
}

// Append records one epoch worth of metrics. Metrics seen for the first time
// are placed training-first ("loss" leading), then validation ("val_loss" leading).
func (h *History) Append(logs map[string]float64) {
	if h.values == nil {
		h.values = make(map[string][]float64)
	}

	var fresh []string
	for name := range logs {
		if _, ok := h.values[name]; !ok {
			fresh = append(fresh, name)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return metricLess(fresh[i], fresh[j]) })
	for _, name := range fresh {
		h.metrics = append(h.metrics, name)
		h.values[name] = nil
	}

	for name, v := range logs {
		h.values[name] = append(h.values[name], v)
	}
}

func metricLess(a, b string) bool {
	ra, rb := metricRank(a), metricRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func metricRank(name string) int {
	switch {
	case name == "loss":
		return 0
	case name == "val_loss":
		return 2
	case strings.HasPrefix(name, "val_"):
		return 3
	default:
		return 1
	}
}

// Metrics returns metric names in recording order.
func (h History) Metrics() []string {
	out := make([]string, len(h.metrics))
	copy(out, h.metrics)
	return out
}

// Series returns the recorded values for name, or nil if it was never recorded.
func (h History) Series(name string) []float64 {
	s := h.values[name]
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Last returns the most recent value for name.
func (h History) Last(name string) (float64, bool) {
	s := h.values[name]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Epochs is the length of the longest series.
func (h History) Epochs() int {
	n := 0
	for _, s := range h.values {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

// Empty reports whether nothing has been recorded.
func (h History) Empty() bool {
	return len(h.metrics) == 0
}

type historySeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// MarshalJSON encodes the history as an ordered list of series.
func (h History) MarshalJSON() ([]byte, error) {
	out := make([]historySeries, 0, len(h.metrics))
	for _, name := range h.metrics {
		vals := h.values[name]
		if vals == nil {
			vals = []float64{}
		}
		out = append(out, historySeries{Name: name, Values: vals})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the ordered list written by MarshalJSON.
func (h *History) UnmarshalJSON(data []byte) error {
	var in []historySeries
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	h.metrics = nil
	h.values = make(map[string][]float64, len(in))
	for _, s := range in {
		if _, dup := h.values[s.Name]; dup {
			return fmt.Errorf("decode history: duplicate metric %q", s.Name)
		}
		h.metrics = append(h.metrics, s.Name)
		h.values[s.Name] = s.Values
	}
	return nil
}
