package engine

import "sort"

// SetupMatrix gives changeover minutes between formats. Once handed to
// an engine it must be treated as read-only; replace it wholesale with
// Engine.SwapSetupMatrix instead of mutating in place. Clones share
// the matrix on that contract.
type SetupMatrix struct {
	minutes map[string]map[string]int
}

// SetupEntry is one changeover cost, used for listing and export.
type SetupEntry struct {
	FromFormat string `json:"from_format"`
	ToFormat   string `json:"to_format"`
	SetupMin   int    `json:"setup_min"`
}

// NewSetupMatrix returns an empty matrix. An empty matrix reports zero
// setup everywhere.
func NewSetupMatrix() *SetupMatrix {
	return &SetupMatrix{minutes: make(map[string]map[string]int)}
}

// Set records the changeover cost from one format to another. Only
// valid during construction, before the matrix is shared.
func (m *SetupMatrix) Set(from, to string, minutes int) {
	row, ok := m.minutes[from]
	if !ok {
		row = make(map[string]int)
		m.minutes[from] = row
	}
	row[to] = minutes
}

// Minutes returns the changeover cost from one format to another. An
// empty from means the machine has no current format yet: no setup.
// Unknown pairs also cost zero.
func (m *SetupMatrix) Minutes(from, to string) int {
	if m == nil || from == "" {
		return 0
	}
	return m.minutes[from][to]
}

// Clone returns an independent copy that is safe to mutate and swap in.
func (m *SetupMatrix) Clone() *SetupMatrix {
	out := NewSetupMatrix()
	for from, row := range m.minutes {
		for to, v := range row {
			out.Set(from, to, v)
		}
	}
	return out
}

// Entries lists every changeover pair sorted by from then to format.
func (m *SetupMatrix) Entries() []SetupEntry {
	var out []SetupEntry
	for from, row := range m.minutes {
		for to, v := range row {
			out = append(out, SetupEntry{FromFormat: from, ToFormat: to, SetupMin: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromFormat != out[j].FromFormat {
			return out[i].FromFormat < out[j].FromFormat
		}
		return out[i].ToFormat < out[j].ToFormat
	})
	return out
}

// Len returns the number of known changeover pairs.
func (m *SetupMatrix) Len() int {
	n := 0
	for _, row := range m.minutes {
		n += len(row)
	}
	return n
}
