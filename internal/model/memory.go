// Package model defines the core companion data types.
package model

// Fact is a remembered statement about the user.
// Essential facts are exempt from capacity-based eviction while
// non-essential facts remain.
type Fact struct {
	Text      string `json:"text" msgpack:"text"`
	Essential bool   `json:"essential,omitempty" msgpack:"essential,omitempty"`
}

// FactTexts returns the plain text of each fact, in order.
func FactTexts(facts []Fact) []string {
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		out = append(out, f.Text)
	}
	return out
}

// Snapshot is the full persisted state of one device, used by export and import.
type Snapshot struct {
	Device     string    `json:"device"`
	Profile    *Profile  `json:"profile,omitempty"`
	Memory     []Fact    `json:"memory"`
	Transcript []Message `json:"transcript"`
	Voice      string    `json:"voice,omitempty"`
}
