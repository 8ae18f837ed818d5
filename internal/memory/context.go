package memory

import (
	"sort"

	"github.com/rcliao/nova/internal/model"
)

// Context selects the facts sent with a completion request. With budget <= 0
// every fact is returned. Otherwise facts are scored (essential first, then
// recency) and packed greedily until their combined length would exceed
// budget characters. The result keeps insertion order.
func Context(facts []model.Fact, budget int) []string {
	if budget <= 0 {
		return model.FactTexts(facts)
	}

	type scored struct {
		index int
		score float64
	}
	n := len(facts)
	candidates := make([]scored, 0, n)
	for i, f := range facts {
		recency := float64(i+1) / float64(n)
		importance := 0.0
		if f.Essential {
			importance = 1.0
		}
		candidates = append(candidates, scored{index: i, score: importance*0.6 + recency*0.4})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	keep := make([]bool, n)
	used := 0
	for _, c := range candidates {
		size := len(facts[c.index].Text)
		if used+size > budget {
			continue
		}
		keep[c.index] = true
		used += size
	}

	var out []string
	for i, f := range facts {
		if keep[i] {
			out = append(out, f.Text)
		}
	}
	return out
}
