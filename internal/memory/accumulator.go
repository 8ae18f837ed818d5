// Package memory extracts facts about the user from conversation text and
// keeps them in a bounded, insertion-ordered set.
//
// Extraction is keyword driven: a trigger word found in a message yields a
// fact made of the trigger and a short span of the words that follow it.
// False positives and negatives are expected.
package memory

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rcliao/nova/internal/model"
)

const (
	DefaultCapacity  = 100
	DefaultSpanWords = 6
)

// Options configures an Accumulator.
type Options struct {
	Vocabulary Vocabulary
	// Capacity bounds the number of facts kept. Defaults to DefaultCapacity.
	Capacity int
	// SpanWords is the number of words kept after a trigger. Defaults to DefaultSpanWords.
	SpanWords int
}

// Accumulator extracts and merges facts.
type Accumulator struct {
	capacity  int
	span      int
	triggers  []trigger
	essential []*regexp.Regexp
}

type trigger struct {
	re    *regexp.Regexp
	words int
}

// New creates an Accumulator. Empty vocabulary lists fall back to the defaults.
func New(opts Options) *Accumulator {
	def := DefaultVocabulary()
	if len(opts.Vocabulary.Triggers) == 0 {
		opts.Vocabulary.Triggers = def.Triggers
	}
	if len(opts.Vocabulary.Essential) == 0 {
		opts.Vocabulary.Essential = def.Essential
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SpanWords <= 0 {
		opts.SpanWords = DefaultSpanWords
	}

	a := &Accumulator{capacity: opts.Capacity, span: opts.SpanWords}
	for _, w := range opts.Vocabulary.Triggers {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		a.triggers = append(a.triggers, trigger{
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			words: len(strings.Fields(w)),
		})
	}
	for _, w := range opts.Vocabulary.Essential {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		// Anchored at a word start: "grand" matches "grandma", "son" does not match "person".
		a.essential = append(a.essential, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)))
	}
	return a
}

// Capacity returns the maximum number of facts kept by Merge.
func (a *Accumulator) Capacity() int { return a.capacity }

// IsEssential reports whether text mentions a protected topic.
func (a *Accumulator) IsEssential(text string) bool {
	for _, re := range a.essential {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

type match struct {
	start, end int
	words      int
}

// sentenceEnd matches the punctuation that closes a fact span.
var sentenceEnd = regexp.MustCompile(`[.!?;\n]`)

// Extract scans text for trigger words and returns one fact per trigger
// occurrence not already covered by a previous fact's span.
func (a *Accumulator) Extract(text string) []model.Fact {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var matches []match
	for _, t := range a.triggers {
		for _, loc := range t.re.FindAllStringIndex(text, -1) {
			matches = append(matches, match{start: loc[0], end: loc[1], words: t.words})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		// Prefer the longer trigger at the same position.
		return matches[i].end > matches[j].end
	})

	var facts []model.Fact
	seen := map[string]bool{}
	covered := -1
	for _, m := range matches {
		if m.start < covered {
			continue
		}
		span, end := a.spanAt(text, m)
		covered = end
		key := strings.ToLower(span)
		if span == "" || seen[key] {
			continue
		}
		seen[key] = true
		facts = append(facts, model.Fact{Text: span, Essential: a.IsEssential(span)})
	}
	return facts
}

// spanAt returns the fact text for m and the byte offset in text where it ends.
func (a *Accumulator) spanAt(text string, m match) (string, int) {
	rest := text[m.start:]
	if loc := sentenceEnd.FindStringIndex(rest[m.end-m.start:]); loc != nil {
		rest = rest[:m.end-m.start+loc[0]]
	}

	fields := strings.Fields(rest)
	if n := m.words + a.span; len(fields) > n {
		fields = fields[:n]
	}
	end := m.start + lastFieldEnd(rest, len(fields))

	s := strings.TrimRight(strings.Join(fields, " "), ",:;-\"'()")
	return strings.TrimSpace(s), end
}

// lastFieldEnd returns the byte offset just past the n-th whitespace separated field of s.
func lastFieldEnd(s string, n int) int {
	inField := false
	count := 0
	for i, r := range s {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		switch {
		case !space && !inField:
			inField = true
			count++
		case space && inField:
			inField = false
			if count == n {
				return i
			}
		}
	}
	return len(s)
}

// ExtractExchange extracts facts from a user utterance followed by the reply.
func (a *Accumulator) ExtractExchange(utterance, reply string) []model.Fact {
	return append(a.Extract(utterance), a.Extract(reply)...)
}

// Merge adds incoming facts to existing in order, skipping case-insensitive
// duplicates, and evicts to stay within capacity. The oldest non-essential
// fact not repeated by incoming goes first. Essential facts are evicted
// oldest first only when they alone exceed capacity. Merging the same
// incoming facts twice yields the same result as merging once.
func (a *Accumulator) Merge(existing, incoming []model.Fact) []model.Fact {
	return merge(existing, incoming, a.capacity)
}

func merge(existing, incoming []model.Fact, capacity int) []model.Fact {
	out := make([]model.Fact, 0, len(existing)+len(incoming))
	index := make(map[string]bool, len(existing)+len(incoming))
	mentioned := make(map[string]bool, len(incoming))
	for _, f := range incoming {
		mentioned[factKey(f)] = true
	}
	for _, f := range existing {
		out = insert(out, index, mentioned, f, capacity)
	}
	for _, f := range incoming {
		out = insert(out, index, mentioned, f, capacity)
	}
	return out
}

func factKey(f model.Fact) string {
	return strings.ToLower(strings.Join(strings.Fields(f.Text), " "))
}

// insert appends f unless already present. Over capacity, the oldest
// non-essential fact not mentioned in the current batch is evicted.
func insert(facts []model.Fact, index, mentioned map[string]bool, f model.Fact, capacity int) []model.Fact {
	f.Text = strings.Join(strings.Fields(f.Text), " ")
	key := strings.ToLower(f.Text)
	if key == "" || index[key] {
		return facts
	}
	index[key] = true
	facts = append(facts, f)
	if capacity <= 0 || len(facts) <= capacity {
		return facts
	}

	victim := evictionVictim(facts, mentioned)
	delete(index, strings.ToLower(facts[victim].Text))
	return append(facts[:victim], facts[victim+1:]...)
}

func evictionVictim(facts []model.Fact, mentioned map[string]bool) int {
	fallback := -1
	for i, f := range facts {
		if f.Essential {
			continue
		}
		if !mentioned[strings.ToLower(f.Text)] {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback < 0 {
		return 0
	}
	return fallback
}
