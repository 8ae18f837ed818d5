package memory

// Vocabulary holds the trigger words that produce facts and the essential
// terms that protect a fact from eviction. Matching is case-insensitive.
type Vocabulary struct {
	Triggers  []string `yaml:"triggers"`
	Essential []string `yaml:"essential"`
}

// DefaultVocabulary covers relationships, emotions, hobbies, work and losses.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Triggers: []string{
			// names
			"my name is", "i'm called", "call me",
			// relationships
			"mother", "mom", "mum", "father", "dad", "sister", "brother",
			"wife", "husband", "son", "daughter", "grandma", "grandmother",
			"grandpa", "grandfather", "girlfriend", "boyfriend", "partner",
			"friend", "family",
			// emotions
			"sad", "happy", "lonely", "anxious", "angry", "scared",
			"stressed", "depressed", "worried", "excited",
			// hobbies
			"football", "soccer", "music", "guitar", "piano", "painting",
			"reading", "gaming", "cooking", "hiking", "running", "dancing",
			// work and study
			"career", "job", "work", "school", "university", "boss",
			// losses
			"passed away", "died", "lost", "funeral", "grief", "miss",
		},
		Essential: []string{
			"my name is", "i'm called", "call me",
			"mother", "mom", "mum", "father", "dad", "sister", "brother",
			"wife", "husband", "son", "daughter", "grand", "girlfriend",
			"boyfriend", "partner",
			"passed away", "died", "lost", "funeral", "grief", "miss",
		},
	}
}
