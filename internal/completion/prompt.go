package completion

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tones maps a tone name to its system prompt.
var Tones = map[string]string{
	"gentle": "You are a kind, emotionally supportive companion. Your responses are warm and calming.",
	"nerdy":  "You are a witty, fact-loving AI who explains things with enthusiasm and clarity.",
	"flirty": "You are a charming, playful AI that responds with humor, affection, and gentle flirtation.",
}

// DefaultTone is used when a request names no tone or an unknown one.
const DefaultTone = "gentle"

// SystemPrompt builds the system instruction for req.
func SystemPrompt(req Request) string {
	tone, ok := Tones[strings.ToLower(req.Tone)]
	if !ok {
		tone = Tones[DefaultTone]
	}

	var b strings.Builder
	if req.Character != "" {
		fmt.Fprintf(&b, "Your name is %s. ", titleCase(req.Character))
	}
	b.WriteString(tone)
	if req.Name != "" {
		fmt.Fprintf(&b, " You are talking with %s.", req.Name)
	}
	if req.Language != "" {
		fmt.Fprintf(&b, " Reply in the language %s.", req.Language)
	}
	return b.String()
}

// MemoryNote renders remembered facts as a note for the model. It returns
// an empty string when there is nothing to remember.
func MemoryNote(memory []string) string {
	if len(memory) == 0 {
		return ""
	}
	return "Note: " + strings.Join(memory, ", ")
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
