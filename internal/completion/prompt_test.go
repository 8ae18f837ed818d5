package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPromptTones(t *testing.T) {
	assert.Equal(t, Tones["gentle"], SystemPrompt(Request{}))
	assert.Equal(t, Tones["nerdy"], SystemPrompt(Request{Tone: "Nerdy"}))
	assert.Equal(t, Tones["gentle"], SystemPrompt(Request{Tone: "grumpy"}))
}

func TestSystemPromptPersona(t *testing.T) {
	got := SystemPrompt(Request{Character: "nova", Tone: "flirty", Name: "Sam", Language: "en-GB"})
	assert.Equal(t, "Your name is Nova. "+Tones["flirty"]+" You are talking with Sam. Reply in the language en-GB.", got)
}

func TestMemoryNote(t *testing.T) {
	assert.Equal(t, "", MemoryNote(nil))
	assert.Equal(t, "Note: sad about work, football on sundays", MemoryNote([]string{"sad about work", "football on sundays"}))
}
