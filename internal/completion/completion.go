// Package completion talks to the reply-generation service.
//
// Client implementations: HTTP posts the request to a backend or relay,
// OpenAI and Gemini call a provider directly with the relay's prompts.
package completion

import (
	"context"
	"errors"
)

const (
	// Fallback replaces the reply when the service cannot be reached or
	// answers with something unusable.
	Fallback = "Hmm... Nova couldn't connect just now."
	// EmptyReply replaces a well-formed but empty reply.
	EmptyReply = "Hmm... I didn't quite get that."
)

var (
	ErrStatus     = errors.New("completion: unexpected status")
	ErrMalformed  = errors.New("completion: malformed response")
	ErrEmptyReply = errors.New("completion: empty reply")
)

// Request is the body sent to the completion service.
type Request struct {
	Character string   `json:"character"`
	Message   string   `json:"message"`
	Memory    []string `json:"memory"`
	Name      string   `json:"name"`
	UserID    string   `json:"userId"`
	Gender    string   `json:"gender"`
	Tone      string   `json:"tone,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Response is the body returned by the completion service.
type Response struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Client generates a reply for one user message.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ReplyFor maps a Complete result to the text shown to the user.
func ReplyFor(reply string, err error) string {
	switch {
	case errors.Is(err, ErrEmptyReply):
		return EmptyReply
	case err != nil:
		return Fallback
	}
	return reply
}
