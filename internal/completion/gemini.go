package completion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiOptions configures a Gemini client.
type GeminiOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

// Gemini completes requests with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini completion client.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("completion: Gemini API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.Client,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{client: client, model: opts.Model, log: logger.With("component", "gemini")}, nil
}

// Complete sends the memory note and message with the tone prompt as the
// system instruction.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	var parts []*genai.Part
	if note := MemoryNote(req.Memory); note != "" {
		parts = append(parts, &genai.Part{Text: note})
	}
	parts = append(parts, &genai.Part{Text: req.Message})

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(SystemPrompt(req))}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: parts, Role: "user"},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", ErrEmptyReply
	}
	g.log.Debug("gemini reply", "model", g.model, "chars", len(reply))
	return reply, nil
}
