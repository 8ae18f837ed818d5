package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rcliao/nova/internal/completion"
	"github.com/rcliao/nova/internal/config"
	"github.com/rcliao/nova/internal/memory"
	"github.com/rcliao/nova/internal/verify"
)

// newCompletion builds the completion client the chat session talks to.
func newCompletion(ctx context.Context, cfg *config.Config, logger *slog.Logger) (completion.Client, error) {
	c := cfg.Completion
	switch c.Backend {
	case "openai":
		return completion.NewOpenAI(completion.OpenAIOptions{
			APIKey:  c.OpenAIKey,
			Model:   c.Model,
			Timeout: cfg.CompletionTimeout(),
			Proxy:   c.Proxy,
			Logger:  logger,
		})
	case "gemini":
		return newGemini(ctx, c.GeminiKey, "", c.Model, c.Proxy, cfg, logger)
	default:
		return completion.NewHTTP(completion.HTTPOptions{
			URL:     c.URL,
			Timeout: cfg.CompletionTimeout(),
			Proxy:   c.Proxy,
			Logger:  logger,
		})
	}
}

// newUpstream builds the provider client used by the relay.
func newUpstream(ctx context.Context, cfg *config.Config, logger *slog.Logger) (completion.Client, error) {
	r := cfg.Relay
	switch r.Provider {
	case "gemini":
		return newGemini(ctx, cfg.Completion.GeminiKey, r.BaseURL, r.Model, cfg.Completion.Proxy, cfg, logger)
	default:
		return completion.NewOpenAI(completion.OpenAIOptions{
			APIKey:  cfg.Completion.OpenAIKey,
			BaseURL: r.BaseURL,
			Model:   r.Model,
			Timeout: cfg.CompletionTimeout(),
			Proxy:   cfg.Completion.Proxy,
			Logger:  logger,
		})
	}
}

func newGemini(ctx context.Context, key, baseURL, model, proxy string, cfg *config.Config, logger *slog.Logger) (completion.Client, error) {
	client := &http.Client{Timeout: cfg.CompletionTimeout()}
	if proxy != "" {
		var err error
		if client, err = completion.NewSOCKSClient(proxy, cfg.CompletionTimeout()); err != nil {
			return nil, fmt.Errorf("gemini proxy: %w", err)
		}
	}
	if model == "" || model == completion.DefaultOpenAIModel {
		model = completion.DefaultGeminiModel
	}
	return completion.NewGemini(ctx, completion.GeminiOptions{
		APIKey:  key,
		BaseURL: baseURL,
		Model:   model,
		Client:  client,
		Logger:  logger,
	})
}

func newMachine(cfg *config.Config, logger *slog.Logger) (*verify.Machine, error) {
	strategy, err := verify.ParseStrategy(cfg.Verify.Strategy)
	if err != nil {
		return nil, err
	}
	return verify.New(verify.Options{
		Strategy:       strategy,
		MaxAttempts:    cfg.Verify.MaxAttempts,
		Lockout:        cfg.LockoutDuration(),
		ChallengeWords: cfg.Verify.ChallengeWords,
		Logger:         logger,
	}), nil
}

func newAccumulator(cfg *config.Config) *memory.Accumulator {
	vocab := memory.DefaultVocabulary()
	if len(cfg.Memory.Triggers) > 0 {
		vocab.Triggers = cfg.Memory.Triggers
	}
	if len(cfg.Memory.Essential) > 0 {
		vocab.Essential = cfg.Memory.Essential
	}
	return memory.New(memory.Options{
		Vocabulary: vocab,
		Capacity:   cfg.Memory.Capacity,
		SpanWords:  cfg.Memory.SpanWords,
	})
}
