package completion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIOptions configures an OpenAI client.
type OpenAIOptions struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible API. Empty uses the official one.
	BaseURL string
	Model   string
	Timeout time.Duration
	Proxy   string
	Client  *http.Client
	Logger  *slog.Logger
}

// OpenAI completes requests with the chat completions API. Requests are
// never retried.
type OpenAI struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI completion client.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("completion: OpenAI API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.Client
	if hc == nil {
		var err error
		hc, err = newHTTPClient(opts.Proxy, opts.Timeout)
		if err != nil {
			return nil, err
		}
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
		log:    logger.With("component", "openai"),
	}, nil
}

// Complete sends the tone system prompt, the memory note and the message.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt(req)),
	}
	if note := MemoryNote(req.Memory); note != "" {
		messages = append(messages, openai.UserMessage(note))
	}
	messages = append(messages, openai.UserMessage(req.Message))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	o.log.Debug("openai reply", "model", o.model, "chars", len(reply))
	return reply, nil
}
