package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one completion request.
const DefaultTimeout = 30 * time.Second

// HTTPOptions configures an HTTP client.
type HTTPOptions struct {
	// URL is the full endpoint, e.g. https://backend.example/chat.
	URL     string
	Timeout time.Duration
	// Proxy is an optional SOCKS5 proxy address (host:port).
	Proxy string
	// Client overrides the HTTP client. Proxy and Timeout are then ignored.
	Client *http.Client
	Logger *slog.Logger
}

// HTTP posts requests as JSON to a completion backend or relay.
type HTTP struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

var _ Client = (*HTTP)(nil)

// NewHTTP creates an HTTP completion client.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("completion: URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		var err error
		client, err = newHTTPClient(opts.Proxy, opts.Timeout)
		if err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{url: opts.URL, client: client, log: logger.With("component", "completion")}, nil
}

// Complete posts req and returns the reply. Non-2xx status, undecodable
// bodies and empty replies are errors.
func (h *HTTP) Complete(ctx context.Context, req Request) (string, error) {
	if req.Memory == nil {
		req.Memory = []string{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()
	h.log.Debug("completion response", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
