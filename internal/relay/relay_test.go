package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/nova/internal/completion"
)

type upstreamFunc func(ctx context.Context, req completion.Request) (string, error)

func (f upstreamFunc) Complete(ctx context.Context, req completion.Request) (string, error) {
	return f(ctx, req)
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, completion.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
	var resp completion.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestChatForwardsRequest(t *testing.T) {
	var got completion.Request
	h := NewHandler(upstreamFunc(func(_ context.Context, req completion.Request) (string, error) {
		got = req
		return "Hello!", nil
	}), nil)

	rec, resp := post(t, h, `{"message":"hi","tone":"nerdy","memory":["loves chess"],"name":"Sam"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", resp.Reply)
	assert.Equal(t, "nerdy", got.Tone)
	assert.Equal(t, []string{"loves chess"}, got.Memory)
	assert.Equal(t, "Sam", got.Name)
}

func TestChatEmptyUpstreamReply(t *testing.T) {
	h := NewHandler(upstreamFunc(func(context.Context, completion.Request) (string, error) {
		return "", completion.ErrEmptyReply
	}), nil)

	rec, resp := post(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoResponse, resp.Reply)
}

func TestChatUpstreamFailure(t *testing.T) {
	h := NewHandler(upstreamFunc(func(context.Context, completion.Request) (string, error) {
		return "", errors.New("connection refused")
	}), nil)

	rec, resp := post(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to reach provider.", resp.Error)
	assert.Empty(t, resp.Reply)
}

func TestChatBadRequests(t *testing.T) {
	h := NewHandler(upstreamFunc(func(context.Context, completion.Request) (string, error) {
		t.Fatal("upstream must not be called")
		return "", nil
	}), nil)

	rec, _ := post(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := post(t, h, `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message is required.", resp.Error)
}

func TestChatRejectsOtherMethods(t *testing.T) {
	h := NewHandler(upstreamFunc(func(context.Context, completion.Request) (string, error) {
		return "x", nil
	}), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := NewHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// TestRelayEndToEnd runs the HTTP completion client against the relay
// backed by an OpenAI-compatible provider.
func TestRelayEndToEnd(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		reply := "no system prompt"
		if len(body.Messages) > 0 && body.Messages[0].Content == completion.Tones["flirty"] {
			reply = "Well hello there."
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	defer provider.Close()

	upstream, err := completion.NewOpenAI(completion.OpenAIOptions{APIKey: "k", BaseURL: provider.URL + "/v1/"})
	require.NoError(t, err)
	relaySrv := httptest.NewServer(NewHandler(upstream, nil))
	defer relaySrv.Close()

	client, err := completion.NewHTTP(completion.HTTPOptions{URL: relaySrv.URL + "/chat"})
	require.NoError(t, err)
	reply, err := client.Complete(context.Background(), completion.Request{Message: "hi", Tone: "flirty"})
	require.NoError(t, err)
	assert.Equal(t, "Well hello there.", reply)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", NewHandler(nil, nil), nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
