package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func newOpenAITest(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	return c
}

func TestOpenAIComplete(t *testing.T) {
	var got chatRequest
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse("Hello Sam, I'm here.")))
	})

	reply, err := c.Complete(context.Background(), Request{
		Message: "I feel sad",
		Memory:  []string{"father passed away"},
		Tone:    "gentle",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Sam, I'm here.", reply)

	assert.Equal(t, DefaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, chatMessage{Role: "system", Content: Tones["gentle"]}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "Note: father passed away"}, got.Messages[1])
	assert.Equal(t, chatMessage{Role: "user", Content: "I feel sad"}, got.Messages[2])
}

func TestOpenAICompleteWithoutMemory(t *testing.T) {
	var got chatRequest
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse("hi")))
	})

	_, err := c.Complete(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestOpenAIEmptyReply(t *testing.T) {
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse("")))
	})

	_, err := c.Complete(context.Background(), Request{Message: "hello"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestOpenAIUpstreamError(t *testing.T) {
	calls := 0
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := c.Complete(context.Background(), Request{Message: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyReply)
	assert.Equal(t, 1, calls, "requests are not retried")
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{})
	assert.Error(t, err)
}
