package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPTest(t *testing.T, h http.HandlerFunc) *HTTP {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTP(HTTPOptions{URL: srv.URL + "/chat", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestHTTPComplete(t *testing.T) {
	var got map[string]any
	c := newHTTPTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(Response{Reply: " Hi Sam! "})
	})

	reply, err := c.Complete(context.Background(), Request{
		Character: "nova",
		Message:   "hello",
		Memory:    []string{"father passed away"},
		Name:      "Sam",
		UserID:    "default",
		Gender:    "unspecified",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Sam!", reply)

	assert.Equal(t, "nova", got["character"])
	assert.Equal(t, "hello", got["message"])
	assert.Equal(t, []any{"father passed away"}, got["memory"])
	assert.Equal(t, "Sam", got["name"])
	assert.Equal(t, "default", got["userId"])
	assert.Equal(t, "unspecified", got["gender"])
}

func TestHTTPCompleteSendsEmptyMemoryArray(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newHTTPTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"reply":"ok"}`))
	})

	_, err := c.Complete(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw["memory"]))
}

func TestHTTPCompleteFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: ErrStatus,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>not json</html>"))
			},
			want: ErrMalformed,
		},
		{
			name: "empty reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"reply":""}`))
			},
			want: ErrEmptyReply,
		},
		{
			name: "missing reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
			want: ErrEmptyReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newHTTPTest(t, tt.handler)
			_, err := c.Complete(context.Background(), Request{Message: "hi"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPCompleteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTP(HTTPOptions{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, Fallback, ReplyFor("", err))
}

func TestNewHTTPRequiresURL(t *testing.T) {
	_, err := NewHTTP(HTTPOptions{})
	assert.Error(t, err)
}

func TestNewHTTPWithProxy(t *testing.T) {
	c, err := NewHTTP(HTTPOptions{URL: "http://example.invalid/chat", Proxy: "127.0.0.1:1080"})
	require.NoError(t, err)
	assert.NotNil(t, c.client.Transport)
}

func TestReplyFor(t *testing.T) {
	assert.Equal(t, "hi", ReplyFor("hi", nil))
	assert.Equal(t, Fallback, ReplyFor("", errors.New("network down")))
	assert.Equal(t, Fallback, ReplyFor("", ErrMalformed))
	assert.Equal(t, EmptyReply, ReplyFor("", ErrEmptyReply))
}
