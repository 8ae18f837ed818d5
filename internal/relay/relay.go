// Package relay serves the completion endpoint used by thin clients. It
// holds the provider credential so clients never see it, picks the system
// prompt by tone and forwards the message to an upstream completion client.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/nova/internal/completion"
)

const (
	// NoResponse is returned when the provider answers with nothing.
	NoResponse = "No response."

	errProvider = "Failed to reach provider."
	errInvalid  = "Invalid request body."
	errMessage  = "Message is required."

	maxBodyBytes = 64 << 10
)

// Handler serves POST /chat and GET /healthz.
type Handler struct {
	upstream completion.Client
	log      *slog.Logger
	mux      *http.ServeMux
}

// NewHandler creates a relay handler forwarding to upstream.
func NewHandler(upstream completion.Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{upstream: upstream, log: logger.With("component", "relay"), mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /chat", h.chat)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req completion.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, completion.Response{Error: errInvalid})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, completion.Response{Error: errMessage})
		return
	}

	start := time.Now()
	reply, err := h.upstream.Complete(r.Context(), req)
	switch {
	case errors.Is(err, completion.ErrEmptyReply):
		reply = NoResponse
	case err != nil:
		h.log.Error("upstream failed", "err", err, "elapsed", time.Since(start))
		writeJSON(w, http.StatusBadGateway, completion.Response{Error: errProvider})
		return
	}
	h.log.Info("chat", "tone", req.Tone, "memory", len(req.Memory), "elapsed", time.Since(start))
	writeJSON(w, http.StatusOK, completion.Response{Reply: reply})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
