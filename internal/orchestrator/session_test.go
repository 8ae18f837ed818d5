package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/nova/internal/memory"
	"github.com/rcliao/nova/internal/model"
	"github.com/rcliao/nova/internal/store"
	"github.com/rcliao/nova/internal/turn"
	"github.com/rcliao/nova/internal/verify"
)

type speakFunc func(ctx context.Context, text, voice string) error

func (f speakFunc) Render(ctx context.Context, text, voice string) error { return f(ctx, text, voice) }

var silent = speakFunc(func(context.Context, string, string) error { return nil })

type brokenCapture struct{ events chan turn.CaptureEvent }

func (brokenCapture) Start(context.Context) error         { return errors.New("no microphone") }
func (brokenCapture) Stop() error                         { return nil }
func (b brokenCapture) Events() <-chan turn.CaptureEvent { return b.events }

type failingStore struct{ *store.Mem }

func (failingStore) GetProfile(context.Context) (*model.Profile, error) {
	return nil, errors.New("disk on fire")
}

type sessionHarness struct {
	coord    *turn.Coordinator
	session  *Session
	messages chan model.Message
	statuses chan string
}

func newSessionHarness(t *testing.T, s store.Store, capture turn.Capturer, vopts verify.Options) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		coord:    turn.New(capture, silent, turn.Options{Pause: turn.MinPause}),
		messages: make(chan model.Message, 64),
		statuses: make(chan string, 1),
	}
	orch, err := New(Options{
		Store:      s,
		Completion: &fakeCompletion{reply: "Glad you're here."},
		Machine:    verify.New(vopts),
		Memory:     memory.New(memory.Options{}),
		Renderer:   h.coord,
		OnMessage:  func(m model.Message, _ bool) { h.messages <- m },
		OnStatus:   func(s string) { h.statuses <- s },
	})
	require.NoError(t, err)
	h.session = NewSession(orch, h.coord)
	return h
}

func (h *sessionHarness) run(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.session.Run(ctx) }()
	return cancel, done
}

// waitFor reads messages until one satisfies match.
func (h *sessionHarness) waitFor(t *testing.T, match func(model.Message) bool) model.Message {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case m := <-h.messages:
			if match(m) {
				return m
			}
		case <-timeout:
			t.Fatal("timed out waiting for message")
			return model.Message{}
		}
	}
}

func assistantSays(substr string) func(model.Message) bool {
	return func(m model.Message) bool {
		return m.Speaker == model.SpeakerAssistant && strings.Contains(m.Content, substr)
	}
}

func TestSessionOnboardsThroughCoordinator(t *testing.T) {
	h := newSessionHarness(t, store.NewMem(), nil, verify.Options{})
	cancel, done := h.run(t)

	h.waitFor(t, assistantSays("first name"))
	require.NoError(t, h.coord.Submit(context.Background(), "Sam"))

	user := h.waitFor(t, func(m model.Message) bool { return m.Speaker == model.SpeakerUser })
	assert.Equal(t, "Sam", user.Content)
	h.waitFor(t, assistantSays("How old are you?"))

	cancel()
	require.NoError(t, <-done)
}

func TestSessionUnlocksWhenLockoutElapses(t *testing.T) {
	mem := seededStore(t)
	h := newSessionHarness(t, mem, nil, verify.Options{
		Strategy: verify.StrategyCodeword,
		Lockout:  50 * time.Millisecond,
	})
	cancel, done := h.run(t)
	ctx := context.Background()

	h.waitFor(t, assistantSays("codeword"))
	require.NoError(t, h.coord.Submit(ctx, "ocean"))
	h.waitFor(t, assistantSays("Try again"))
	require.NoError(t, h.coord.Submit(ctx, "ocean"))
	h.waitFor(t, assistantSays("minute"))

	// No input: the timer restarts verification on its own.
	h.waitFor(t, assistantSays("codeword"))
	require.NoError(t, h.coord.Submit(ctx, "nebula"))
	h.waitFor(t, assistantSays("Sam"))

	require.NoError(t, h.coord.Submit(ctx, "hello"))
	h.waitFor(t, assistantSays("Glad you're here."))

	cancel()
	require.NoError(t, <-done)
	until, err := mem.GetLockout(ctx)
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}

func TestSessionReportsCaptureDegradation(t *testing.T) {
	capture := brokenCapture{events: make(chan turn.CaptureEvent)}
	h := newSessionHarness(t, store.NewMem(), capture, verify.Options{})
	cancel, done := h.run(t)

	select {
	case st := <-h.statuses:
		assert.Equal(t, turn.StatusTypedOnly, st)
	case <-time.After(3 * time.Second):
		t.Fatal("no status reported")
	}
	assert.True(t, h.coord.TypedOnly())

	cancel()
	require.NoError(t, <-done)
}

func TestSessionStopsWhenStateCannotLoad(t *testing.T) {
	h := newSessionHarness(t, failingStore{store.NewMem()}, nil, verify.Options{})
	cancel, done := h.run(t)
	defer cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk on fire")
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
	}
}
