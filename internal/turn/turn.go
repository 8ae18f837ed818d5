// Package turn coordinates speech capture and rendering for one session.
//
// Capture and render never overlap: capture is stopped before a reply is
// rendered and restarted when rendering ends, so the capture channel never
// hears the assistant's own voice. Replies are rendered sentence by sentence
// with a short pause between segments. A new utterance that arrives while a
// reply is rendering (a late transcript or typed input) cancels the render
// and is promoted to the session.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/nova/internal/segment"
)

var (
	// ErrInterrupted is returned by Render when a barge-in cancels it.
	ErrInterrupted = errors.New("turn: render interrupted")
	// ErrCaptureUnavailable reports that the capture service went away.
	ErrCaptureUnavailable = errors.New("turn: capture unavailable")
)

const (
	DefaultPause = 400 * time.Millisecond
	MinPause     = 300 * time.Millisecond
	MaxPause     = 800 * time.Millisecond

	// maxRestarts bounds consecutive capture restarts without a transcript.
	maxRestarts = 5
	// captureStable is how long capture must stay up before an ending no
	// longer counts toward maxRestarts.
	captureStable = 10 * time.Second
	queueSize   = 16
)

// StatusTypedOnly is reported once when capture degrades.
const StatusTypedOnly = "Voice capture is unavailable, so I'll read what you type instead."

// CaptureEventType classifies capture events.
type CaptureEventType int

const (
	// CaptureTranscript carries a finalized utterance.
	CaptureTranscript CaptureEventType = iota + 1
	// CaptureEnded reports that capture stopped, requested or not.
	CaptureEnded
	// CaptureFailed reports a device or permission failure.
	CaptureFailed
)

// CaptureEvent is emitted by a Capturer.
type CaptureEvent struct {
	Type CaptureEventType
	Text string
	Err  error
}

// Capturer is a speech-to-text source.
type Capturer interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan CaptureEvent
}

// Renderer speaks text with the given voice. Render must return promptly
// when ctx is cancelled.
type Renderer interface {
	Render(ctx context.Context, text, voice string) error
}

// Options configures a Coordinator.
type Options struct {
	// Pause between rendered segments, clamped to [MinPause, MaxPause].
	Pause time.Duration
	// MaxSegmentRunes bounds a rendered segment. Zero uses segment.DefaultMaxRunes.
	MaxSegmentRunes int
	Voice           string
	Logger          *slog.Logger
}

// Coordinator owns the capture/render turn discipline.
type Coordinator struct {
	capture Capturer
	render  Renderer
	pause   time.Duration
	maxSeg  int
	log     *slog.Logger

	utterances chan string
	status     chan string

	mu           sync.Mutex
	voice        string
	capturing    bool
	rendering    bool
	typedOnly    bool
	restarts     int
	stopPending  int
	startedAt    time.Time
	stable       time.Duration
	cancelRender context.CancelFunc
}

// New creates a Coordinator. A nil capture means typed input only; a nil
// render means replies are shown but not spoken.
func New(capture Capturer, render Renderer, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		capture:    capture,
		render:     render,
		pause:      ClampPause(opts.Pause),
		maxSeg:     opts.MaxSegmentRunes,
		log:        logger.With("component", "turn"),
		utterances: make(chan string, queueSize),
		status:     make(chan string, 1),
		voice:      opts.Voice,
		typedOnly:  capture == nil,
		stable:     captureStable,
	}
}

// ClampPause bounds the inter-segment pause. Zero selects DefaultPause.
func ClampPause(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultPause
	case d < MinPause:
		return MinPause
	case d > MaxPause:
		return MaxPause
	}
	return d
}

// Utterances delivers finalized user utterances, spoken or typed.
func (c *Coordinator) Utterances() <-chan string { return c.utterances }

// Status delivers at most one degradation notice.
func (c *Coordinator) Status() <-chan string { return c.status }

// TypedOnly reports whether capture is unavailable.
func (c *Coordinator) TypedOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typedOnly
}

// Voice returns the render voice.
func (c *Coordinator) Voice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

// SetVoice changes the render voice for subsequent renders.
func (c *Coordinator) SetVoice(voice string) {
	c.mu.Lock()
	c.voice = voice
	c.mu.Unlock()
}

// Run starts capture and pumps capture events until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.capture == nil {
		<-ctx.Done()
		return nil
	}

	c.startCapture(ctx)
	events := c.capture.Events()
	for {
		select {
		case <-ctx.Done():
			c.stopCapture()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				c.degrade(ErrCaptureUnavailable)
				continue
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev CaptureEvent) {
	switch ev.Type {
	case CaptureTranscript:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		c.mu.Lock()
		c.restarts = 0
		c.stopPending = 0
		c.mu.Unlock()
		c.Interrupt()
		c.deliver(ctx, text)

	case CaptureEnded:
		c.mu.Lock()
		if c.stopPending > 0 {
			// Acknowledges a Stop we issued, possibly after capture restarted.
			c.stopPending--
			c.mu.Unlock()
			return
		}
		unexpected := c.capturing
		c.capturing = false
		if unexpected {
			if time.Since(c.startedAt) >= c.stable {
				c.restarts = 0
			}
			c.restarts++
		}
		restarts := c.restarts
		c.mu.Unlock()
		if !unexpected {
			return
		}
		if restarts > maxRestarts {
			c.degrade(fmt.Errorf("capture ended %d times in a row: %w", restarts, ErrCaptureUnavailable))
			return
		}
		c.log.Debug("capture ended, restarting")
		c.startCapture(ctx)

	case CaptureFailed:
		err := ev.Err
		if err == nil {
			err = ErrCaptureUnavailable
		}
		c.degrade(err)
	}
}

func (c *Coordinator) deliver(ctx context.Context, text string) {
	select {
	case c.utterances <- text:
	case <-ctx.Done():
	}
}

// Submit delivers typed input through the same path as spoken input,
// interrupting any render in progress.
func (c *Coordinator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.Interrupt()
	select {
	case c.utterances <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interrupt cancels the render in progress, if any.
func (c *Coordinator) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelRender != nil {
		c.log.Debug("barge-in, cancelling render")
		c.cancelRender()
	}
}

// Render speaks text segment by segment. Capture is stopped for the
// duration and restarted afterwards, whether rendering succeeded, failed
// or was interrupted. It returns ErrInterrupted on barge-in.
func (c *Coordinator) Render(ctx context.Context, text string) error {
	segs := segment.Split(text, c.maxSeg)
	if len(segs) == 0 || c.render == nil {
		return nil
	}

	rctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.rendering = true
	c.cancelRender = cancel
	voice := c.voice
	c.stopCaptureLocked()
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.rendering = false
		c.cancelRender = nil
		c.mu.Unlock()
		if ctx.Err() == nil {
			c.startCapture(ctx)
		}
	}()

	for i, seg := range segs {
		if i > 0 {
			t := time.NewTimer(c.pause)
			select {
			case <-rctx.Done():
				t.Stop()
				return c.cancelled(ctx)
			case <-t.C:
			}
		}
		if err := c.render.Render(rctx, seg, voice); err != nil {
			if rctx.Err() != nil {
				return c.cancelled(ctx)
			}
			c.log.Warn("render failed", "err", err)
			return fmt.Errorf("render: %w", err)
		}
		if rctx.Err() != nil {
			return c.cancelled(ctx)
		}
	}
	return nil
}

func (c *Coordinator) cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrInterrupted
}

func (c *Coordinator) startCapture(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil || c.typedOnly || c.rendering || c.capturing {
		return
	}
	if err := c.capture.Start(ctx); err != nil {
		c.degradeLocked(err)
		return
	}
	c.capturing = true
	c.startedAt = time.Now()
}

func (c *Coordinator) stopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCaptureLocked()
}

func (c *Coordinator) stopCaptureLocked() {
	if !c.capturing {
		return
	}
	c.capturing = false
	if err := c.capture.Stop(); err != nil {
		c.log.Warn("stop capture", "err", err)
		return
	}
	c.stopPending++
}

func (c *Coordinator) degrade(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degradeLocked(err)
}

func (c *Coordinator) degradeLocked(err error) {
	if c.typedOnly {
		return
	}
	c.typedOnly = true
	c.capturing = false
	c.log.Warn("capture unavailable, typed input only", "err", err)
	select {
	case c.status <- StatusTypedOnly:
	default:
	}
}
