// Package speechbus connects the turn coordinator to an external speech
// service over a WebSocket. The service owns the microphone and the voice;
// this package only exchanges JSON frames with it.
package speechbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rcliao/nova/internal/turn"
)

var (
	// ErrClosed is returned when the bus connection is gone.
	ErrClosed = errors.New("speechbus: connection closed")
	// ErrRender wraps a render failure reported by the service.
	ErrRender = errors.New("speechbus: render failed")
)

// Options configures a Client.
type Options struct {
	Logger *slog.Logger
}

// Client is a speech bus connection. It implements turn.Capturer and
// turn.Renderer.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex
	events  chan turn.CaptureEvent
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	pending map[string]chan error
}

var (
	_ turn.Capturer = (*Client)(nil)
	_ turn.Renderer = (*Client)(nil)
)

// Dial connects to the speech service at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial speech bus: %w", err)
	}

	c := &Client{
		conn:    conn,
		log:     logger.With("component", "speechbus"),
		events:  make(chan turn.CaptureEvent, 16),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		pending: make(map[string]chan error),
	}
	c.log.Info("connected to speech bus", "url", url)
	go c.readLoop()
	return c, nil
}

// Start asks the service to begin capturing.
func (c *Client) Start(context.Context) error {
	return c.write(Frame{Type: TypeCaptureStart})
}

// Stop asks the service to stop capturing.
func (c *Client) Stop() error {
	return c.write(Frame{Type: TypeCaptureStop})
}

// Events delivers capture events. The channel closes when the connection ends.
func (c *Client) Events() <-chan turn.CaptureEvent { return c.events }

// Render sends text to the service and waits for it to finish speaking.
// Cancelling ctx sends a render.cancel frame for the request.
func (c *Client) Render(ctx context.Context, text, voice string) error {
	id := uuid.NewString()
	result := make(chan error, 1)

	c.mu.Lock()
	c.pending[id] = result
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Frame{Type: TypeRender, ID: id, Text: text, Voice: voice}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if err := c.write(Frame{Type: TypeRenderCancel, ID: id}); err != nil {
			c.log.Debug("send render cancel", "err", err)
		}
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Close ends the connection and waits for the reader to exit.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", f.Type, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		close(c.events)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				if isClosed(err) {
					c.log.Info("speech bus closed", "err", err)
				} else {
					c.log.Warn("speech bus read failed", "err", err)
				}
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("malformed frame", "err", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f Frame) {
	switch f.Type {
	case TypeTranscript:
		if !f.Final {
			return
		}
		c.emit(turn.CaptureEvent{Type: turn.CaptureTranscript, Text: f.Text})
	case TypeCaptureEnd:
		c.emit(turn.CaptureEvent{Type: turn.CaptureEnded})
	case TypeCaptureError:
		c.emit(turn.CaptureEvent{Type: turn.CaptureFailed, Err: fmt.Errorf("speech service: %s", f.Error)})
	case TypeRenderStart:
		c.log.Debug("render started", "id", f.ID)
	case TypeRenderEnd:
		c.complete(f.ID, nil)
	case TypeRenderError:
		c.complete(f.ID, fmt.Errorf("%w: %s", ErrRender, f.Error))
	default:
		c.log.Debug("ignoring frame", "type", f.Type)
	}
}

func (c *Client) emit(ev turn.CaptureEvent) {
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

func (c *Client) complete(id string, err error) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		c.log.Debug("render result for unknown id", "id", id)
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
