package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/nova/internal/turn"
)

// Session runs one conversation: the coordinator's capture pump and the
// orchestrator loop side by side. Only the loop mutates state, so turns are
// handled one at a time.
type Session struct {
	orch  *Orchestrator
	coord *turn.Coordinator
	log   *slog.Logger
}

// NewSession pairs an orchestrator with the coordinator it renders through.
func NewSession(o *Orchestrator, c *turn.Coordinator) *Session {
	return &Session{orch: o, coord: c, log: o.log.With("component", "session")}
}

// Run starts the session and blocks until ctx is cancelled or the
// orchestrator cannot load the device state.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.coord.Run(ctx) })
	g.Go(func() error { return s.loop(ctx) })
	return g.Wait()
}

func (s *Session) loop(ctx context.Context) error {
	if err := s.orch.Start(ctx); err != nil {
		return err
	}
	for {
		var (
			timer  *time.Timer
			expire <-chan time.Time
		)
		if until := s.orch.LockoutUntil(); !until.IsZero() {
			timer = time.NewTimer(time.Until(until))
			expire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case u := <-s.coord.Utterances():
			stopTimer(timer)
			if err := s.orch.Handle(ctx, u); err != nil {
				s.log.Error("turn incomplete", "error", err)
			}
		case st := <-s.coord.Status():
			stopTimer(timer)
			s.orch.Notify(st)
		case <-expire:
			if err := s.orch.Unlock(ctx); err != nil {
				s.log.Error("unlock incomplete", "error", err)
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
