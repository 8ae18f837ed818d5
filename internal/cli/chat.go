package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/nova/internal/model"
	"github.com/rcliao/nova/internal/orchestrator"
	"github.com/rcliao/nova/internal/speechbus"
	"github.com/rcliao/nova/internal/turn"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk with Nova",
		Long: "Start a conversation. Type a line and press enter, or attach a speech service " +
			"with --speech-url to talk out loud. Commands: /voice <name>, /stop, /quit.",
		Run: runChat,
	}

	cmd.Flags().String("speech-url", "", "Speech service WebSocket URL (default: $NOVA_SPEECH_URL)")
	cmd.Flags().String("completion-url", "", "Completion endpoint (default: $NOVA_COMPLETION_URL)")
	cmd.Flags().String("tone", "", "Persona tone: gentle, nerdy or flirty")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	cfg := settings()
	if v, _ := cmd.Flags().GetString("speech-url"); v != "" {
		cfg.Speech.URL = v
	}
	if v, _ := cmd.Flags().GetString("completion-url"); v != "" {
		cfg.Completion.URL = v
	}
	if v, _ := cmd.Flags().GetString("tone"); v != "" {
		cfg.Persona.Tone = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	client, err := newCompletion(ctx, cfg, logger)
	if err != nil {
		exitErr("completion", err)
	}
	machine, err := newMachine(cfg, logger)
	if err != nil {
		exitErr("verify", err)
	}

	var (
		capture turn.Capturer
		render  turn.Renderer
	)
	if cfg.Speech.URL != "" {
		bus, err := speechbus.Dial(ctx, cfg.Speech.URL, speechbus.Options{Logger: logger})
		if err != nil {
			logger.Warn("speech service unavailable, typed input only", "err", err)
		} else {
			defer bus.Close()
			capture, render = bus, bus
		}
	}
	coord := turn.New(capture, render, turn.Options{
		Pause:           cfg.RenderPause(),
		MaxSegmentRunes: cfg.Speech.MaxSegmentRunes,
		Voice:           cfg.Speech.Voice,
		Logger:          logger,
	})

	out := cmd.OutOrStdout()
	orch, err := orchestrator.New(orchestrator.Options{
		Store:      s,
		Completion: client,
		Machine:    machine,
		Memory:     newAccumulator(cfg),
		Renderer:   coord,
		Persona: orchestrator.Persona{
			Character: cfg.Persona.Character,
			Gender:    cfg.Persona.Gender,
			Tone:      cfg.Persona.Tone,
			Language:  cfg.Persona.Language,
			UserID:    cfg.Device,
		},
		MemoryBudget: cfg.Completion.MemoryBudget,
		OnMessage: func(m model.Message, replayed bool) {
			// Typed lines are already on screen.
			if m.Speaker == model.SpeakerUser && !replayed && coord.TypedOnly() {
				return
			}
			fmt.Fprintln(out, formatMessage(m, replayed))
		},
		OnStatus: func(status string) {
			fmt.Fprintln(out, statusStyle.Render(status))
		},
		Logger: logger,
	})
	if err != nil {
		exitErr("chat", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orchestrator.NewSession(orch, coord).Run(gctx) })
	g.Go(func() error { return readInput(gctx, os.Stdin, out, coord, orch, stop) })
	if err := g.Wait(); err != nil {
		exitErr("chat", err)
	}
}

// readInput submits typed lines to the coordinator until EOF, /quit or ctx
// is done. The scanner goroutine is abandoned on exit since stdin reads
// cannot be cancelled.
func readInput(ctx context.Context, r io.Reader, out io.Writer, coord *turn.Coordinator, orch *orchestrator.Orchestrator, quit context.CancelFunc) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				quit()
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "/quit" || line == "/exit":
				quit()
				return nil
			case line == "/stop":
				coord.Interrupt()
			case strings.HasPrefix(line, "/voice"):
				voice := strings.TrimSpace(strings.TrimPrefix(line, "/voice"))
				if voice == "" {
					fmt.Fprintln(out, dimStyle.Render("voice: "+coord.Voice()))
					continue
				}
				if err := orch.SetVoice(ctx, voice); err != nil {
					slog.Warn("set voice", "err", err)
				}
			default:
				if err := coord.Submit(ctx, line); err != nil {
					return nil
				}
			}
		}
	}
}
