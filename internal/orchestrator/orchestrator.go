// Package orchestrator routes user utterances through verification or the
// completion service and records the conversation.
//
// One turn is: append the user message, produce a reply (a verification
// prompt until access is granted, a completion afterwards), append the
// reply, render it, then update memory. The transcript entry is always
// written before rendering starts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/nova/internal/completion"
	"github.com/rcliao/nova/internal/memory"
	"github.com/rcliao/nova/internal/model"
	"github.com/rcliao/nova/internal/store"
	"github.com/rcliao/nova/internal/turn"
	"github.com/rcliao/nova/internal/verify"
)

// Renderer speaks a reply. turn.Coordinator satisfies it.
type Renderer interface {
	Render(ctx context.Context, text string) error
}

// voiceSetter is implemented by renderers with a selectable voice.
type voiceSetter interface {
	SetVoice(voice string)
}

// Persona holds the fields sent with every completion request.
type Persona struct {
	Character string
	Gender    string
	Tone      string
	Language  string
	// UserID identifies the device to the completion service.
	UserID string
}

// Options configures an Orchestrator.
type Options struct {
	Store      store.Store
	Completion completion.Client
	Machine    *verify.Machine
	Memory     *memory.Accumulator
	// Renderer may be nil, in which case replies are recorded but not spoken.
	Renderer Renderer
	Persona  Persona
	// MemoryBudget caps the characters of memory per request. Zero sends all.
	MemoryBudget int
	// OnMessage observes every message in transcript order. Replayed is true
	// for messages from earlier sessions shown after verification.
	OnMessage func(m model.Message, replayed bool)
	// OnStatus observes one-off status notices such as capture degradation.
	OnStatus func(status string)
	Logger   *slog.Logger
}

// Orchestrator is the sole mutator of the device store during a session.
// It is not safe for concurrent use; Session serializes calls.
type Orchestrator struct {
	opts Options
	log  *slog.Logger

	history []model.Message
	facts   []model.Fact
}

// New validates opts and creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	var errs []error
	if opts.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if opts.Completion == nil {
		errs = append(errs, errors.New("completion client is required"))
	}
	if opts.Machine == nil {
		errs = append(errs, errors.New("verify machine is required"))
	}
	if opts.Memory == nil {
		errs = append(errs, errors.New("memory accumulator is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if opts.Persona.UserID == "" {
		opts.Persona.UserID = store.DefaultDevice
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{opts: opts, log: logger.With("component", "orchestrator")}, nil
}

// Stage returns the verification stage.
func (o *Orchestrator) Stage() model.Stage { return o.opts.Machine.Stage() }

// Memory returns the facts currently remembered.
func (o *Orchestrator) Memory() []model.Fact {
	return append([]model.Fact(nil), o.facts...)
}

// LockoutUntil returns the lockout deadline, or zero when not locked.
func (o *Orchestrator) LockoutUntil() time.Time {
	st := o.opts.Machine.State()
	if st.Stage != model.StageLocked {
		return time.Time{}
	}
	return st.LockoutUntil
}

// Start loads the device state and opens the session with the first
// verification prompt. Earlier transcript is held back until the user is
// verified.
func (o *Orchestrator) Start(ctx context.Context) error {
	s := o.opts.Store
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	lockout, err := s.GetLockout(ctx)
	if err != nil {
		return fmt.Errorf("load lockout: %w", err)
	}
	if o.facts, err = s.GetMemory(ctx); err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	if o.history, err = s.Transcript(ctx); err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	voice, err := s.GetVoice(ctx)
	if err != nil {
		o.log.Warn("load voice failed", "error", err)
	}
	if vs, ok := o.opts.Renderer.(voiceSetter); ok && voice != "" {
		vs.SetVoice(voice)
	}

	out := o.opts.Machine.Begin(profile, lockout)
	o.log.Info("session started", "stage", o.Stage(), "returning", profile != nil,
		"facts", len(o.facts), "messages", len(o.history))
	if !out.Locked && !lockout.IsZero() {
		if err := o.clearLockout(ctx); err != nil {
			o.log.Warn("stale lockout not cleared", "error", err)
		}
	}
	o.say(ctx, out.Prompt)
	return nil
}

// Handle runs one conversational turn for utterance. Blank input is
// ignored. Failures are recovered locally; the returned error reports
// persistence problems only.
func (o *Orchestrator) Handle(ctx context.Context, utterance string) error {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil
	}
	var errs []error
	if err := o.record(ctx, model.SpeakerUser, text); err != nil {
		errs = append(errs, err)
	}

	if !o.opts.Machine.Granted() {
		if err := o.verifyTurn(ctx, text); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	reply, err := o.complete(ctx, text)
	if rerr := o.record(ctx, model.SpeakerAssistant, reply); rerr != nil {
		errs = append(errs, rerr)
	}
	o.render(ctx, reply)
	if err != nil {
		return errors.Join(errs...)
	}
	if merr := o.remember(ctx, text, reply); merr != nil {
		errs = append(errs, merr)
	}
	return errors.Join(errs...)
}

// Unlock ends an elapsed lockout and asks for verification again. It is a
// no-op when the machine is not locked or the deadline has not passed.
func (o *Orchestrator) Unlock(ctx context.Context) error {
	out, ok := o.opts.Machine.Expire()
	if !ok {
		return nil
	}
	o.log.Info("lockout expired")
	err := o.clearLockout(ctx)
	o.say(ctx, out.Prompt)
	return err
}

// SetVoice persists the voice preference and applies it to the renderer.
func (o *Orchestrator) SetVoice(ctx context.Context, voice string) error {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return errors.New("voice is required")
	}
	if vs, ok := o.opts.Renderer.(voiceSetter); ok {
		vs.SetVoice(voice)
	}
	if err := o.opts.Store.PutVoice(ctx, voice); err != nil {
		return fmt.Errorf("save voice: %w", err)
	}
	return nil
}

// Notify surfaces a status notice without recording it in the transcript.
func (o *Orchestrator) Notify(status string) {
	o.log.Warn(status)
	if o.opts.OnStatus != nil {
		o.opts.OnStatus(status)
	}
}

func (o *Orchestrator) verifyTurn(ctx context.Context, text string) error {
	m := o.opts.Machine
	wasLocked := m.Stage() == model.StageLocked
	returning := m.Profile() != nil
	out := m.Step(text)

	var errs []error
	if out.Profile != nil {
		if err := o.opts.Store.PutProfile(ctx, out.Profile); err != nil {
			errs = append(errs, fmt.Errorf("save profile: %w", err))
		}
	}
	switch {
	case out.Locked && !wasLocked:
		if err := o.opts.Store.PutLockout(ctx, out.LockoutUntil); err != nil {
			errs = append(errs, fmt.Errorf("save lockout: %w", err))
		}
	case wasLocked && !out.Locked:
		errs = append(errs, o.clearLockout(ctx))
	}
	if out.Granted {
		o.log.Info("access granted", "returning", returning)
		if returning {
			o.replay()
		}
	}
	o.say(ctx, out.Prompt)
	return errors.Join(errs...)
}

func (o *Orchestrator) complete(ctx context.Context, text string) (string, error) {
	p := o.opts.Persona
	req := completion.Request{
		Character: p.Character,
		Message:   text,
		Memory:    memory.Context(o.facts, o.opts.MemoryBudget),
		UserID:    p.UserID,
		Gender:    p.Gender,
		Tone:      p.Tone,
		Language:  p.Language,
	}
	if prof := o.opts.Machine.Profile(); prof != nil {
		req.Name = prof.DisplayName
	}
	reply, err := o.opts.Completion.Complete(ctx, req)
	if err != nil {
		o.log.Warn("completion failed", "error", err)
	}
	return completion.ReplyFor(reply, err), err
}

// remember extracts facts from the exchange and persists the merged memory
// when it changed.
func (o *Orchestrator) remember(ctx context.Context, utterance, reply string) error {
	acc := o.opts.Memory
	incoming := acc.ExtractExchange(utterance, reply)
	if len(incoming) == 0 {
		return nil
	}
	merged := acc.Merge(o.facts, incoming)
	if sameFacts(merged, o.facts) {
		return nil
	}
	if err := o.opts.Store.PutMemory(ctx, merged); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	o.log.Debug("memory updated", "facts", len(merged))
	o.facts = merged
	return nil
}

// say records and renders an assistant prompt. Empty prompts are skipped.
func (o *Orchestrator) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := o.record(ctx, model.SpeakerAssistant, text); err != nil {
		o.log.Error("record prompt failed", "error", err)
	}
	o.render(ctx, text)
}

func (o *Orchestrator) record(ctx context.Context, speaker model.Speaker, text string) error {
	msg, err := o.opts.Store.AppendMessage(ctx, speaker, text)
	if err != nil {
		// The message is still shown so the reply stays visible.
		msg = model.Message{Speaker: speaker, Content: text, CreatedAt: time.Now().UTC()}
		err = fmt.Errorf("append %s message: %w", speaker, err)
	}
	if o.opts.OnMessage != nil {
		o.opts.OnMessage(msg, false)
	}
	return err
}

func (o *Orchestrator) render(ctx context.Context, text string) {
	if o.opts.Renderer == nil {
		return
	}
	err := o.opts.Renderer.Render(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, turn.ErrInterrupted), errors.Is(err, context.Canceled):
		o.log.Debug("render interrupted")
	default:
		o.log.Warn("render failed", "error", err)
	}
}

func (o *Orchestrator) replay() {
	if o.opts.OnMessage == nil {
		return
	}
	for _, m := range o.history {
		o.opts.OnMessage(m, true)
	}
	o.history = nil
}

func (o *Orchestrator) clearLockout(ctx context.Context) error {
	if err := o.opts.Store.PutLockout(ctx, time.Time{}); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

func sameFacts(a, b []model.Fact) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
