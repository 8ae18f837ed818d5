// Package verify implements the onboarding and verification state machine.
//
// A Machine collects a profile on first contact and authenticates a
// returning user before any conversation is allowed. Three strategies are
// supported: graduated (codeword, then up to three secondary questions),
// codeword (strict match with a fixed number of attempts) and challenge
// (the utterance must contain one of the profile's challenge phrases).
// Exhausting a strategy locks the machine until a timed lockout elapses.
//
// A Machine is not safe for concurrent use.
package verify

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/rcliao/nova/internal/model"
)

// Strategy selects how a returning user is verified.
type Strategy string

const (
	StrategyGraduated Strategy = "graduated"
	StrategyCodeword  Strategy = "codeword"
	StrategyChallenge Strategy = "challenge"
)

const (
	DefaultMaxAttempts = 2
	DefaultLockout     = 5 * time.Minute
	// SoftQuestions is the number of graduated follow-up questions.
	SoftQuestions  = 3
	challengeCount = 3
)

// ParseStrategy validates a strategy name. Empty selects graduated.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyGraduated:
		return StrategyGraduated, nil
	case StrategyCodeword:
		return StrategyCodeword, nil
	case StrategyChallenge:
		return StrategyChallenge, nil
	}
	return "", fmt.Errorf("unknown verify strategy %q (want graduated, codeword or challenge)", s)
}

// Options configures a Machine.
type Options struct {
	Strategy       Strategy
	MaxAttempts    int
	Lockout        time.Duration
	ChallengeWords []string
	Now            func() time.Time
	Rand           *rand.Rand
	Logger         *slog.Logger
}

// Outcome is the result of one transition.
type Outcome struct {
	// Prompt is the assistant reply for this turn. Empty means nothing to say.
	Prompt string
	// Profile is set when a newly collected profile must be persisted.
	Profile *model.Profile
	// Granted reports that the machine reached the complete stage.
	Granted bool
	// Locked reports that the machine is locked until LockoutUntil.
	Locked       bool
	LockoutUntil time.Time
}

// Machine is the onboarding and verification state machine.
type Machine struct {
	opts    Options
	log     *slog.Logger
	state   model.SessionState
	profile *model.Profile
	draft   model.Profile
}

// New creates a Machine in the start stage.
func New(opts Options) *Machine {
	if opts.Strategy == "" {
		opts.Strategy = StrategyGraduated
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Lockout <= 0 {
		opts.Lockout = DefaultLockout
	}
	if len(opts.ChallengeWords) < challengeCount {
		opts.ChallengeWords = DefaultChallengeWords
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Machine{
		opts:  opts,
		log:   opts.Logger.With("component", "verify"),
		state: model.SessionState{Stage: model.StageStart},
	}
}

// State returns a copy of the session state.
func (m *Machine) State() model.SessionState { return m.state }

// Stage returns the current stage.
func (m *Machine) Stage() model.Stage { return m.state.Stage }

// Granted reports whether conversation is allowed.
func (m *Machine) Granted() bool { return m.state.Stage == model.StageComplete }

// Profile returns the verified or newly collected profile, or nil.
func (m *Machine) Profile() *model.Profile { return m.profile }

// Begin leaves the start stage. A nil profile starts onboarding; a profile
// starts verification; a lockout deadline in the future resumes the locked
// stage so a restart cannot bypass it.
func (m *Machine) Begin(p *model.Profile, lockoutUntil time.Time) Outcome {
	m.profile = p
	now := m.opts.Now()
	if p != nil && lockoutUntil.After(now) {
		m.state = model.SessionState{Stage: model.StageLocked, LockoutUntil: lockoutUntil}
		m.log.Warn("resuming lockout", "until", lockoutUntil)
		return Outcome{
			Prompt:       promptStillLocked(lockoutUntil.Sub(now)),
			Locked:       true,
			LockoutUntil: lockoutUntil,
		}
	}
	if p == nil {
		m.draft = model.Profile{}
		m.state = model.SessionState{Stage: model.StageAskName}
		return Outcome{Prompt: promptAskName}
	}
	return m.startVerify()
}

func (m *Machine) startVerify() Outcome {
	m.state = model.SessionState{Stage: model.StageVerify, AttemptsRemaining: m.opts.MaxAttempts}
	if m.strategy() == StrategyChallenge {
		phrases := m.profile.ChallengePhrases
		return Outcome{Prompt: promptChallenge(m.profile.DisplayName, phrases[m.opts.Rand.Intn(len(phrases))])}
	}
	return Outcome{Prompt: promptVerify(m.profile.DisplayName)}
}

// strategy returns the configured strategy adjusted to what the profile
// can support.
func (m *Machine) strategy() Strategy {
	s := m.opts.Strategy
	if m.profile == nil {
		return s
	}
	if s == StrategyChallenge && len(m.profile.ChallengePhrases) == 0 {
		return StrategyCodeword
	}
	if s != StrategyChallenge && m.profile.CodeWord == "" && len(m.profile.ChallengePhrases) > 0 {
		return StrategyChallenge
	}
	return s
}

// Step feeds one utterance to the machine. Empty input is ignored.
func (m *Machine) Step(input string) Outcome {
	input = strings.TrimSpace(input)
	if input == "" {
		return Outcome{}
	}

	switch m.state.Stage {
	case model.StageStart:
		return Outcome{}
	case model.StageAskName:
		name := firstName(input)
		if name == "" {
			return Outcome{Prompt: promptAskName}
		}
		m.draft.DisplayName = name
		m.state.Stage = model.StageAskAge
		return Outcome{Prompt: promptAskAge(name)}
	case model.StageAskAge:
		m.draft.Age = input
		m.state.Stage = model.StageAskMother
		return Outcome{Prompt: promptAskMother}
	case model.StageAskMother:
		m.draft.Fallback.MotherName = input
		m.state.Stage = model.StageAskPet
		return Outcome{Prompt: promptAskPet}
	case model.StageAskPet:
		m.draft.Fallback.PetName = input
		m.state.Stage = model.StageAskCodeword
		return Outcome{Prompt: promptCodeword}
	case model.StageAskCodeword:
		return m.finishOnboarding(input)
	case model.StageVerify:
		return m.verify(input)
	case model.StageSoftVerify:
		return m.softVerify(input)
	case model.StageLocked:
		if out, ok := m.Expire(); ok {
			return out
		}
		return Outcome{
			Prompt:       promptStillLocked(m.state.LockoutUntil.Sub(m.opts.Now())),
			Locked:       true,
			LockoutUntil: m.state.LockoutUntil,
		}
	}
	return Outcome{Granted: m.Granted()}
}

func (m *Machine) finishOnboarding(codeword string) Outcome {
	p := m.draft
	p.CodeWord = codeword
	p.CreatedAt = m.opts.Now().UTC()
	if m.opts.Strategy == StrategyChallenge {
		p.ChallengePhrases = m.pickPhrases()
	}
	m.profile = &p
	m.state = model.SessionState{Stage: model.StageComplete}
	m.log.Info("onboarding complete", "name", p.DisplayName)

	prompt := promptWelcomeNew(p.DisplayName)
	if len(p.ChallengePhrases) > 0 {
		prompt = promptWelcomeNewChallenge(p.DisplayName, p.ChallengePhrases)
	}
	return Outcome{Prompt: prompt, Profile: &p, Granted: true}
}

func (m *Machine) pickPhrases() []string {
	perm := m.opts.Rand.Perm(len(m.opts.ChallengeWords))
	out := make([]string, 0, challengeCount)
	for _, i := range perm[:challengeCount] {
		out = append(out, m.opts.ChallengeWords[i])
	}
	return out
}

func (m *Machine) verify(input string) Outcome {
	if m.matches(input) {
		return m.grant(promptGranted(m.profile.DisplayName))
	}

	if m.strategy() == StrategyGraduated {
		m.state.Stage = model.StageSoftVerify
		m.state.SoftStep = 1
		m.log.Info("codeword mismatch, starting soft verification")
		return Outcome{Prompt: softQuestion(1)}
	}

	m.state.AttemptsRemaining--
	m.log.Info("verification failed", "attempts_remaining", m.state.AttemptsRemaining)
	if m.state.AttemptsRemaining <= 0 {
		return m.lock()
	}
	return Outcome{Prompt: promptRetry}
}

func (m *Machine) matches(input string) bool {
	if m.strategy() == StrategyChallenge {
		lower := strings.ToLower(input)
		for _, phrase := range m.profile.ChallengePhrases {
			if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
				return true
			}
		}
		return false
	}
	return m.profile.CodeWord != "" && strings.EqualFold(input, strings.TrimSpace(m.profile.CodeWord))
}

func (m *Machine) softVerify(input string) Outcome {
	if want := m.softAnswer(m.state.SoftStep); want != "" && strings.EqualFold(input, want) {
		return m.grant(promptSoftGranted(m.profile.DisplayName, m.profile.CodeWord))
	}
	if m.state.SoftStep >= SoftQuestions {
		return m.lock()
	}
	m.state.SoftStep++
	return Outcome{Prompt: softQuestion(m.state.SoftStep)}
}

func (m *Machine) softAnswer(step int) string {
	switch step {
	case 1:
		return strings.TrimSpace(m.profile.Fallback.MotherName)
	case 2:
		return strings.TrimSpace(m.profile.Fallback.PetName)
	case 3:
		return strings.TrimSpace(m.profile.Age)
	}
	return ""
}

func (m *Machine) grant(prompt string) Outcome {
	m.state = model.SessionState{Stage: model.StageComplete}
	m.log.Info("verified", "name", m.profile.DisplayName)
	return Outcome{Prompt: prompt, Granted: true}
}

func (m *Machine) lock() Outcome {
	until := m.opts.Now().Add(m.opts.Lockout)
	m.state = model.SessionState{Stage: model.StageLocked, LockoutUntil: until}
	m.log.Warn("verification exhausted, locking", "until", until)
	return Outcome{Prompt: promptLocked(m.opts.Lockout), Locked: true, LockoutUntil: until}
}

// Expire unlocks the machine when its lockout deadline has passed and
// restarts verification. It reports false while still locked or when the
// machine is not locked.
func (m *Machine) Expire() (Outcome, bool) {
	if m.state.Stage != model.StageLocked || m.opts.Now().Before(m.state.LockoutUntil) {
		return Outcome{}, false
	}
	m.log.Info("lockout expired")
	if m.profile == nil {
		m.draft = model.Profile{}
		m.state = model.SessionState{Stage: model.StageAskName}
		return Outcome{Prompt: promptAskName}, true
	}
	return m.startVerify(), true
}

// firstName returns the first word of input without surrounding punctuation.
func firstName(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?;:\"'()")
}
