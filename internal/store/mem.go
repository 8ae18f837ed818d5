package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rcliao/nova/internal/model"
)

// Mem is an in-memory Store. It is safe for concurrent use and intended
// for tests and ephemeral sessions.
type Mem struct {
	mu         sync.Mutex
	profile    *model.Profile
	memory     []model.Fact
	transcript []model.Message
	voice      string
	lockout    time.Time
	ids        *idGen
}

var _ Store = (*Mem)(nil)

// NewMem creates an empty in-memory Store.
func NewMem() *Mem {
	return &Mem{ids: newIDGen()}
}

func (m *Mem) GetProfile(context.Context) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil, nil
	}
	p := *m.profile
	p.ChallengePhrases = slices.Clone(p.ChallengePhrases)
	return &p, nil
}

func (m *Mem) PutProfile(_ context.Context, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	cp := *p
	cp.ChallengePhrases = slices.Clone(p.ChallengePhrases)
	m.mu.Lock()
	m.profile = &cp
	m.mu.Unlock()
	return nil
}

func (m *Mem) GetMemory(context.Context) ([]model.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.memory), nil
}

func (m *Mem) PutMemory(_ context.Context, facts []model.Fact) error {
	m.mu.Lock()
	m.memory = slices.Clone(facts)
	m.mu.Unlock()
	return nil
}

func (m *Mem) Transcript(context.Context) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.transcript), nil
}

func (m *Mem) AppendMessage(_ context.Context, speaker model.Speaker, content string) (model.Message, error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := model.Message{
		ID:        m.ids.newID(now),
		Sequence:  len(m.transcript) + 1,
		Speaker:   speaker,
		Content:   content,
		CreatedAt: now,
	}
	m.transcript = append(m.transcript, msg)
	return msg, nil
}

func (m *Mem) GetVoice(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice, nil
}

func (m *Mem) PutVoice(_ context.Context, voice string) error {
	m.mu.Lock()
	m.voice = voice
	m.mu.Unlock()
	return nil
}

func (m *Mem) GetLockout(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockout, nil
}

func (m *Mem) PutLockout(_ context.Context, until time.Time) error {
	m.mu.Lock()
	m.lockout = until
	m.mu.Unlock()
	return nil
}

func (m *Mem) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
	m.memory = nil
	m.transcript = nil
	m.voice = ""
	m.lockout = time.Time{}
	return nil
}

func (m *Mem) Close() error { return nil }
