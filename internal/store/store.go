// Package store provides the device-scoped persistence interface and its backends.
package store

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/nova/internal/model"
)

// ErrNotFound is used internally by backends for absent records.
// It never escapes a Store read.
var ErrNotFound = errors.New("store: not found")

// Record names persisted per device.
const (
	recordProfile = "profile"
	recordMemory  = "memory"
	recordVoice   = "voice"
	recordLockout = "lockout"
)

// DefaultDevice is the device namespace used when none is configured.
const DefaultDevice = "default"

// Store is the device-scoped repository for identity, memory, transcript
// and preferences. Reads of absent values return zero values and a nil
// error: absence means "no prior session".
type Store interface {
	// GetProfile returns the identity profile, or nil when none exists.
	GetProfile(ctx context.Context) (*model.Profile, error)

	// PutProfile overwrites the identity profile.
	PutProfile(ctx context.Context, p *model.Profile) error

	// GetMemory returns the remembered facts in insertion order.
	GetMemory(ctx context.Context) ([]model.Fact, error)

	// PutMemory replaces the remembered facts.
	PutMemory(ctx context.Context, facts []model.Fact) error

	// Transcript returns all messages ordered by sequence.
	Transcript(ctx context.Context) ([]model.Message, error)

	// AppendMessage assigns an ID, sequence and timestamp and persists the message.
	AppendMessage(ctx context.Context, speaker model.Speaker, content string) (model.Message, error)

	// GetVoice returns the selected voice preference ("" when unset).
	GetVoice(ctx context.Context) (string, error)

	// PutVoice stores the selected voice preference.
	PutVoice(ctx context.Context, voice string) error

	// GetLockout returns the time until which verification is locked (zero when none).
	GetLockout(ctx context.Context) (time.Time, error)

	// PutLockout stores the lockout deadline. A zero time clears it.
	PutLockout(ctx context.Context, until time.Time) error

	// Reset removes every record and message of the device.
	Reset(ctx context.Context) error

	// Close closes the store.
	Close() error
}

// idGen produces ULIDs for messages. Safe for concurrent use.
type idGen struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

func newIDGen() *idGen {
	return &idGen{entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *idGen) newID(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

func deviceOrDefault(device string) string {
	if device == "" {
		return DefaultDevice
	}
	return device
}
