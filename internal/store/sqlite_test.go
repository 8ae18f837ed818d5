package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/nova/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), "test")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every Store implementation for contract tests.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	b, err := NewBadgerStore(BadgerOptions{InMemory: true, Device: "test"})
	if err != nil {
		t.Fatalf("create badger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]Store{
		"sqlite": newTestStore(t),
		"badger": b,
		"mem":    NewMem(),
	}
}

func testProfile() *model.Profile {
	return &model.Profile{
		DisplayName: "Sam",
		CodeWord:    "nebula",
		Age:         "34",
		Fallback:    model.FallbackFacts{MotherName: "Linda", PetName: "Rex"},
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestAbsentReadsAreNotErrors(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p, err := s.GetProfile(ctx)
			if err != nil || p != nil {
				t.Errorf("GetProfile = %v, %v; want nil, nil", p, err)
			}
			facts, err := s.GetMemory(ctx)
			if err != nil || len(facts) != 0 {
				t.Errorf("GetMemory = %v, %v; want empty, nil", facts, err)
			}
			msgs, err := s.Transcript(ctx)
			if err != nil || len(msgs) != 0 {
				t.Errorf("Transcript = %v, %v; want empty, nil", msgs, err)
			}
			voice, err := s.GetVoice(ctx)
			if err != nil || voice != "" {
				t.Errorf("GetVoice = %q, %v; want empty, nil", voice, err)
			}
			until, err := s.GetLockout(ctx)
			if err != nil || !until.IsZero() {
				t.Errorf("GetLockout = %v, %v; want zero, nil", until, err)
			}
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := testProfile()
			if err := s.PutProfile(ctx, want); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := s.GetProfile(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.DisplayName != "Sam" || got.CodeWord != "nebula" {
				t.Errorf("got %+v", got)
			}
			if got.Fallback.MotherName != "Linda" || got.Fallback.PetName != "Rex" {
				t.Errorf("fallback not persisted: %+v", got.Fallback)
			}
			if !got.CreatedAt.Equal(want.CreatedAt) {
				t.Errorf("created_at = %v, want %v", got.CreatedAt, want.CreatedAt)
			}
		})
	}
}

func TestPutProfileRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutProfile(ctx, &model.Profile{CodeWord: "x"}); err == nil {
				t.Error("expected error for profile without name")
			}
			if err := s.PutProfile(ctx, &model.Profile{DisplayName: "Sam"}); err == nil {
				t.Error("expected error for profile without codeword or phrases")
			}
		})
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			facts := []model.Fact{
				{Text: "football on sundays"},
				{Text: "father passed away last year", Essential: true},
			}
			if err := s.PutMemory(ctx, facts); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := s.GetMemory(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got) != 2 || got[0] != facts[0] || got[1] != facts[1] {
				t.Errorf("got %+v, want %+v", got, facts)
			}
		})
	}
}

func TestAppendMessageSequence(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m1, err := s.AppendMessage(ctx, model.SpeakerUser, "hello")
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			m2, _ := s.AppendMessage(ctx, model.SpeakerAssistant, "hi there")
			m3, _ := s.AppendMessage(ctx, model.SpeakerUser, "how are you")

			if m1.Sequence != 1 || m2.Sequence != 2 || m3.Sequence != 3 {
				t.Errorf("sequences = %d %d %d, want 1 2 3", m1.Sequence, m2.Sequence, m3.Sequence)
			}
			if m1.ID == "" || m1.ID == m2.ID {
				t.Error("expected unique non-empty IDs")
			}

			got, err := s.Transcript(ctx)
			if err != nil {
				t.Fatalf("transcript: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 messages, got %d", len(got))
			}
			if got[1].Speaker != model.SpeakerAssistant || got[1].Content != "hi there" {
				t.Errorf("second message = %+v", got[1])
			}
		})
	}
}

func TestVoiceAndLockout(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutVoice(ctx, "Libby"); err != nil {
				t.Fatalf("put voice: %v", err)
			}
			if v, _ := s.GetVoice(ctx); v != "Libby" {
				t.Errorf("voice = %q, want Libby", v)
			}

			until := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
			if err := s.PutLockout(ctx, until); err != nil {
				t.Fatalf("put lockout: %v", err)
			}
			got, _ := s.GetLockout(ctx)
			if !got.Equal(until) {
				t.Errorf("lockout = %v, want %v", got, until)
			}

			if err := s.PutLockout(ctx, time.Time{}); err != nil {
				t.Fatalf("clear lockout: %v", err)
			}
			if got, _ := s.GetLockout(ctx); !got.IsZero() {
				t.Errorf("expected cleared lockout, got %v", got)
			}
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s.PutProfile(ctx, testProfile())
			s.PutMemory(ctx, []model.Fact{{Text: "sad about work"}})
			s.AppendMessage(ctx, model.SpeakerUser, "hello")

			if err := s.Reset(ctx); err != nil {
				t.Fatalf("reset: %v", err)
			}
			if p, _ := s.GetProfile(ctx); p != nil {
				t.Error("expected profile removed")
			}
			if f, _ := s.GetMemory(ctx); len(f) != 0 {
				t.Error("expected memory removed")
			}
			if m, _ := s.Transcript(ctx); len(m) != 0 {
				t.Error("expected transcript removed")
			}
			m, _ := s.AppendMessage(ctx, model.SpeakerUser, "again")
			if m.Sequence != 1 {
				t.Errorf("sequence after reset = %d, want 1", m.Sequence)
			}
		})
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := NewSQLiteStore(path, "kitchen")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.PutProfile(ctx, testProfile())
	a.AppendMessage(ctx, model.SpeakerUser, "hello")
	a.Close()

	b, err := NewSQLiteStore(path, "bedroom")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if p, _ := b.GetProfile(ctx); p != nil {
		t.Error("profile leaked across devices")
	}
	if m, _ := b.Transcript(ctx); len(m) != 0 {
		t.Error("transcript leaked across devices")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nova.db")

	s, err := NewSQLiteStore(path, "")
	if err != nil {
		t.Fatal(err)
	}
	s.PutProfile(ctx, testProfile())
	s.AppendMessage(ctx, model.SpeakerUser, "remember me")
	s.Close()

	s2, err := NewSQLiteStore(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	p, _ := s2.GetProfile(ctx)
	if p == nil || p.DisplayName != "Sam" {
		t.Fatalf("profile not persisted: %+v", p)
	}
	msgs, _ := s2.Transcript(ctx)
	if len(msgs) != 1 || msgs[0].Content != "remember me" {
		t.Errorf("transcript not persisted: %+v", msgs)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath, "")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	if _, err := NewBadgerStore(BadgerOptions{}); err == nil {
		t.Error("expected error without dir")
	}
}
