package store

import (
	"context"
	"os"
	"time"

	"github.com/rcliao/nova/internal/model"
)

// Stats holds per-device statistics.
type Stats struct {
	Device            string    `json:"device"`
	DBPath            string    `json:"db_path,omitempty"`
	DBSizeBytes       int64     `json:"db_size_bytes,omitempty"`
	HasProfile        bool      `json:"has_profile"`
	Messages          int       `json:"messages"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	Facts             int       `json:"facts"`
	EssentialFacts    int       `json:"essential_facts"`
	Voice             string    `json:"voice,omitempty"`
	LockedUntil       time.Time `json:"locked_until,omitempty"`
}

// GetStats computes statistics for the store's device. dbPath may be empty
// for stores without a single backing file.
func GetStats(ctx context.Context, s Store, device, dbPath string) (*Stats, error) {
	st := &Stats{Device: deviceOrDefault(device), DBPath: dbPath}

	if dbPath != "" {
		if info, err := os.Stat(dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	profile, err := s.GetProfile(ctx)
	if err != nil {
		return st, err
	}
	st.HasProfile = profile != nil

	transcript, err := s.Transcript(ctx)
	if err != nil {
		return st, err
	}
	st.Messages = len(transcript)
	for _, m := range transcript {
		if m.Speaker == model.SpeakerUser {
			st.UserMessages++
		} else {
			st.AssistantMessages++
		}
	}

	facts, err := s.GetMemory(ctx)
	if err != nil {
		return st, err
	}
	st.Facts = len(facts)
	for _, f := range facts {
		if f.Essential {
			st.EssentialFacts++
		}
	}

	if st.Voice, err = s.GetVoice(ctx); err != nil {
		return st, err
	}
	until, err := s.GetLockout(ctx)
	if err != nil {
		return st, err
	}
	if until.After(time.Now()) {
		st.LockedUntil = until
	}
	return st, nil
}
