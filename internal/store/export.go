package store

import (
	"context"
	"fmt"

	"github.com/rcliao/nova/internal/model"
)

// Export returns the full persisted state of the store's device.
func Export(ctx context.Context, s Store, device string) (*model.Snapshot, error) {
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("export profile: %w", err)
	}
	facts, err := s.GetMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("export memory: %w", err)
	}
	transcript, err := s.Transcript(ctx)
	if err != nil {
		return nil, fmt.Errorf("export transcript: %w", err)
	}
	voice, err := s.GetVoice(ctx)
	if err != nil {
		return nil, fmt.Errorf("export voice: %w", err)
	}
	if facts == nil {
		facts = []model.Fact{}
	}
	if transcript == nil {
		transcript = []model.Message{}
	}
	return &model.Snapshot{
		Device:     deviceOrDefault(device),
		Profile:    profile,
		Memory:     facts,
		Transcript: transcript,
		Voice:      voice,
	}, nil
}

// Import replaces the device state with a snapshot. Transcript messages are
// re-appended in order, so they receive fresh IDs and sequences.
// Returns the number of messages imported.
func Import(ctx context.Context, s Store, snap *model.Snapshot) (int, error) {
	if err := s.Reset(ctx); err != nil {
		return 0, fmt.Errorf("import reset: %w", err)
	}
	if snap.Profile != nil {
		if err := s.PutProfile(ctx, snap.Profile); err != nil {
			return 0, err
		}
	}
	if err := s.PutMemory(ctx, snap.Memory); err != nil {
		return 0, fmt.Errorf("import memory: %w", err)
	}
	if snap.Voice != "" {
		if err := s.PutVoice(ctx, snap.Voice); err != nil {
			return 0, fmt.Errorf("import voice: %w", err)
		}
	}
	imported := 0
	for _, m := range snap.Transcript {
		if _, err := s.AppendMessage(ctx, m.Speaker, m.Content); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
