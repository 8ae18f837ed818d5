package store

import (
	"context"
	"strings"

	"github.com/rcliao/nova/internal/model"
)

// SearchParams holds parameters for searching the transcript.
type SearchParams struct {
	Query   string
	Speaker model.Speaker // zero matches both speakers
	Limit   int
}

// SearchTranscript returns the newest messages whose content contains the
// query, case-insensitively, ordered oldest first.
func SearchTranscript(ctx context.Context, s Store, p SearchParams) ([]model.Message, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	transcript, err := s.Transcript(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(p.Query)
	var results []model.Message
	for i := len(transcript) - 1; i >= 0 && len(results) < limit; i-- {
		m := transcript[i]
		if p.Speaker != 0 && m.Speaker != p.Speaker {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Content), q) {
			continue
		}
		results = append(results, m)
	}

	// Restore chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
