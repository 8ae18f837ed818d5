package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/nova/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	device string
	ids    *idGen
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path,
// scoped to device.
func NewSQLiteStore(dbPath, device string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The orchestrator is the single writer; one connection keeps
	// sequence assignment serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		path:   dbPath,
		device: deviceOrDefault(device),
		ids:    newIDGen(),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		device      TEXT NOT NULL,
		name        TEXT NOT NULL,
		value       TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (device, name)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		device      TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		speaker     TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_device_seq ON messages(device, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) getRecord(ctx context.Context, name string, v any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE device = ? AND name = ?`, s.device, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) putRecord(ctx context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (device, name, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.device, name, string(b), now)
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) deleteRecord(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE device = ? AND name = ?`, s.device, name)
	return err
}

func (s *SQLiteStore) GetProfile(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	err := s.getRecord(ctx, recordProfile, &p)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) PutProfile(ctx context.Context, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return s.putRecord(ctx, recordProfile, p)
}

func (s *SQLiteStore) GetMemory(ctx context.Context) ([]model.Fact, error) {
	var facts []model.Fact
	err := s.getRecord(ctx, recordMemory, &facts)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return facts, err
}

func (s *SQLiteStore) PutMemory(ctx context.Context, facts []model.Fact) error {
	if facts == nil {
		facts = []model.Fact{}
	}
	return s.putRecord(ctx, recordMemory, facts)
}

func (s *SQLiteStore) GetVoice(ctx context.Context) (string, error) {
	var voice string
	err := s.getRecord(ctx, recordVoice, &voice)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return voice, err
}

func (s *SQLiteStore) PutVoice(ctx context.Context, voice string) error {
	return s.putRecord(ctx, recordVoice, voice)
}

func (s *SQLiteStore) GetLockout(ctx context.Context) (time.Time, error) {
	var until time.Time
	err := s.getRecord(ctx, recordLockout, &until)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	return until, err
}

func (s *SQLiteStore) PutLockout(ctx context.Context, until time.Time) error {
	if until.IsZero() {
		return s.deleteRecord(ctx, recordLockout)
	}
	return s.putRecord(ctx, recordLockout, until.UTC())
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, speaker model.Speaker, content string) (model.Message, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Message{}, err
	}
	defer tx.Rollback()

	var last int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE device = ?`, s.device).Scan(&last)
	if err != nil {
		return model.Message{}, fmt.Errorf("next seq: %w", err)
	}

	msg := model.Message{
		ID:        s.ids.newID(now),
		Sequence:  last + 1,
		Speaker:   speaker,
		Content:   content,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, device, seq, speaker, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, s.device, msg.Sequence, speaker.String(), content, now.Format(time.RFC3339Nano))
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (s *SQLiteStore) Transcript(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, speaker, content, created_at FROM messages
		 WHERE device = ? ORDER BY seq ASC`, s.device)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE device = ?`, s.device); err != nil {
		return fmt.Errorf("reset records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE device = ?`, s.device); err != nil {
		return fmt.Errorf("reset messages: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (model.Message, error) {
	var m model.Message
	var speaker, createdAt string

	if err := row.Scan(&m.ID, &m.Sequence, &speaker, &m.Content, &createdAt); err != nil {
		return m, err
	}

	sp, err := model.ParseSpeaker(speaker)
	if err != nil {
		return m, fmt.Errorf("message %s: %w", m.ID, err)
	}
	m.Speaker = sp
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return m, nil
}
