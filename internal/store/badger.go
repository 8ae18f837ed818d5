package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rcliao/nova/internal/model"
)

// keySep joins key segments, e.g. "nova:default:profile".
const keySep = ":"

// BadgerStore implements Store on an embedded BadgerDB with msgpack values.
type BadgerStore struct {
	db     *badger.DB
	device string
	ids    *idGen
}

var _ Store = (*BadgerStore)(nil)

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// Device scopes every key. Defaults to DefaultDevice.
	Device string

	// InMemory runs BadgerDB without disk persistence. Useful for tests.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewBadgerStore opens a BadgerDB-backed Store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger.With("component", "badger")})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, device: deviceOrDefault(opts.Device), ids: newIDGen()}, nil
}

func (b *BadgerStore) key(parts ...string) []byte {
	return []byte(strings.Join(append([]string{"nova", b.device}, parts...), keySep))
}

func (b *BadgerStore) msgPrefix() []byte {
	return append(b.key("msg"), keySep...)
}

// msgKey encodes the sequence big-endian so keys sort numerically.
func (b *BadgerStore) msgKey(seq int) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(seq))
	return append(b.msgPrefix(), n[:]...)
}

func (b *BadgerStore) get(name string, v any) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, v)
		})
	})
}

func (b *BadgerStore) set(name string, v any) error {
	val, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(name), val)
	})
}

func (b *BadgerStore) GetProfile(_ context.Context) (*model.Profile, error) {
	var p model.Profile
	err := b.get(recordProfile, &p)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (b *BadgerStore) PutProfile(_ context.Context, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return b.set(recordProfile, p)
}

func (b *BadgerStore) GetMemory(_ context.Context) ([]model.Fact, error) {
	var facts []model.Fact
	err := b.get(recordMemory, &facts)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return facts, err
}

func (b *BadgerStore) PutMemory(_ context.Context, facts []model.Fact) error {
	return b.set(recordMemory, facts)
}

func (b *BadgerStore) GetVoice(_ context.Context) (string, error) {
	var voice string
	err := b.get(recordVoice, &voice)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return voice, err
}

func (b *BadgerStore) PutVoice(_ context.Context, voice string) error {
	return b.set(recordVoice, voice)
}

func (b *BadgerStore) GetLockout(_ context.Context) (time.Time, error) {
	var until time.Time
	err := b.get(recordLockout, &until)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	return until, err
}

func (b *BadgerStore) PutLockout(_ context.Context, until time.Time) error {
	if until.IsZero() {
		return b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(b.key(recordLockout))
		})
	}
	return b.set(recordLockout, until.UTC())
}

func (b *BadgerStore) AppendMessage(_ context.Context, speaker model.Speaker, content string) (model.Message, error) {
	now := time.Now().UTC()
	msg := model.Message{
		ID:        b.ids.newID(now),
		Speaker:   speaker,
		Content:   content,
		CreatedAt: now,
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		last, err := b.lastSeq(txn)
		if err != nil {
			return err
		}
		msg.Sequence = last + 1
		val, err := msgpack.Marshal(&msg)
		if err != nil {
			return err
		}
		return txn.Set(b.msgKey(msg.Sequence), val)
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (b *BadgerStore) lastSeq(txn *badger.Txn) (int, error) {
	prefix := b.msgPrefix()
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	// Seeking past the prefix in reverse lands on the highest key.
	seek := append(append([]byte{}, prefix...), 0xFF)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}
	k := it.Item().Key()
	if len(k) < len(prefix)+8 {
		return 0, fmt.Errorf("malformed message key %q", k)
	}
	return int(binary.BigEndian.Uint64(k[len(prefix):])), nil
}

func (b *BadgerStore) Transcript(_ context.Context) ([]model.Message, error) {
	var messages []model.Message
	prefix := b.msgPrefix()
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m model.Message
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	return messages, nil
}

func (b *BadgerStore) Reset(_ context.Context) error {
	return b.db.DropPrefix(append(b.key(), keySep...))
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger output to slog, suppressing debug and info.
type badgerLogger struct{ log *slog.Logger }

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}
