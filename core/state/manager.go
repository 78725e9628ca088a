package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"fortunex/storage"
)

var heightKey = []byte("meta:height")

// Manager reads and writes RLP encoded records on top of a storage.Database.
// Writes made inside Atomic are staged in a journal and committed as a single
// storage batch. The manager is not safe for concurrent use; core.Node
// serialises access.
type Manager struct {
	db      storage.Database
	journal *journal
	height  uint64
}

// NewManager creates a state manager operating on the provided database and
// restores the persisted commit height.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	m := &Manager{db: db}
	var height uint64
	if _, err := m.KVGet(heightKey, &height); err != nil {
		return nil, fmt.Errorf("state: load height: %w", err)
	}
	m.height = height
	return m, nil
}

// Height returns the number of committed atomic boundaries. It doubles as the
// host slot counter.
func (m *Manager) Height() uint64 { return m.height }

type journalEntry struct {
	value   []byte
	deleted bool
}

type journal struct {
	entries map[string]journalEntry
}

func newJournal() *journal {
	return &journal{entries: make(map[string]journalEntry)}
}

// Atomic runs fn with every write staged in memory. When fn succeeds the staged
// writes and the incremented height are written in one batch; when it fails
// they are discarded. Calls made while a boundary is open join it.
func (m *Manager) Atomic(fn func() error) error {
	if fn == nil {
		return nil
	}
	if m.journal != nil {
		return fn()
	}
	m.journal = newJournal()
	defer func() { m.journal = nil }()

	if err := fn(); err != nil {
		return err
	}
	batch := m.db.NewBatch()
	for key, entry := range m.journal.entries {
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	next := m.height + 1
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return err
	}
	batch.Put(kvKey(heightKey), encoded)
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.height = next
	return nil
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) rawGet(hashed []byte) ([]byte, error) {
	if m.journal != nil {
		if entry, ok := m.journal.entries[string(hashed)]; ok {
			if entry.deleted {
				return nil, nil
			}
			return entry.value, nil
		}
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) rawPut(hashed, value []byte) error {
	if m.journal != nil {
		m.journal.entries[string(hashed)] = journalEntry{value: append([]byte(nil), value...)}
		return nil
	}
	return m.db.Put(hashed, value)
}

func (m *Manager) rawDelete(hashed []byte) error {
	if m.journal != nil {
		m.journal.entries[string(hashed)] = journalEntry{deleted: true}
		return nil
	}
	return m.db.Delete(hashed)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches storage.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.rawPut(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.rawGet(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.rawDelete(kvKey(key))
}
