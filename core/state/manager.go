package state

import (
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"zizyhub/storage"
)

// Manager exposes RLP-encoded key/value state over a storage.Database. Writes
// land in an in-memory overlay until Commit flushes them in a single batch;
// Rollback discards everything since the last commit. A journal of overlay
// mutations supports nested Checkpoint/RevertTo scopes inside one operation.
type Manager struct {
	db      storage.Database
	dirty   map[string]overlayValue
	journal []journalEntry
}

type overlayValue struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    overlayValue
	existed bool
}

// NewManager creates a state manager persisting into db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]overlayValue)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if entry, ok := m.dirty[string(hashed)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.data, nil
	}
	if m.db == nil {
		return nil, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) write(hashed []byte, value overlayValue) {
	key := string(hashed)
	prev, existed := m.dirty[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed})
	m.dirty[key] = value
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), overlayValue{data: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
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

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(kvKey(key), overlayValue{deleted: true})
	return nil
}

// KVGetList decodes the RLP list stored under key into out, which must point
// to a slice. Missing keys produce an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// Checkpoint returns a marker for RevertTo.
func (m *Manager) Checkpoint() int {
	return len(m.journal)
}

// RevertTo undoes every overlay write made after the checkpoint was taken.
func (m *Manager) RevertTo(checkpoint int) {
	if checkpoint < 0 {
		checkpoint = 0
	}
	for i := len(m.journal) - 1; i >= checkpoint; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if checkpoint < len(m.journal) {
		m.journal = m.journal[:checkpoint]
	}
}

// Pending reports how many keys are staged in the overlay.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// Commit flushes the overlay into the database atomically.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	batch := storage.NewBatch()
	for key, entry := range m.dirty {
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.data)
	}
	if m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]overlayValue)
	m.journal = m.journal[:0]
	return nil
}

// Rollback discards all uncommitted writes.
func (m *Manager) Rollback() {
	m.dirty = make(map[string]overlayValue)
	m.journal = m.journal[:0]
}
