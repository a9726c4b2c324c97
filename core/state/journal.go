package state

import (
	"bytes"
	"errors"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftickets/storage"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// Journal is a write-ahead buffer over a database. Reads observe staged writes
// first; nothing reaches the database until Commit applies the whole buffer as
// one atomic batch.
//
// Journal is not safe for concurrent use.
type Journal struct {
	db      storage.Database
	pending map[string]journalEntry
}

// NewJournal returns an empty journal over db.
func NewJournal(db storage.Database) *Journal {
	return &Journal{db: db, pending: make(map[string]journalEntry)}
}

// Get returns the value for key and whether it exists.
func (j *Journal) Get(key []byte) ([]byte, bool, error) {
	if entry, ok := j.pending[string(key)]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), entry.value...), true, nil
	}
	value, err := j.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stages a write.
func (j *Journal) Put(key, value []byte) {
	j.pending[string(key)] = journalEntry{value: append([]byte(nil), value...)}
}

// Delete stages a removal.
func (j *Journal) Delete(key []byte) {
	j.pending[string(key)] = journalEntry{deleted: true}
}

// Dirty reports the number of staged keys.
func (j *Journal) Dirty() int { return len(j.pending) }

func (j *Journal) sortedKeys() []string {
	keys := make([]string, 0, len(j.pending))
	for key := range j.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Digest returns a deterministic hash of the staged write set.
func (j *Journal) Digest() [32]byte {
	var buf bytes.Buffer
	for _, key := range j.sortedKeys() {
		entry := j.pending[key]
		buf.WriteString(key)
		if entry.deleted {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		buf.Write(entry.value)
	}
	return ethcrypto.Keccak256Hash(buf.Bytes())
}

// Commit writes every staged change in a single batch and returns the digest
// of the applied write set.
func (j *Journal) Commit() ([32]byte, error) {
	digest := j.Digest()
	batch := storage.NewBatch()
	for _, key := range j.sortedKeys() {
		entry := j.pending[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := j.db.Write(batch); err != nil {
		return [32]byte{}, err
	}
	j.pending = make(map[string]journalEntry)
	return digest, nil
}

// Discard drops every staged change.
func (j *Journal) Discard() {
	j.pending = make(map[string]journalEntry)
}
