package state

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftickets/core/types"
	"nftickets/storage"
)

// DefaultRentPerByte is the storage deposit charged per byte of record data,
// including the fixed per-record overhead.
const DefaultRentPerByte uint64 = 6960

// recordOverhead is the bookkeeping size charged on top of every record.
const recordOverhead = 128

var (
	// ErrAddressInUse is returned when a record already occupies an address.
	ErrAddressInUse = errors.New("state: address already in use")
	// ErrRecordNotFound is returned when no record exists at an address.
	ErrRecordNotFound = errors.New("state: record not found")
	// ErrProgramMismatch is returned when a program touches a record it does
	// not own.
	ErrProgramMismatch = errors.New("state: record owned by another program")
	// ErrRecordSize is returned when a write changes the record size.
	ErrRecordSize = errors.New("state: record size is fixed at creation")
)

var (
	recordPrefix = []byte("record:")
	kvPrefix     = []byte("kv:")
	statePrefix  = []byte("s/")
)

// Record is a program-owned piece of state stored at an address together with
// the storage deposit that was paid to create it.
type Record struct {
	Program string
	Rent    *big.Int
	Data    []byte
}

// Manager provides typed access to ledger state through a write-ahead
// journal. A manager represents a single unit of work: its changes become
// visible to other managers only after Commit.
type Manager struct {
	journal     *Journal
	rentPerByte uint64
	events      []*types.Event
}

// NewManager creates a state manager staging writes over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{journal: NewJournal(db), rentPerByte: DefaultRentPerByte}
}

// SetRentPerByte overrides the storage deposit rate.
func (m *Manager) SetRentPerByte(rate uint64) { m.rentPerByte = rate }

// Commit applies the unit of work atomically and returns the write-set digest.
func (m *Manager) Commit() ([32]byte, error) {
	return m.journal.Commit()
}

// Digest returns the hash of the changes staged so far.
func (m *Manager) Digest() ([32]byte, error) {
	return m.journal.Digest(), nil
}

// Discard drops every staged change and buffered event.
func (m *Manager) Discard() {
	m.journal.Discard()
	m.events = nil
}

// AppendEvent buffers an event to be published once the unit of work commits.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt.Clone())
}

// Events returns the buffered events in emission order.
func (m *Manager) Events() []*types.Event {
	out := make([]*types.Event, len(m.events))
	copy(out, m.events)
	return out
}

// RawGet reads an unhashed key. It is reserved for ledger bookkeeping such as
// the transaction log, which needs ordered iteration.
func (m *Manager) RawGet(key []byte) ([]byte, bool, error) {
	return m.journal.Get(key)
}

// RawPut stages an unhashed key.
func (m *Manager) RawPut(key, value []byte) {
	m.journal.Put(key, value)
}

func hashedKey(prefix []byte, key []byte) []byte {
	buf := make([]byte, len(prefix)+len(key))
	copy(buf, prefix)
	copy(buf[len(prefix):], key)
	return append(append([]byte(nil), statePrefix...), ethcrypto.Keccak256(buf)...)
}

func recordKey(addr [20]byte) []byte {
	return hashedKey(recordPrefix, addr[:])
}

// Rent returns the storage deposit required for a record with size bytes of
// data.
func (m *Manager) Rent(size int) *big.Int {
	total := new(big.Int).SetUint64(uint64(size + recordOverhead))
	return total.Mul(total, new(big.Int).SetUint64(m.rentPerByte))
}

func (m *Manager) loadRecord(addr [20]byte) (*Record, error) {
	data, ok, err := m.journal.Get(recordKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rec := new(Record)
	if err := rlp.DecodeBytes(data, rec); err != nil {
		return nil, fmt.Errorf("state: decode record: %w", err)
	}
	if rec.Rent == nil {
		rec.Rent = big.NewInt(0)
	}
	return rec, nil
}

func (m *Manager) writeRecord(addr [20]byte, rec *Record) error {
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	m.journal.Put(recordKey(addr), encoded)
	return nil
}

// RecordExists reports whether any record occupies addr.
func (m *Manager) RecordExists(addr [20]byte) (bool, error) {
	rec, err := m.loadRecord(addr)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// CreateRecord allocates a record at addr owned by program. The payer is
// debited the storage deposit, which is held by the record until it is
// closed.
func (m *Manager) CreateRecord(addr [20]byte, program string, payer [20]byte, data []byte) error {
	program = strings.TrimSpace(program)
	if program == "" {
		return fmt.Errorf("state: record program required")
	}
	existing, err := m.loadRecord(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAddressInUse
	}
	rent := m.Rent(len(data))
	if err := m.Debit(payer, rent); err != nil {
		return fmt.Errorf("state: fund record deposit: %w", err)
	}
	return m.writeRecord(addr, &Record{Program: program, Rent: rent, Data: append([]byte(nil), data...)})
}

// Record returns the data stored at addr, enforcing program ownership.
func (m *Manager) Record(addr [20]byte, program string) ([]byte, error) {
	rec, err := m.loadRecord(addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	if rec.Program != program {
		return nil, ErrProgramMismatch
	}
	return append([]byte(nil), rec.Data...), nil
}

// WriteRecord replaces the data stored at addr. The size may not change.
func (m *Manager) WriteRecord(addr [20]byte, program string, data []byte) error {
	rec, err := m.loadRecord(addr)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	if rec.Program != program {
		return ErrProgramMismatch
	}
	if len(rec.Data) != len(data) {
		return ErrRecordSize
	}
	rec.Data = append([]byte(nil), data...)
	return m.writeRecord(addr, rec)
}

// CloseRecord deletes the record at addr and credits its storage deposit to
// destination. The reclaimed amount is returned.
func (m *Manager) CloseRecord(addr [20]byte, program string, destination [20]byte) (*big.Int, error) {
	rec, err := m.loadRecord(addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	if rec.Program != program {
		return nil, ErrProgramMismatch
	}
	if err := m.Credit(destination, rec.Rent); err != nil {
		return nil, err
	}
	m.journal.Delete(recordKey(addr))
	return new(big.Int).Set(rec.Rent), nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.journal.Put(hashedKey(kvPrefix, key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.journal.Get(hashedKey(kvPrefix, key))
	if err != nil || !ok {
		return false, err
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
func (m *Manager) KVDelete(key []byte) {
	m.journal.Delete(hashedKey(kvPrefix, key))
}
