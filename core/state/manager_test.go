package state

import (
	"errors"
	"math/big"
	"testing"

	"nftickets/core/types"
	"nftickets/storage"
)

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func fund(t *testing.T, m *Manager, addr [20]byte, amount int64) {
	t.Helper()
	if err := m.Credit(addr, big.NewInt(amount)); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func TestRecordLifecycleRefundsRent(t *testing.T) {
	mgr, _ := newTestManager(t)
	payer := [20]byte{0x01}
	dest := [20]byte{0x02}
	addr := [20]byte{0xAA}
	data := make([]byte, 72)

	rent := mgr.Rent(len(data))
	expected := new(big.Int).SetUint64((72 + recordOverhead) * DefaultRentPerByte)
	if rent.Cmp(expected) != 0 {
		t.Fatalf("unexpected rent: got %s want %s", rent, expected)
	}
	fund(t, mgr, payer, rent.Int64()+10)

	if err := mgr.CreateRecord(addr, "market", payer, data); err != nil {
		t.Fatalf("create record: %v", err)
	}
	balance, _ := mgr.Balance(payer)
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("payer should keep 10 after deposit, got %s", balance)
	}
	if err := mgr.CreateRecord(addr, "market", payer, data); !errors.Is(err, ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse, got %v", err)
	}

	refund, err := mgr.CloseRecord(addr, "market", dest)
	if err != nil {
		t.Fatalf("close record: %v", err)
	}
	if refund.Cmp(rent) != 0 {
		t.Fatalf("refund mismatch: got %s want %s", refund, rent)
	}
	destBalance, _ := mgr.Balance(dest)
	if destBalance.Cmp(rent) != 0 {
		t.Fatalf("destination should receive the deposit, got %s", destBalance)
	}
	exists, err := mgr.RecordExists(addr)
	if err != nil || exists {
		t.Fatalf("record should be gone: exists=%v err=%v", exists, err)
	}
}

func TestRecordProgramOwnership(t *testing.T) {
	mgr, _ := newTestManager(t)
	payer := [20]byte{0x01}
	addr := [20]byte{0xBB}
	fund(t, mgr, payer, 10_000_000)

	if err := mgr.CreateRecord(addr, "market", payer, []byte{1, 2, 3}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if _, err := mgr.Record(addr, "tickets"); !errors.Is(err, ErrProgramMismatch) {
		t.Fatalf("expected ErrProgramMismatch, got %v", err)
	}
	if err := mgr.WriteRecord(addr, "market", []byte{1, 2}); !errors.Is(err, ErrRecordSize) {
		t.Fatalf("expected ErrRecordSize, got %v", err)
	}
	if err := mgr.WriteRecord(addr, "market", []byte{4, 5, 6}); err != nil {
		t.Fatalf("write record: %v", err)
	}
	data, err := mgr.Record(addr, "market")
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if string(data) != string([]byte{4, 5, 6}) {
		t.Fatalf("unexpected record data: %x", data)
	}
	if _, err := mgr.CloseRecord(addr, "tickets", payer); !errors.Is(err, ErrProgramMismatch) {
		t.Fatalf("expected ErrProgramMismatch on close, got %v", err)
	}
}

func TestCreateRecordWithoutFundsLeavesNoRecord(t *testing.T) {
	mgr, _ := newTestManager(t)
	payer := [20]byte{0x03}
	addr := [20]byte{0xCC}

	err := mgr.CreateRecord(addr, "market", payer, []byte{1})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if exists, _ := mgr.RecordExists(addr); exists {
		t.Fatalf("record must not be created without a deposit")
	}
}

func TestManagerCommitIsAtomicAndDiscardable(t *testing.T) {
	mgr, db := newTestManager(t)
	addr := [20]byte{0x09}
	fund(t, mgr, addr, 500)
	mgr.AppendEvent(&types.Event{Type: "test.event", Attributes: map[string]string{"k": "v"}})

	// Nothing is visible through a fresh manager before commit.
	other := NewManager(db)
	if bal, _ := other.Balance(addr); bal.Sign() != 0 {
		t.Fatalf("uncommitted balance leaked: %s", bal)
	}
	if _, err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	other = NewManager(db)
	if bal, _ := other.Balance(addr); bal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("committed balance missing: %s", bal)
	}

	if err := other.Debit(addr, big.NewInt(200)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	other.AppendEvent(&types.Event{Type: "test.discarded"})
	other.Discard()
	if len(other.Events()) != 0 {
		t.Fatalf("discard must drop buffered events")
	}
	fresh := NewManager(db)
	if bal, _ := fresh.Balance(addr); bal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("discarded debit leaked: %s", bal)
	}
}

func TestJournalCommitDigestIsDeterministic(t *testing.T) {
	dbA := storage.NewMemDB()
	defer dbA.Close()
	dbB := storage.NewMemDB()
	defer dbB.Close()

	a := NewJournal(dbA)
	a.Put([]byte("b"), []byte("2"))
	a.Put([]byte("a"), []byte("1"))
	a.Delete([]byte("c"))

	b := NewJournal(dbB)
	b.Delete([]byte("c"))
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))

	rootA, err := a.Commit()
	if err != nil {
		t.Fatalf("commit a: %v", err)
	}
	rootB, err := b.Commit()
	if err != nil {
		t.Fatalf("commit b: %v", err)
	}
	if rootA != rootB {
		t.Fatalf("digests differ: %x vs %x", rootA, rootB)
	}
	if a.Dirty() != 0 {
		t.Fatalf("journal should be empty after commit")
	}
}

func TestKVRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	type entry struct {
		Name  string
		Count uint64
	}
	if err := mgr.KVPut([]byte("cfg"), &entry{Name: "x", Count: 3}); err != nil {
		t.Fatalf("kv put: %v", err)
	}
	var out entry
	ok, err := mgr.KVGet([]byte("cfg"), &out)
	if err != nil || !ok {
		t.Fatalf("kv get: ok=%v err=%v", ok, err)
	}
	if out.Name != "x" || out.Count != 3 {
		t.Fatalf("unexpected kv value: %+v", out)
	}
	mgr.KVDelete([]byte("cfg"))
	if ok, _ := mgr.KVGet([]byte("cfg"), &out); ok {
		t.Fatalf("kv value should be deleted")
	}
}
