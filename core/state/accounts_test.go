package state

import (
	"errors"
	"math/big"
	"testing"
)

func TestDebitRejectsOverdraft(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := [20]byte{0x01}
	fund(t, mgr, addr, 100)

	if err := mgr.Debit(addr, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := mgr.Debit(addr, big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	bal, _ := mgr.Balance(addr)
	if bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance changed on failed debit: %s", bal)
	}
}

func TestCreditRejectsOverflow(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := [20]byte{0x02}
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := mgr.Credit(addr, ceiling); err != nil {
		t.Fatalf("credit max: %v", err)
	}
	if err := mgr.Credit(addr, big.NewInt(1)); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected ErrArithmetic, got %v", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	mgr, _ := newTestManager(t)
	from := [20]byte{0x03}
	to := [20]byte{0x04}
	fund(t, mgr, from, 1000)

	if err := mgr.Transfer(from, to, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromBal, _ := mgr.Balance(from)
	toBal, _ := mgr.Balance(to)
	if fromBal.Cmp(big.NewInt(600)) != 0 || toBal.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected balances: from=%s to=%s", fromBal, toBal)
	}
}

func TestUseNonceAdvances(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := [20]byte{0x05}
	if err := mgr.UseNonce(addr, 0); err != nil {
		t.Fatalf("use nonce 0: %v", err)
	}
	if err := mgr.UseNonce(addr, 0); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected nonce mismatch, got %v", err)
	}
	if err := mgr.UseNonce(addr, 1); err != nil {
		t.Fatalf("use nonce 1: %v", err)
	}
	account, _ := mgr.GetAccount(addr[:])
	if account.Nonce != 2 {
		t.Fatalf("unexpected nonce: %d", account.Nonce)
	}
}
