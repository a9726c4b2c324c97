package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"nftickets/core/types"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrArithmetic is returned when balance arithmetic leaves the 256-bit
	// range.
	ErrArithmetic = errors.New("state: arithmetic overflow")
	// ErrNegativeAmount is returned for negative credits or debits.
	ErrNegativeAmount = errors.New("state: negative amount")
	// ErrNonceMismatch is returned when a signer submits an out-of-order
	// nonce.
	ErrNonceMismatch = errors.New("state: nonce mismatch")
)

var accountPrefix = []byte("account:")

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr []byte) []byte {
	return hashedKey(accountPrefix, addr)
}

// GetAccount returns the account stored for addr or an empty account when it
// has never been touched.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) != 20 {
		return nil, fmt.Errorf("state: address must be 20 bytes")
	}
	data, ok, err := m.journal.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	if stored.Balance == nil {
		stored.Balance = big.NewInt(0)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}, nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) != 20 {
		return fmt.Errorf("state: address must be 20 bytes")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return ErrNegativeAmount
	}
	if _, overflow := uint256.FromBig(balance); overflow {
		return ErrArithmetic
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	m.journal.Put(accountKey(addr), encoded)
	return nil
}

// Balance returns the payment balance of addr.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return uint256.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrArithmetic
	}
	return value, nil
}

// Credit adds amount to the payment balance of addr.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	current, err := toUint256(account.Balance)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, delta)
	if overflow {
		return ErrArithmetic
	}
	account.Balance = sum.ToBig()
	return m.PutAccount(addr[:], account)
}

// Debit subtracts amount from the payment balance of addr.
func (m *Manager) Debit(addr [20]byte, amount *big.Int) error {
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	current, err := toUint256(account.Balance)
	if err != nil {
		return err
	}
	if current.Lt(delta) {
		return ErrInsufficientBalance
	}
	account.Balance = new(uint256.Int).Sub(current, delta).ToBig()
	return m.PutAccount(addr[:], account)
}

// Transfer moves amount of payment balance from one address to another.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := m.Debit(from, amount); err != nil {
		return err
	}
	return m.Credit(to, amount)
}

// UseNonce verifies that nonce is the next expected value for addr and
// advances the account counter.
func (m *Manager) UseNonce(addr [20]byte, nonce uint64) error {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if nonce != account.Nonce {
		return fmt.Errorf("%w: expected %d, got %d", ErrNonceMismatch, account.Nonce, nonce)
	}
	account.Nonce++
	return m.PutAccount(addr[:], account)
}
