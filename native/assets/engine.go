// Package assets implements custody of fungible and non-fungible assets.
//
// Assets live in custody accounts, each holding a balance of a single mint on
// behalf of an owner. The owner may be a signing account or a derived address;
// in the latter case only the program that can re-derive the address produces
// the owner value needed to move the balance.
package assets

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"nftickets/core/state"
	"nftickets/crypto"
)

var (
	ErrInsufficientFunds = errors.New("assets: insufficient funds")
	ErrOwnerMismatch     = errors.New("assets: owner does not match")
	ErrMintMismatch      = errors.New("assets: mint does not match")
	ErrDecimalsMismatch  = errors.New("assets: decimals do not match")
	ErrNonZeroBalance    = errors.New("assets: account balance is not zero")
	ErrAccountNotFound   = errors.New("assets: account not found")
	ErrMintNotFound      = errors.New("assets: mint not found")
	ErrSupplyOverflow    = errors.New("assets: supply overflow")
)

var errNilState = errors.New("assets engine: state not configured")

type engineState interface {
	CreateRecord(addr [20]byte, program string, payer [20]byte, data []byte) error
	Record(addr [20]byte, program string) ([]byte, error)
	WriteRecord(addr [20]byte, program string, data []byte) error
	CloseRecord(addr [20]byte, program string, destination [20]byte) (*big.Int, error)
	RecordExists(addr [20]byte) (bool, error)
}

// Engine applies asset operations against a unit of work.
type Engine struct {
	state engineState
}

// NewEngine returns an engine without state. Callers must invoke SetState.
func NewEngine() *Engine { return &Engine{} }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// AssociatedAddress returns the canonical custody account address for owner
// and mint.
func AssociatedAddress(owner, mint [20]byte) ([20]byte, error) {
	addr, _, err := crypto.FindProgramAddress([]byte("custody"), owner[:], mint[:])
	return addr, err
}

// InitMint creates a mint record at addr.
func (e *Engine) InitMint(addr, payer [20]byte, decimals uint8, authority [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	m := &Mint{Decimals: decimals, Authority: authority}
	return e.state.CreateRecord(addr, Program, payer, m.encode())
}

// Mint returns the mint stored at addr.
func (e *Engine) Mint(addr [20]byte) (*Mint, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, ErrMintNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeMint(data)
}

// Account returns the custody account stored at addr.
func (e *Engine) Account(addr [20]byte) (*CustodyAccount, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

// CreateAccount allocates an empty custody account at addr.
func (e *Engine) CreateAccount(addr, payer, mint, owner [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, err := e.Mint(mint); err != nil {
		return err
	}
	acct := &CustodyAccount{Mint: mint, Owner: owner}
	return e.state.CreateRecord(addr, Program, payer, acct.encode())
}

// CreateAssociatedIfNeeded ensures the associated custody account for owner
// and mint exists, creating it at payer's expense when missing. An existing
// account must match the mint and owner.
func (e *Engine) CreateAssociatedIfNeeded(payer, owner, mint [20]byte) ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return [20]byte{}, false, err
	}
	exists, err := e.state.RecordExists(addr)
	if err != nil {
		return [20]byte{}, false, err
	}
	if exists {
		acct, err := e.Account(addr)
		if err != nil {
			return [20]byte{}, false, err
		}
		if acct.Mint != mint {
			return [20]byte{}, false, ErrMintMismatch
		}
		if acct.Owner != owner {
			return [20]byte{}, false, ErrOwnerMismatch
		}
		return addr, false, nil
	}
	if err := e.CreateAccount(addr, payer, mint, owner); err != nil {
		return [20]byte{}, false, err
	}
	return addr, true, nil
}

// MintTo issues amount new units of mint into the destination account.
func (e *Engine) MintTo(mint, destination, authority [20]byte, amount uint64) error {
	m, err := e.Mint(mint)
	if err != nil {
		return err
	}
	if m.Authority != authority {
		return fmt.Errorf("%w: mint authority", ErrOwnerMismatch)
	}
	acct, err := e.Account(destination)
	if err != nil {
		return err
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}
	if m.Supply > math.MaxUint64-amount || acct.Amount > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	m.Supply += amount
	acct.Amount += amount
	if err := e.state.WriteRecord(mint, Program, m.encode()); err != nil {
		return err
	}
	return e.state.WriteRecord(destination, Program, acct.encode())
}

// TransferChecked moves amount of mint from one custody account to another.
// The caller-asserted mint and decimals must match the stored mint, and the
// authority must own the source account.
func (e *Engine) TransferChecked(from, to, authority, mint [20]byte, amount uint64, decimals uint8) error {
	m, err := e.Mint(mint)
	if err != nil {
		return err
	}
	if m.Decimals != decimals {
		return ErrDecimalsMismatch
	}
	src, err := e.Account(from)
	if err != nil {
		return err
	}
	dst, err := e.Account(to)
	if err != nil {
		return err
	}
	if src.Mint != mint || dst.Mint != mint {
		return ErrMintMismatch
	}
	if src.Owner != authority {
		return ErrOwnerMismatch
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := e.state.WriteRecord(from, Program, src.encode()); err != nil {
		return err
	}
	return e.state.WriteRecord(to, Program, dst.encode())
}

// CloseAccount deletes an empty custody account and returns its storage
// deposit to destination.
func (e *Engine) CloseAccount(account, destination, authority [20]byte) (*big.Int, error) {
	acct, err := e.Account(account)
	if err != nil {
		return nil, err
	}
	if acct.Owner != authority {
		return nil, ErrOwnerMismatch
	}
	if acct.Amount != 0 {
		return nil, ErrNonZeroBalance
	}
	return e.state.CloseRecord(account, Program, destination)
}

// Balance returns the amount of mint held in owner's associated account. A
// missing account holds nothing.
func (e *Engine) Balance(owner, mint [20]byte) (uint64, error) {
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	acct, err := e.Account(addr)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}
