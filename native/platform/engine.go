// Package platform maintains the registry of named marketplaces, their fee
// rate, treasury and organiser registrations.
package platform

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"nftickets/core/events"
	"nftickets/core/state"
	"nftickets/core/types"
	"nftickets/native/assets"
	"nftickets/native/fees"
)

var (
	ErrInvalidName      = errors.New("platform: invalid name")
	ErrFeeOutOfRange    = errors.New("platform: fee exceeds 10000 bps")
	ErrPlatformExists   = errors.New("platform: already initialised")
	ErrPlatformNotFound = errors.New("platform: not found")
	ErrManagerExists    = errors.New("platform: manager already registered")
	ErrManagerNotFound  = errors.New("platform: manager not registered")
	ErrUnauthorized     = errors.New("platform: caller is not the platform manager")
	ErrInvalidAmount    = errors.New("platform: amount must be positive")
	errNilState         = errors.New("platform engine: state not configured")
)

type engineState interface {
	CreateRecord(addr [20]byte, program string, payer [20]byte, data []byte) error
	Record(addr [20]byte, program string) ([]byte, error)
	WriteRecord(addr [20]byte, program string, data []byte) error
	CloseRecord(addr [20]byte, program string, destination [20]byte) (*big.Int, error)
	RecordExists(addr [20]byte) (bool, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	Balance(addr [20]byte) (*big.Int, error)
}

type platformEvent struct {
	evt *types.Event
}

func (e platformEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e platformEvent) Event() *types.Event { return e.evt }

// Engine applies registry operations against a unit of work.
type Engine struct {
	state   engineState
	assets  *assets.Engine
	emitter events.Emitter
}

// NewEngine creates a platform engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, assets: assets.NewEngine()}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) {
	e.state = st
	e.assets.SetState(st)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(platformEvent{evt: evt})
}

// Initialize registers a new platform managed by signer. The signer pays the
// storage deposits of the registry entry and the rewards mint.
func (e *Engine) Initialize(signer [20]byte, name string, feeBps uint16) (*Platform, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	name = strings.TrimSpace(name)
	if feeBps > fees.MaxBps {
		return nil, ErrFeeOutOfRange
	}
	addr, bump, err := Address(name)
	if err != nil {
		return nil, err
	}
	_, treasuryBump, err := TreasuryAddress(addr)
	if err != nil {
		return nil, err
	}
	rewards, rewardsBump, err := RewardsAddress(addr)
	if err != nil {
		return nil, err
	}
	p := &Platform{
		Name:         name,
		Manager:      signer,
		FeeBps:       feeBps,
		Bump:         bump,
		TreasuryBump: treasuryBump,
		RewardsBump:  rewardsBump,
	}
	data, err := p.encode()
	if err != nil {
		return nil, err
	}
	if err := e.state.CreateRecord(addr, Program, signer, data); err != nil {
		if errors.Is(err, state.ErrAddressInUse) {
			return nil, ErrPlatformExists
		}
		return nil, err
	}
	if err := e.assets.InitMint(rewards, signer, RewardsDecimals, addr); err != nil {
		return nil, fmt.Errorf("platform: rewards mint: %w", err)
	}
	e.emit(newInitializedEvent(addr, p))
	return p.Clone(), nil
}

// Lookup returns the named platform and its address.
func (e *Engine) Lookup(name string) (*Platform, [20]byte, error) {
	if e == nil || e.state == nil {
		return nil, [20]byte{}, errNilState
	}
	addr, _, err := Address(name)
	if err != nil {
		return nil, [20]byte{}, err
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, [20]byte{}, ErrPlatformNotFound
	}
	if err != nil {
		return nil, [20]byte{}, err
	}
	p, err := decodePlatform(data)
	if err != nil {
		return nil, [20]byte{}, err
	}
	return p, addr, nil
}

// UpdateFee changes the fee rate. Only the platform manager may call it.
func (e *Engine) UpdateFee(signer [20]byte, name string, feeBps uint16) (*Platform, error) {
	if feeBps > fees.MaxBps {
		return nil, ErrFeeOutOfRange
	}
	p, addr, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}
	if p.Manager != signer {
		return nil, ErrUnauthorized
	}
	previous := p.FeeBps
	p.FeeBps = feeBps
	data, err := p.encode()
	if err != nil {
		return nil, err
	}
	if err := e.state.WriteRecord(addr, Program, data); err != nil {
		return nil, err
	}
	e.emit(newFeeUpdatedEvent(addr, previous, feeBps))
	return p.Clone(), nil
}

// WithdrawTreasury moves amount out of the platform treasury to the manager.
func (e *Engine) WithdrawTreasury(signer [20]byte, name string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p, addr, err := e.Lookup(name)
	if err != nil {
		return err
	}
	if p.Manager != signer {
		return ErrUnauthorized
	}
	treasury, _, err := TreasuryAddress(addr)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(treasury, signer, amount); err != nil {
		return err
	}
	e.emit(newTreasuryWithdrawnEvent(addr, signer, amount))
	return nil
}

// TreasuryBalance returns the payment balance held by the platform treasury.
func (e *Engine) TreasuryBalance(name string) (*big.Int, error) {
	_, addr, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}
	treasury, _, err := TreasuryAddress(addr)
	if err != nil {
		return nil, err
	}
	return e.state.Balance(treasury)
}

// SetupManager registers signer as an event organiser.
func (e *Engine) SetupManager(signer [20]byte) (*Manager, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addr, bump, err := ManagerAddress(signer)
	if err != nil {
		return nil, err
	}
	m := &Manager{Signer: signer, Bump: bump}
	if err := e.state.CreateRecord(addr, Program, signer, m.encode()); err != nil {
		if errors.Is(err, state.ErrAddressInUse) {
			return nil, ErrManagerExists
		}
		return nil, err
	}
	e.emit(newManagerRegisteredEvent(signer))
	return m, nil
}

// IsManager reports whether signer has registered as an organiser.
func (e *Engine) IsManager(signer [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	addr, _, err := ManagerAddress(signer)
	if err != nil {
		return false, err
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m, err := decodeManager(data)
	if err != nil {
		return false, err
	}
	return m.Signer == signer, nil
}
