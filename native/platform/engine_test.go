package platform

import (
	"errors"
	"math/big"
	"testing"

	"nftickets/core/events"
	"nftickets/core/state"
	"nftickets/core/types"
	"nftickets/native/assets"
	"nftickets/storage"
)

type recordingEmitter struct {
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	if payload, ok := evt.(interface{ Event() *types.Event }); ok {
		r.events = append(r.events, payload.Event())
	}
}

var (
	admin     = [20]byte{0xAD}
	organiser = [20]byte{0x0E}
)

func newTestEngine(t *testing.T) (*Engine, *state.Manager, *recordingEmitter) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	for _, addr := range [][20]byte{admin, organiser} {
		if err := mgr.Credit(addr, big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	rec := &recordingEmitter{}
	engine := NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(rec)
	return engine, mgr, rec
}

func TestInitializeCreatesPlatformAndRewardsMint(t *testing.T) {
	e, mgr, rec := newTestEngine(t)

	p, err := e.Initialize(admin, "NF-Tickets", 500)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if p.Manager != admin || p.FeeBps != 500 {
		t.Fatalf("unexpected platform: %+v", p)
	}
	stored, addr, err := e.Lookup("NF-Tickets")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if *stored != *p {
		t.Fatalf("stored platform mismatch: %+v vs %+v", stored, p)
	}
	rewards, bump, err := RewardsAddress(addr)
	if err != nil {
		t.Fatalf("rewards address: %v", err)
	}
	if bump != p.RewardsBump {
		t.Fatalf("rewards bump mismatch: %d vs %d", bump, p.RewardsBump)
	}
	assetEngine := assets.NewEngine()
	assetEngine.SetState(mgr)
	mint, err := assetEngine.Mint(rewards)
	if err != nil {
		t.Fatalf("rewards mint: %v", err)
	}
	if mint.Decimals != RewardsDecimals || mint.Authority != addr {
		t.Fatalf("unexpected rewards mint: %+v", mint)
	}
	if len(rec.events) != 1 || rec.events[0].Type != EventTypeInitialized {
		t.Fatalf("expected initialized event, got %+v", rec.events)
	}

	if _, err := e.Initialize(organiser, "NF-Tickets", 100); !errors.Is(err, ErrPlatformExists) {
		t.Fatalf("expected ErrPlatformExists, got %v", err)
	}
}

func TestInitializeValidatesInput(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Initialize(admin, "", 10); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := e.Initialize(admin, "this-name-is-far-too-long-for-a-platform", 10); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for long name, got %v", err)
	}
	if _, err := e.Initialize(admin, "ok", 10_001); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected ErrFeeOutOfRange, got %v", err)
	}
}

func TestUpdateFeeRequiresManager(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Initialize(admin, "gigs", 500); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := e.UpdateFee(organiser, "gigs", 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	p, err := e.UpdateFee(admin, "gigs", 250)
	if err != nil {
		t.Fatalf("update fee: %v", err)
	}
	if p.FeeBps != 250 {
		t.Fatalf("unexpected fee: %d", p.FeeBps)
	}
	stored, _, _ := e.Lookup("gigs")
	if stored.FeeBps != 250 {
		t.Fatalf("fee not persisted: %d", stored.FeeBps)
	}
}

func TestWithdrawTreasury(t *testing.T) {
	e, mgr, _ := newTestEngine(t)
	if _, err := e.Initialize(admin, "gigs", 500); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	_, addr, _ := e.Lookup("gigs")
	treasury, _, _ := TreasuryAddress(addr)
	if err := mgr.Credit(treasury, big.NewInt(300)); err != nil {
		t.Fatalf("seed treasury: %v", err)
	}

	if err := e.WithdrawTreasury(organiser, "gigs", big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := e.WithdrawTreasury(admin, "gigs", big.NewInt(301)); !errors.Is(err, state.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	before, _ := mgr.Balance(admin)
	if err := e.WithdrawTreasury(admin, "gigs", big.NewInt(120)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	after, _ := mgr.Balance(admin)
	if new(big.Int).Sub(after, before).Int64() != 120 {
		t.Fatalf("manager should receive 120, got %s", new(big.Int).Sub(after, before))
	}
	remaining, _ := e.TreasuryBalance("gigs")
	if remaining.Int64() != 180 {
		t.Fatalf("unexpected treasury balance: %s", remaining)
	}
}

func TestSetupManagerOnce(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if ok, _ := e.IsManager(organiser); ok {
		t.Fatalf("organiser should not be registered yet")
	}
	if _, err := e.SetupManager(organiser); err != nil {
		t.Fatalf("setup manager: %v", err)
	}
	if ok, _ := e.IsManager(organiser); !ok {
		t.Fatalf("organiser should be registered")
	}
	if _, err := e.SetupManager(organiser); !errors.Is(err, ErrManagerExists) {
		t.Fatalf("expected ErrManagerExists, got %v", err)
	}
}
