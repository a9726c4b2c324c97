package tickets

import (
	"errors"
	"math/big"
	"testing"

	"nftickets/core/state"
	"nftickets/native/assets"
	"nftickets/native/platform"
	"nftickets/storage"
)

var (
	admin     = [20]byte{0xAD}
	organiser = [20]byte{0x0E}
	fan       = [20]byte{0xF0}
)

type fixture struct {
	engine   *Engine
	mgr      *state.Manager
	treasury [20]byte
}

func newFixture(t *testing.T, feeBps uint16) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	for _, addr := range [][20]byte{admin, organiser, fan} {
		if err := mgr.Credit(addr, big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	plat := platform.NewEngine()
	plat.SetState(mgr)
	if _, err := plat.Initialize(admin, "gigs", feeBps); err != nil {
		t.Fatalf("initialize platform: %v", err)
	}
	if _, err := plat.SetupManager(organiser); err != nil {
		t.Fatalf("setup manager: %v", err)
	}
	_, platformAddr, _ := plat.Lookup("gigs")
	treasury, _, _ := platform.TreasuryAddress(platformAddr)

	engine := NewEngine()
	engine.SetState(mgr)
	return &fixture{engine: engine, mgr: mgr, treasury: treasury}
}

func (f *fixture) createEvent(t *testing.T, capacity uint64, transferable bool) [20]byte {
	t.Helper()
	addr, _, err := f.engine.CreateEvent(organiser, CreateEventArgs{
		Platform:     "gigs",
		Name:         "Summer Stage",
		Category:     "music",
		Venue:        "Harbour Hall",
		URI:          "ipfs://summer-stage",
		Date:         1_790_000_000,
		Capacity:     capacity,
		Price:        big.NewInt(1000),
		Transferable: transferable,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return addr
}

func TestCreateEventRequiresManager(t *testing.T) {
	f := newFixture(t, 500)
	_, _, err := f.engine.CreateEvent(fan, CreateEventArgs{Platform: "gigs", Name: "x", Capacity: 1})
	if !errors.Is(err, ErrNotManager) {
		t.Fatalf("expected ErrNotManager, got %v", err)
	}
	f.createEvent(t, 2, true)
	_, _, err = f.engine.CreateEvent(organiser, CreateEventArgs{Platform: "gigs", Name: "Summer Stage", Capacity: 1})
	if !errors.Is(err, ErrEventExists) {
		t.Fatalf("expected ErrEventExists, got %v", err)
	}
}

func TestMintTicketSplitsPrimaryPayment(t *testing.T) {
	f := newFixture(t, 500)
	eventAddr := f.createEvent(t, 2, true)
	organiserBefore, _ := f.mgr.Balance(organiser)

	mint, err := f.engine.MintTicket(fan, eventAddr)
	if err != nil {
		t.Fatalf("mint ticket: %v", err)
	}
	treasuryBal, _ := f.mgr.Balance(f.treasury)
	if treasuryBal.Int64() != 50 {
		t.Fatalf("treasury should receive 50, got %s", treasuryBal)
	}
	organiserAfter, _ := f.mgr.Balance(organiser)
	if new(big.Int).Sub(organiserAfter, organiserBefore).Int64() != 950 {
		t.Fatalf("organiser should receive 950")
	}

	assetEngine := assets.NewEngine()
	assetEngine.SetState(f.mgr)
	held, err := assetEngine.Balance(fan, mint)
	if err != nil || held != 1 {
		t.Fatalf("fan should hold the ticket: held=%d err=%v", held, err)
	}
	m, _ := assetEngine.Mint(mint)
	if m.Decimals != 0 || m.Supply != 1 {
		t.Fatalf("ticket mint must be a single unit: %+v", m)
	}
	evt, _ := f.engine.Event(eventAddr)
	if evt.Sold != 1 {
		t.Fatalf("sold counter not advanced: %d", evt.Sold)
	}
}

func TestMintTicketEnforcesCapacity(t *testing.T) {
	f := newFixture(t, 0)
	eventAddr := f.createEvent(t, 1, true)
	if _, err := f.engine.MintTicket(fan, eventAddr); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if _, err := f.engine.MintTicket(fan, eventAddr); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}
}

func TestScanTicketOnceByOrganiser(t *testing.T) {
	f := newFixture(t, 0)
	eventAddr := f.createEvent(t, 1, true)
	mint, err := f.engine.MintTicket(fan, eventAddr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.CheckListable(mint); err != nil {
		t.Fatalf("fresh ticket should be listable: %v", err)
	}
	if err := f.engine.ScanTicket(fan, mint); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.ScanTicket(organiser, mint); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := f.engine.ScanTicket(organiser, mint); !errors.Is(err, ErrAlreadyScanned) {
		t.Fatalf("expected ErrAlreadyScanned, got %v", err)
	}
	if err := f.engine.CheckListable(mint); !errors.Is(err, ErrAlreadyScanned) {
		t.Fatalf("scanned ticket must not be listable, got %v", err)
	}
}

func TestNonTransferableTicketsAreNotListable(t *testing.T) {
	f := newFixture(t, 0)
	eventAddr := f.createEvent(t, 1, false)
	mint, err := f.engine.MintTicket(fan, eventAddr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.CheckListable(mint); !errors.Is(err, ErrNotTransferable) {
		t.Fatalf("expected ErrNotTransferable, got %v", err)
	}
	if err := f.engine.CheckListable([20]byte{0x99}); err != nil {
		t.Fatalf("unknown assets are unrestricted, got %v", err)
	}
}
