// Package market implements the resale escrow: listing an asset into a vault
// controlled by the listing itself, withdrawing it, and settling a purchase.
//
// Every operation runs inside a single unit of work; any failure leaves state
// untouched because the caller discards the staged changes.
package market

import (
	"errors"
	"fmt"
	"math/big"

	"nftickets/core/events"
	"nftickets/core/state"
	"nftickets/core/types"
	"nftickets/native/assets"
	"nftickets/native/common"
	"nftickets/native/fees"
	"nftickets/native/platform"
)

// ModuleName is the pause switch name of the market.
const ModuleName = "market"

var (
	// ErrListingExists is returned when the asset already has an active
	// listing on the platform.
	ErrListingExists = errors.New("market: listing already exists")
	// ErrUnauthorized is returned when the caller cannot satisfy the listing
	// derivation or is not its seller.
	ErrUnauthorized = errors.New("market: unauthorized")
	// ErrListingNotFound is returned when no listing exists for the asset. It
	// is an authorization failure: nothing resolves at the derived address.
	ErrListingNotFound = fmt.Errorf("%w: listing not found", ErrUnauthorized)
	// ErrVaultInvariant is returned when a vault does not hold exactly one
	// unit of its asset.
	ErrVaultInvariant = errors.New("market: vault invariant violated")
	// ErrInvalidPrice is returned for non-positive prices.
	ErrInvalidPrice = errors.New("market: price must be positive")

	errNilState = errors.New("market engine: state not configured")
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

// ListingPolicy decides whether an asset may be listed.
type ListingPolicy interface {
	CheckListable(asset [20]byte) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine applies market operations against a unit of work.
type Engine struct {
	state    engineState
	assets   *assets.Engine
	platform *platform.Engine
	policy   ListingPolicy
	pauses   common.PauseView
	emitter  events.Emitter
}

// NewEngine creates a market engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		assets:   assets.NewEngine(),
		platform: platform.NewEngine(),
		emitter:  events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) {
	e.state = st
	e.assets.SetState(st)
	e.platform.SetState(st)
}

// SetPolicy configures the listing eligibility check.
func (e *Engine) SetPolicy(policy ListingPolicy) { e.policy = policy }

// SetPauses configures the pause view consulted before every operation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

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
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) load(listingAddr [20]byte) (*Listing, error) {
	data, err := e.state.Record(listingAddr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if errors.Is(err, state.ErrProgramMismatch) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return decodeListing(data)
}

type resolved struct {
	platform     *platform.Platform
	platformAddr [20]byte
	listing      *Listing
	listingAddr  [20]byte
}

func (e *Engine) resolve(platformName string, asset [20]byte) (*resolved, error) {
	p, platformAddr, err := e.platform.Lookup(platformName)
	if err != nil {
		return nil, err
	}
	listingAddr, _, err := ListingAddress(platformAddr, asset)
	if err != nil {
		return nil, err
	}
	listing, err := e.load(listingAddr)
	if err != nil {
		return nil, err
	}
	return &resolved{platform: p, platformAddr: platformAddr, listing: listing, listingAddr: listingAddr}, nil
}

// Get returns the active listing of asset on the named platform.
func (e *Engine) Get(platformName string, asset [20]byte) (*Listing, [20]byte, error) {
	if e == nil || e.state == nil {
		return nil, [20]byte{}, errNilState
	}
	r, err := e.resolve(platformName, asset)
	if err != nil {
		return nil, [20]byte{}, err
	}
	return r.listing, r.listingAddr, nil
}

// Quote previews what a purchase of the listing would pay out.
func (e *Engine) Quote(platformName string, asset [20]byte) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	r, err := e.resolve(platformName, asset)
	if err != nil {
		return nil, err
	}
	split, err := fees.Apply(r.listing.Price, r.platform.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", state.ErrArithmetic, err)
	}
	return &Quote{Listing: r.listing, FeeBps: r.platform.FeeBps, Fee: split.Fee, Proceeds: split.Net}, nil
}

// List locks one unit of asset from the seller's associated account into a
// vault owned by a new listing at the derived address.
func (e *Engine) List(seller [20]byte, platformName string, asset [20]byte, price *big.Int) (*Listing, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	_, platformAddr, err := e.platform.Lookup(platformName)
	if err != nil {
		return nil, err
	}
	listingAddr, bump, err := ListingAddress(platformAddr, asset)
	if err != nil {
		return nil, err
	}
	exists, err := e.state.RecordExists(listingAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrListingExists
	}
	if e.policy != nil {
		if err := e.policy.CheckListable(asset); err != nil {
			return nil, err
		}
	}
	mint, err := e.assets.Mint(asset)
	if err != nil {
		return nil, err
	}
	sellerAccount, err := assets.AssociatedAddress(seller, asset)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Seller: seller, AssetID: asset, Price: new(big.Int).Set(price), Bump: bump}
	data, err := listing.encode()
	if err != nil {
		return nil, err
	}
	if err := e.state.CreateRecord(listingAddr, Program, seller, data); err != nil {
		if errors.Is(err, state.ErrAddressInUse) {
			return nil, ErrListingExists
		}
		return nil, err
	}
	vault, _, err := e.assets.CreateAssociatedIfNeeded(seller, listingAddr, asset)
	if err != nil {
		return nil, err
	}
	if err := e.assets.TransferChecked(sellerAccount, vault, seller, asset, 1, mint.Decimals); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(platformAddr, listingAddr, listing))
	return listing.Clone(), nil
}

// Delist returns the escrowed unit to the seller and closes the vault and the
// listing, refunding both storage deposits to the seller.
func (e *Engine) Delist(caller [20]byte, platformName string, asset [20]byte) (*Listing, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	r, err := e.resolve(platformName, asset)
	if err != nil {
		return nil, err
	}
	listing, listingAddr, platformAddr := r.listing, r.listingAddr, r.platformAddr
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	auth, err := e.authorize(platformAddr, listing)
	if err != nil {
		return nil, err
	}
	if err := auth.checkVault(e); err != nil {
		return nil, err
	}
	destination, _, err := e.assets.CreateAssociatedIfNeeded(caller, caller, asset)
	if err != nil {
		return nil, err
	}
	if err := auth.release(e, destination); err != nil {
		return nil, err
	}
	vaultRent, listingRent, err := auth.close(e, caller)
	if err != nil {
		return nil, err
	}
	e.emit(NewDelistedEvent(platformAddr, listingAddr, listing, new(big.Int).Add(vaultRent, listingRent)))
	return listing, nil
}

// Settlement summarises a completed purchase.
type Settlement struct {
	Listing  *Listing
	Buyer    [20]byte
	Fee      *big.Int
	Proceeds *big.Int
	Refund   *big.Int
}

// Purchase settles the listing for buyer: the price is split between seller
// and treasury, the escrowed unit moves to the buyer's associated account and
// the vault and listing close with their deposits returned to the seller.
func (e *Engine) Purchase(buyer [20]byte, platformName string, asset [20]byte) (*Settlement, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	r, err := e.resolve(platformName, asset)
	if err != nil {
		return nil, err
	}
	listing, listingAddr, platformAddr := r.listing, r.listingAddr, r.platformAddr
	auth, err := e.authorize(platformAddr, listing)
	if err != nil {
		return nil, err
	}
	if err := auth.checkVault(e); err != nil {
		return nil, err
	}
	if e.policy != nil {
		if err := e.policy.CheckListable(asset); err != nil {
			return nil, err
		}
	}
	treasury, _, err := platform.TreasuryAddress(platformAddr)
	if err != nil {
		return nil, err
	}

	split, err := fees.Apply(listing.Price, r.platform.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", state.ErrArithmetic, err)
	}
	if err := e.state.Transfer(buyer, listing.Seller, split.Net); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(buyer, treasury, split.Fee); err != nil {
		return nil, err
	}

	destination, _, err := e.assets.CreateAssociatedIfNeeded(buyer, buyer, asset)
	if err != nil {
		return nil, err
	}
	if err := auth.release(e, destination); err != nil {
		return nil, err
	}
	vaultRent, listingRent, err := auth.close(e, listing.Seller)
	if err != nil {
		return nil, err
	}
	refund := new(big.Int).Add(vaultRent, listingRent)
	e.emit(NewSoldEvent(platformAddr, listingAddr, buyer, listing, split.Fee, split.Net, refund))
	return &Settlement{
		Listing:  listing,
		Buyer:    buyer,
		Fee:      split.Fee,
		Proceeds: split.Net,
		Refund:   refund,
	}, nil
}
