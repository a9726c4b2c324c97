// Package tickets issues event tickets as single-unit assets and tracks
// check-in at the venue.
package tickets

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
	"nftickets/native/platform"
)

var (
	ErrInvalidEvent    = errors.New("tickets: invalid event")
	ErrEventExists     = errors.New("tickets: event already exists")
	ErrEventNotFound   = errors.New("tickets: event not found")
	ErrTicketNotFound  = errors.New("tickets: ticket not found")
	ErrNotManager      = errors.New("tickets: signer is not a registered manager")
	ErrUnauthorized    = errors.New("tickets: caller does not manage this event")
	ErrSoldOut         = errors.New("tickets: event sold out")
	ErrAlreadyScanned  = errors.New("tickets: ticket already scanned")
	ErrNotTransferable = errors.New("tickets: ticket is not transferable")
	errNilState        = errors.New("tickets engine: state not configured")
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

type ticketEvent struct {
	evt *types.Event
}

func (e ticketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ticketEvent) Event() *types.Event { return e.evt }

// CreateEventArgs carries the organiser-supplied event definition.
type CreateEventArgs struct {
	Platform     string
	Name         string
	Category     string
	Venue        string
	URI          string
	Date         int64
	Capacity     uint64
	Price        *big.Int
	Transferable bool
}

// Engine applies ticketing operations against a unit of work.
type Engine struct {
	state    engineState
	assets   *assets.Engine
	platform *platform.Engine
	emitter  events.Emitter
}

// NewEngine creates a tickets engine with a no-op emitter.
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
	e.emitter.Emit(ticketEvent{evt: evt})
}

// CreateEvent registers a new event organised by manager.
func (e *Engine) CreateEvent(manager [20]byte, args CreateEventArgs) ([20]byte, *Event, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, nil, errNilState
	}
	ok, err := e.platform.IsManager(manager)
	if err != nil {
		return [20]byte{}, nil, err
	}
	if !ok {
		return [20]byte{}, nil, ErrNotManager
	}
	if _, _, err := e.platform.Lookup(args.Platform); err != nil {
		return [20]byte{}, nil, err
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return [20]byte{}, nil, fmt.Errorf("%w: name required", ErrInvalidEvent)
	}
	if args.Capacity == 0 {
		return [20]byte{}, nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}
	price := args.Price
	if price == nil {
		price = big.NewInt(0)
	}
	if price.Sign() < 0 {
		return [20]byte{}, nil, fmt.Errorf("%w: negative price", ErrInvalidEvent)
	}
	evt := &Event{
		Manager:      manager,
		Platform:     strings.TrimSpace(args.Platform),
		Name:         name,
		Category:     strings.TrimSpace(args.Category),
		Venue:        strings.TrimSpace(args.Venue),
		URI:          strings.TrimSpace(args.URI),
		Date:         args.Date,
		Capacity:     args.Capacity,
		Price:        new(big.Int).Set(price),
		Transferable: args.Transferable,
	}
	addr, _, err := EventAddress(manager, name)
	if err != nil {
		return [20]byte{}, nil, err
	}
	data, err := evt.encode()
	if err != nil {
		return [20]byte{}, nil, err
	}
	if err := e.state.CreateRecord(addr, Program, manager, data); err != nil {
		if errors.Is(err, state.ErrAddressInUse) {
			return [20]byte{}, nil, ErrEventExists
		}
		return [20]byte{}, nil, err
	}
	e.emit(newEventCreatedEvent(addr, evt))
	return addr, evt.Clone(), nil
}

// Event returns the event stored at addr.
func (e *Engine) Event(addr [20]byte) (*Event, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEvent(data)
}

// Ticket returns the ticket record of an issued asset.
func (e *Engine) Ticket(mint [20]byte) (*Ticket, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	addr, _, err := TicketAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := e.state.Record(addr, Program)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeTicket(data)
}

// MintTicket sells the next ticket of an event to buyer at the primary price.
// The platform fee goes to the treasury and the remainder to the organiser.
// The buyer pays every storage deposit the issuance needs.
func (e *Engine) MintTicket(buyer, eventAddr [20]byte) ([20]byte, error) {
	evt, err := e.Event(eventAddr)
	if err != nil {
		return [20]byte{}, err
	}
	if evt.Sold >= evt.Capacity {
		return [20]byte{}, ErrSoldOut
	}
	p, platformAddr, err := e.platform.Lookup(evt.Platform)
	if err != nil {
		return [20]byte{}, err
	}
	treasury, _, err := platform.TreasuryAddress(platformAddr)
	if err != nil {
		return [20]byte{}, err
	}
	split, err := fees.Apply(evt.Price, p.FeeBps)
	if err != nil {
		return [20]byte{}, err
	}
	if split.Fee.Sign() > 0 {
		if err := e.state.Transfer(buyer, treasury, split.Fee); err != nil {
			return [20]byte{}, err
		}
	}
	if split.Net.Sign() > 0 {
		if err := e.state.Transfer(buyer, evt.Manager, split.Net); err != nil {
			return [20]byte{}, err
		}
	}

	index := evt.Sold
	mint, _, err := MintAddress(eventAddr, index)
	if err != nil {
		return [20]byte{}, err
	}
	if err := e.assets.InitMint(mint, buyer, 0, eventAddr); err != nil {
		return [20]byte{}, err
	}
	custody, _, err := e.assets.CreateAssociatedIfNeeded(buyer, buyer, mint)
	if err != nil {
		return [20]byte{}, err
	}
	if err := e.assets.MintTo(mint, custody, eventAddr, 1); err != nil {
		return [20]byte{}, err
	}
	ticketAddr, _, err := TicketAddress(mint)
	if err != nil {
		return [20]byte{}, err
	}
	ticket := &Ticket{Event: eventAddr, Mint: mint, Index: index}
	if err := e.state.CreateRecord(ticketAddr, Program, buyer, ticket.encode()); err != nil {
		return [20]byte{}, err
	}

	evt.Sold++
	data, err := evt.encode()
	if err != nil {
		return [20]byte{}, err
	}
	if err := e.state.WriteRecord(eventAddr, Program, data); err != nil {
		return [20]byte{}, err
	}
	e.emit(newTicketMintedEvent(eventAddr, mint, buyer, index, split))
	return mint, nil
}

// ScanTicket checks a ticket in. Only the event's organiser may scan and a
// ticket can be scanned once.
func (e *Engine) ScanTicket(signer, mint [20]byte) error {
	ticket, err := e.Ticket(mint)
	if err != nil {
		return err
	}
	evt, err := e.Event(ticket.Event)
	if err != nil {
		return err
	}
	if evt.Manager != signer {
		return ErrUnauthorized
	}
	if ticket.Scanned {
		return ErrAlreadyScanned
	}
	ticket.Scanned = true
	addr, _, err := TicketAddress(mint)
	if err != nil {
		return err
	}
	if err := e.state.WriteRecord(addr, Program, ticket.encode()); err != nil {
		return err
	}
	e.emit(newTicketScannedEvent(ticket))
	return nil
}

// CheckListable reports whether an asset may enter the resale market. Assets
// without a ticket record are not restricted.
func (e *Engine) CheckListable(mint [20]byte) error {
	ticket, err := e.Ticket(mint)
	if errors.Is(err, ErrTicketNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ticket.Scanned {
		return ErrAlreadyScanned
	}
	evt, err := e.Event(ticket.Event)
	if err != nil {
		return err
	}
	if !evt.Transferable {
		return ErrNotTransferable
	}
	return nil
}
