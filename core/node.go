package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"nftickets/core/events"
	"nftickets/core/ledger"
	"nftickets/core/state"
	"nftickets/core/types"
	"nftickets/native/assets"
	"nftickets/native/common"
	"nftickets/native/market"
	"nftickets/native/platform"
	"nftickets/native/tickets"
	"nftickets/observability/metrics"
	"nftickets/storage"
)

// staleRetries bounds how often an operation whose pre-read counterparties
// changed before the locks were taken is retried.
const staleRetries = 3

var (
	// ErrFaucetDisabled is returned when the dev faucet is not enabled.
	ErrFaucetDisabled = errors.New("node: faucet disabled")

	errStale = errors.New("node: counterparty changed before execution")
)

// Options configures a node.
type Options struct {
	PlatformName  string
	RentPerByte   uint64
	PausedModules []string
	EnableFaucet  bool
	Logger        *slog.Logger
	// Emitters receive every committed ledger event in order.
	Emitters []events.Emitter
}

// Node is the central controller, wiring the ledger, the native engines and
// the event fan-out together.
type Node struct {
	ledger       *ledger.Ledger
	hub          *events.Hub
	platformName string
	pauses       common.PauseView
	faucet       bool
	logger       *slog.Logger
	metrics      *metrics.MarketMetrics
}

// NewNode opens the ledger over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "node"))
	name := strings.TrimSpace(opts.PlatformName)
	if _, _, err := platform.Address(name); err != nil {
		return nil, fmt.Errorf("node: platform name: %w", err)
	}
	l, err := ledger.New(db, ledger.WithRentPerByte(opts.RentPerByte), ledger.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	hub := events.NewHub()
	emitters := events.Multi{hub}
	for _, emitter := range opts.Emitters {
		emitters = append(emitters, emitter)
	}
	l.SetEmitter(emitters)

	n := &Node{
		ledger:       l,
		hub:          hub,
		platformName: name,
		pauses:       common.NewPauseSet(opts.PausedModules...),
		faucet:       opts.EnableFaucet,
		logger:       logger,
		metrics:      metrics.Market(),
	}
	n.metrics.SetHeight(l.Height())
	return n, nil
}

// Events returns the hub streaming committed events.
func (n *Node) Events() *events.Hub { return n.hub }

// PlatformName returns the platform served by this node.
func (n *Node) PlatformName() string { return n.platformName }

// Height returns the sequence number of the latest committed operation.
func (n *Node) Height() uint64 { return n.ledger.Height() }

// stateEmitter buffers engine events in the unit of work so they are only
// published once it commits.
type stateEmitter struct {
	m *state.Manager
}

func (s stateEmitter) Emit(evt events.Event) {
	if payload, ok := evt.(interface{ Event() *types.Event }); ok {
		s.m.AppendEvent(payload.Event())
	}
}

func (n *Node) newMarketEngine(m *state.Manager) *market.Engine {
	engine := market.NewEngine()
	engine.SetState(m)
	engine.SetEmitter(stateEmitter{m: m})
	engine.SetPauses(n.pauses)
	engine.SetPolicy(n.newTicketsEngine(m))
	return engine
}

func (n *Node) newTicketsEngine(m *state.Manager) *tickets.Engine {
	engine := tickets.NewEngine()
	engine.SetState(m)
	engine.SetEmitter(stateEmitter{m: m})
	return engine
}

func (n *Node) newPlatformEngine(m *state.Manager) *platform.Engine {
	engine := platform.NewEngine()
	engine.SetState(m)
	engine.SetEmitter(stateEmitter{m: m})
	return engine
}

func (n *Node) newAssetsEngine(m *state.Manager) *assets.Engine {
	engine := assets.NewEngine()
	engine.SetState(m)
	return engine
}

func (n *Node) guard(module string) error {
	return common.Guard(n.pauses, module)
}

func (n *Node) execute(ctx context.Context, op ledger.Op) (*ledger.Receipt, error) {
	receipt, err := n.ledger.Execute(ctx, op)
	if err != nil {
		n.metrics.ObserveRejection(op.Name, ErrorClass(err))
		n.logger.Info("operation rejected",
			slog.String("op", op.Name),
			slog.String("reason", ErrorClass(err)),
			slog.String("error", err.Error()))
		return nil, err
	}
	n.metrics.SetHeight(receipt.Seq)
	n.logger.Info("operation committed",
		slog.String("op", op.Name),
		slog.Uint64("seq", receipt.Seq))
	return receipt, nil
}

// executeFresh builds and executes an operation, rebuilding it when the
// counterparties it pre-read changed before the locks were acquired.
func (n *Node) executeFresh(ctx context.Context, build func() (ledger.Op, error)) (*ledger.Receipt, error) {
	var lastErr error
	for attempt := 0; attempt < staleRetries; attempt++ {
		op, err := build()
		if err != nil {
			return nil, err
		}
		receipt, err := n.execute(ctx, op)
		if errors.Is(err, errStale) {
			lastErr = err
			continue
		}
		return receipt, err
	}
	return nil, lastErr
}

func (n *Node) platformAddrs(name string) (addr, treasury, rewards [20]byte, err error) {
	addr, _, err = platform.Address(name)
	if err != nil {
		return
	}
	treasury, _, err = platform.TreasuryAddress(addr)
	if err != nil {
		return
	}
	rewards, _, err = platform.RewardsAddress(addr)
	return
}

// InitializePlatform registers a platform managed by signer.
func (n *Node) InitializePlatform(ctx context.Context, signer [20]byte, nonce uint64, name string, feeBps uint16) (*platform.Platform, *ledger.Receipt, error) {
	addr, _, rewards, err := n.platformAddrs(name)
	if err != nil {
		return nil, nil, err
	}
	var out *platform.Platform
	receipt, err := n.execute(ctx, ledger.Op{
		Name:   "platform.initialize",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{addr, rewards},
		Apply: func(_ context.Context, m *state.Manager) error {
			p, err := n.newPlatformEngine(m).Initialize(signer, name, feeBps)
			out = p
			return err
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return out, receipt, nil
}

// BootstrapPlatform initialises the served platform on first start. It is a
// no-op when the platform already exists.
func (n *Node) BootstrapPlatform(ctx context.Context, manager [20]byte, feeBps uint16) error {
	if _, err := n.Platform(); err == nil {
		return nil
	} else if !errors.Is(err, platform.ErrPlatformNotFound) {
		return err
	}
	account, err := n.Account(manager)
	if err != nil {
		return err
	}
	_, _, err = n.InitializePlatform(ctx, manager, account.Nonce, n.platformName, feeBps)
	return err
}

// SetupManager registers signer as an event organiser.
func (n *Node) SetupManager(ctx context.Context, signer [20]byte, nonce uint64) (*ledger.Receipt, error) {
	managerAddr, _, err := platform.ManagerAddress(signer)
	if err != nil {
		return nil, err
	}
	return n.execute(ctx, ledger.Op{
		Name:   "platform.setup_manager",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{managerAddr},
		Apply: func(_ context.Context, m *state.Manager) error {
			_, err := n.newPlatformEngine(m).SetupManager(signer)
			return err
		},
	})
}

// UpdatePlatformFee changes the fee rate of the served platform.
func (n *Node) UpdatePlatformFee(ctx context.Context, signer [20]byte, nonce uint64, feeBps uint16) (*platform.Platform, *ledger.Receipt, error) {
	addr, _, _, err := n.platformAddrs(n.platformName)
	if err != nil {
		return nil, nil, err
	}
	var out *platform.Platform
	receipt, err := n.execute(ctx, ledger.Op{
		Name:   "platform.update_fee",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{addr},
		Apply: func(_ context.Context, m *state.Manager) error {
			p, err := n.newPlatformEngine(m).UpdateFee(signer, n.platformName, feeBps)
			out = p
			return err
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return out, receipt, nil
}

// WithdrawTreasury moves amount from the treasury to the platform manager.
func (n *Node) WithdrawTreasury(ctx context.Context, signer [20]byte, nonce uint64, amount *big.Int) (*ledger.Receipt, error) {
	addr, treasury, _, err := n.platformAddrs(n.platformName)
	if err != nil {
		return nil, err
	}
	return n.execute(ctx, ledger.Op{
		Name:   "platform.withdraw_treasury",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{treasury},
		Reads:  [][20]byte{addr},
		Apply: func(_ context.Context, m *state.Manager) error {
			return n.newPlatformEngine(m).WithdrawTreasury(signer, n.platformName, amount)
		},
	})
}

// CreateEvent registers an event organised by signer on the served platform.
func (n *Node) CreateEvent(ctx context.Context, signer [20]byte, nonce uint64, args tickets.CreateEventArgs) ([20]byte, *ledger.Receipt, error) {
	if err := n.guard("tickets"); err != nil {
		return [20]byte{}, nil, err
	}
	args.Platform = n.platformName
	eventAddr, _, err := tickets.EventAddress(signer, strings.TrimSpace(args.Name))
	if err != nil {
		return [20]byte{}, nil, err
	}
	managerAddr, _, err := platform.ManagerAddress(signer)
	if err != nil {
		return [20]byte{}, nil, err
	}
	platformAddr, _, _, err := n.platformAddrs(n.platformName)
	if err != nil {
		return [20]byte{}, nil, err
	}
	receipt, err := n.execute(ctx, ledger.Op{
		Name:   "tickets.create_event",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{eventAddr},
		Reads:  [][20]byte{managerAddr, platformAddr},
		Apply: func(_ context.Context, m *state.Manager) error {
			_, _, err := n.newTicketsEngine(m).CreateEvent(signer, args)
			return err
		},
	})
	if err != nil {
		return [20]byte{}, nil, err
	}
	return eventAddr, receipt, nil
}

// MintTicket sells the next ticket of an event to buyer.
func (n *Node) MintTicket(ctx context.Context, buyer [20]byte, nonce uint64, eventAddr [20]byte) ([20]byte, *ledger.Receipt, error) {
	if err := n.guard("tickets"); err != nil {
		return [20]byte{}, nil, err
	}
	var mint [20]byte
	receipt, err := n.executeFresh(ctx, func() (ledger.Op, error) {
		evt, err := n.Event(eventAddr)
		if err != nil {
			return ledger.Op{}, err
		}
		platformAddr, treasury, _, err := n.platformAddrs(evt.Platform)
		if err != nil {
			return ledger.Op{}, err
		}
		expected, _, err := tickets.MintAddress(eventAddr, evt.Sold)
		if err != nil {
			return ledger.Op{}, err
		}
		custody, err := assets.AssociatedAddress(buyer, expected)
		if err != nil {
			return ledger.Op{}, err
		}
		ticketAddr, _, err := tickets.TicketAddress(expected)
		if err != nil {
			return ledger.Op{}, err
		}
		return ledger.Op{
			Name:   "tickets.mint",
			Signer: buyer,
			Nonce:  nonce,
			Access: [][20]byte{eventAddr, evt.Manager, treasury, expected, custody, ticketAddr},
			Reads:  [][20]byte{platformAddr},
			Apply: func(_ context.Context, m *state.Manager) error {
				engine := n.newTicketsEngine(m)
				minted, err := engine.MintTicket(buyer, eventAddr)
				if err != nil {
					if errors.Is(err, state.ErrAddressInUse) {
						return errStale
					}
					return err
				}
				if minted != expected {
					return errStale
				}
				mint = minted
				return nil
			},
		}, nil
	})
	if err != nil {
		return [20]byte{}, nil, err
	}
	return mint, receipt, nil
}

// ScanTicket checks a ticket in at the venue.
func (n *Node) ScanTicket(ctx context.Context, signer [20]byte, nonce uint64, mint [20]byte) (*ledger.Receipt, error) {
	if err := n.guard("tickets"); err != nil {
		return nil, err
	}
	ticket, err := n.Ticket(mint)
	if err != nil {
		return nil, err
	}
	ticketAddr, _, err := tickets.TicketAddress(mint)
	if err != nil {
		return nil, err
	}
	return n.execute(ctx, ledger.Op{
		Name:   "tickets.scan",
		Signer: signer,
		Nonce:  nonce,
		Access: [][20]byte{ticketAddr},
		Reads:  [][20]byte{ticket.Event},
		Apply: func(_ context.Context, m *state.Manager) error {
			return n.newTicketsEngine(m).ScanTicket(signer, mint)
		},
	})
}

// listingAddrs derives every address a market operation on asset touches.
func (n *Node) listingAddrs(asset [20]byte) (platformAddr, listingAddr, vault, ticketAddr [20]byte, err error) {
	platformAddr, _, err = platform.Address(n.platformName)
	if err != nil {
		return
	}
	listingAddr, _, err = market.ListingAddress(platformAddr, asset)
	if err != nil {
		return
	}
	vault, err = assets.AssociatedAddress(listingAddr, asset)
	if err != nil {
		return
	}
	ticketAddr, _, err = tickets.TicketAddress(asset)
	return
}

// ListTicket creates a listing for asset at price.
func (n *Node) ListTicket(ctx context.Context, seller [20]byte, nonce uint64, asset [20]byte, price *big.Int) (*market.Listing, *ledger.Receipt, error) {
	platformAddr, listingAddr, vault, ticketAddr, err := n.listingAddrs(asset)
	if err != nil {
		return nil, nil, err
	}
	sellerAccount, err := assets.AssociatedAddress(seller, asset)
	if err != nil {
		return nil, nil, err
	}
	var out *market.Listing
	receipt, err := n.execute(ctx, ledger.Op{
		Name:   "market.list",
		Signer: seller,
		Nonce:  nonce,
		Access: [][20]byte{listingAddr, vault, sellerAccount},
		Reads:  [][20]byte{platformAddr, asset, ticketAddr},
		Apply: func(_ context.Context, m *state.Manager) error {
			listing, err := n.newMarketEngine(m).List(seller, n.platformName, asset, price)
			out = listing
			return err
		},
	})
	if err != nil {
		return nil, nil, err
	}
	n.metrics.ObserveListing("listed")
	return out, receipt, nil
}

// DelistTicket withdraws the caller's listing of asset.
func (n *Node) DelistTicket(ctx context.Context, caller [20]byte, nonce uint64, asset [20]byte) (*ledger.Receipt, error) {
	platformAddr, listingAddr, vault, ticketAddr, err := n.listingAddrs(asset)
	if err != nil {
		return nil, err
	}
	callerAccount, err := assets.AssociatedAddress(caller, asset)
	if err != nil {
		return nil, err
	}
	receipt, err := n.execute(ctx, ledger.Op{
		Name:   "market.delist",
		Signer: caller,
		Nonce:  nonce,
		Access: [][20]byte{listingAddr, vault, callerAccount},
		Reads:  [][20]byte{platformAddr, asset, ticketAddr},
		Apply: func(_ context.Context, m *state.Manager) error {
			_, err := n.newMarketEngine(m).Delist(caller, n.platformName, asset)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveListing("delisted")
	return receipt, nil
}

// PurchaseTicket settles the listing of asset for buyer.
func (n *Node) PurchaseTicket(ctx context.Context, buyer [20]byte, nonce uint64, asset [20]byte) (*market.Settlement, *ledger.Receipt, error) {
	platformAddr, listingAddr, vault, ticketAddr, err := n.listingAddrs(asset)
	if err != nil {
		return nil, nil, err
	}
	_, treasury, _, err := n.platformAddrs(n.platformName)
	if err != nil {
		return nil, nil, err
	}
	buyerAccount, err := assets.AssociatedAddress(buyer, asset)
	if err != nil {
		return nil, nil, err
	}
	var out *market.Settlement
	receipt, err := n.executeFresh(ctx, func() (ledger.Op, error) {
		listing, err := n.Listing(asset)
		if err != nil {
			return ledger.Op{}, err
		}
		seller := listing.Seller
		return ledger.Op{
			Name:   "market.purchase",
			Signer: buyer,
			Nonce:  nonce,
			Access: [][20]byte{listingAddr, vault, buyerAccount, seller, treasury},
			Reads:  [][20]byte{platformAddr, asset, ticketAddr},
			Apply: func(_ context.Context, m *state.Manager) error {
				engine := n.newMarketEngine(m)
				current, _, err := engine.Get(n.platformName, asset)
				if err != nil {
					return err
				}
				if current.Seller != seller {
					return errStale
				}
				settlement, err := engine.Purchase(buyer, n.platformName, asset)
				out = settlement
				return err
			},
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	n.metrics.ObserveSale(out.Listing.Price, out.Fee)
	return out, receipt, nil
}

// Faucet credits amount to addr on development networks.
func (n *Node) Faucet(ctx context.Context, addr [20]byte, amount *big.Int) (*ledger.Receipt, error) {
	if !n.faucet {
		return nil, ErrFaucetDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: faucet amount must be positive", ErrInvalidParams)
	}
	return n.execute(ctx, ledger.Op{
		Name:   "dev.faucet",
		Access: [][20]byte{addr},
		Apply: func(_ context.Context, m *state.Manager) error {
			m.AppendEvent(&types.Event{Type: "dev.faucet", Attributes: map[string]string{
				"amount": amount.String(),
			}})
			return m.Credit(addr, amount)
		},
	})
}
