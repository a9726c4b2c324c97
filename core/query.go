package core

import (
	"math/big"

	"nftickets/core/ledger"
	"nftickets/core/state"
	"nftickets/core/types"
	"nftickets/native/assets"
	"nftickets/native/market"
	"nftickets/native/platform"
	"nftickets/native/tickets"
)

// Platform returns the served platform record.
func (n *Node) Platform() (*platform.Platform, error) {
	var out *platform.Platform
	err := n.ledger.View(func(m *state.Manager) error {
		p, _, err := n.newPlatformEngine(m).Lookup(n.platformName)
		out = p
		return err
	})
	return out, err
}

// TreasuryBalance returns the fees accumulated by the served platform.
func (n *Node) TreasuryBalance() (*big.Int, error) {
	var out *big.Int
	err := n.ledger.View(func(m *state.Manager) error {
		balance, err := n.newPlatformEngine(m).TreasuryBalance(n.platformName)
		out = balance
		return err
	})
	return out, err
}

// Listing returns the active listing of asset.
func (n *Node) Listing(asset [20]byte) (*market.Listing, error) {
	var out *market.Listing
	err := n.ledger.View(func(m *state.Manager) error {
		listing, _, err := n.newMarketEngine(m).Get(n.platformName, asset)
		out = listing
		return err
	})
	return out, err
}

// Quote previews the settlement of the listing of asset.
func (n *Node) Quote(asset [20]byte) (*market.Quote, error) {
	var out *market.Quote
	err := n.ledger.View(func(m *state.Manager) error {
		quote, err := n.newMarketEngine(m).Quote(n.platformName, asset)
		out = quote
		return err
	})
	return out, err
}

// Account returns the payment balance and nonce of addr.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	var out *types.Account
	err := n.ledger.View(func(m *state.Manager) error {
		account, err := m.GetAccount(addr[:])
		out = account
		return err
	})
	return out, err
}

// AssetBalance returns how many units of mint owner holds in its associated
// account.
func (n *Node) AssetBalance(owner, mint [20]byte) (uint64, error) {
	var out uint64
	err := n.ledger.View(func(m *state.Manager) error {
		balance, err := n.newAssetsEngine(m).Balance(owner, mint)
		out = balance
		return err
	})
	return out, err
}

// Event returns the event record at addr.
func (n *Node) Event(addr [20]byte) (*tickets.Event, error) {
	var out *tickets.Event
	err := n.ledger.View(func(m *state.Manager) error {
		evt, err := n.newTicketsEngine(m).Event(addr)
		out = evt
		return err
	})
	return out, err
}

// Ticket returns the ticket record of mint.
func (n *Node) Ticket(mint [20]byte) (*tickets.Ticket, error) {
	var out *tickets.Ticket
	err := n.ledger.View(func(m *state.Manager) error {
		ticket, err := n.newTicketsEngine(m).Ticket(mint)
		out = ticket
		return err
	})
	return out, err
}

// Custody returns the custody account stored at addr.
func (n *Node) Custody(addr [20]byte) (*assets.CustodyAccount, error) {
	var out *assets.CustodyAccount
	err := n.ledger.View(func(m *state.Manager) error {
		account, err := n.newAssetsEngine(m).Account(addr)
		out = account
		return err
	})
	return out, err
}

// Receipt returns the receipt committed at seq.
func (n *Node) Receipt(seq uint64) (*ledger.Receipt, error) {
	return n.ledger.Receipt(seq)
}
