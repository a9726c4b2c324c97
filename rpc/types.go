package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"nftickets/core/types"
	"nftickets/crypto"
	"nftickets/native/market"
	"nftickets/native/platform"
	"nftickets/native/tickets"
)

// ListingResult describes an active listing.
type ListingResult struct {
	Address string `json:"address"`
	Seller  string `json:"seller"`
	Asset   string `json:"asset"`
	Price   string `json:"price"`
}

// QuoteResult previews a purchase at the current fee rate.
type QuoteResult struct {
	Listing  ListingResult `json:"listing"`
	FeeBps   uint16        `json:"feeBps"`
	Fee      string        `json:"fee"`
	Proceeds string        `json:"proceeds"`
}

// SettlementResult reports the amounts moved by a purchase.
type SettlementResult struct {
	Listing  ListingResult `json:"listing"`
	Buyer    string        `json:"buyer"`
	Fee      string        `json:"fee"`
	Proceeds string        `json:"proceeds"`
	Refund   string        `json:"refund"`
	Seq      uint64        `json:"seq"`
	Hash     string        `json:"hash"`
}

// PlatformResult describes the marketplace configuration.
type PlatformResult struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Manager         string `json:"manager"`
	FeeBps          uint16 `json:"feeBps"`
	Treasury        string `json:"treasury"`
	TreasuryBalance string `json:"treasuryBalance,omitempty"`
}

// EventResult describes a ticketed event.
type EventResult struct {
	Address      string `json:"address"`
	Manager      string `json:"manager"`
	Platform     string `json:"platform"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Venue        string `json:"venue"`
	URI          string `json:"uri,omitempty"`
	Date         int64  `json:"date"`
	Capacity     uint64 `json:"capacity"`
	Sold         uint64 `json:"sold"`
	Price        string `json:"price"`
	Transferable bool   `json:"transferable"`
}

// TicketResult describes a minted ticket.
type TicketResult struct {
	Mint    string `json:"mint"`
	Event   string `json:"event"`
	Index   uint64 `json:"index"`
	Scanned bool   `json:"scanned"`
}

// AccountResult describes a payment account.
type AccountResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

// WriteResult acknowledges a committed write.
type WriteResult struct {
	Seq     uint64         `json:"seq"`
	Hash    string         `json:"hash"`
	Address string         `json:"address,omitempty"`
	Events  []*types.Event `json:"events"`
}

func addrString(addr [20]byte) string {
	return crypto.Address(addr).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseAmount accepts a positive base-10 integer.
func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be positive", field)
	}
	return amount, nil
}

func listingResult(platformName string, l *market.Listing) ListingResult {
	out := ListingResult{
		Seller: addrString(l.Seller),
		Asset:  addrString(l.AssetID),
		Price:  amountString(l.Price),
	}
	if platformAddr, _, err := platform.Address(platformName); err == nil {
		if addr, _, err := market.ListingAddress(platformAddr, l.AssetID); err == nil {
			out.Address = addrString(addr)
		}
	}
	return out
}

func platformResult(p *platform.Platform) PlatformResult {
	out := PlatformResult{
		Name:    p.Name,
		Manager: addrString(p.Manager),
		FeeBps:  p.FeeBps,
	}
	if addr, _, err := platform.Address(p.Name); err == nil {
		out.Address = addrString(addr)
		if treasury, _, err := platform.TreasuryAddress(addr); err == nil {
			out.Treasury = addrString(treasury)
		}
	}
	return out
}

func eventResult(addr [20]byte, e *tickets.Event) EventResult {
	return EventResult{
		Address:      addrString(addr),
		Manager:      addrString(e.Manager),
		Platform:     e.Platform,
		Name:         e.Name,
		Category:     e.Category,
		Venue:        e.Venue,
		URI:          e.URI,
		Date:         e.Date,
		Capacity:     e.Capacity,
		Sold:         e.Sold,
		Price:        amountString(e.Price),
		Transferable: e.Transferable,
	}
}
