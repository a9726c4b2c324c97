package market

import (
	"math/big"

	"nftickets/core/types"
	"nftickets/crypto"
)

const (
	EventTypeListed   = "market.listed"
	EventTypeDelisted = "market.delisted"
	EventTypeSold     = "market.sold"
)

func addrAttr(addr [20]byte) string { return crypto.Address(addr).String() }

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewListedEvent returns the payload emitted when an asset is listed.
func NewListedEvent(platform, listingAddr [20]byte, l *Listing) *types.Event {
	return &types.Event{Type: EventTypeListed, Attributes: map[string]string{
		"platform": addrAttr(platform),
		"listing":  addrAttr(listingAddr),
		"asset":    addrAttr(l.AssetID),
		"seller":   addrAttr(l.Seller),
		"price":    amountAttr(l.Price),
	}}
}

// NewDelistedEvent returns the payload emitted when a seller withdraws a
// listing.
func NewDelistedEvent(platform, listingAddr [20]byte, l *Listing, refund *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDelisted, Attributes: map[string]string{
		"platform": addrAttr(platform),
		"listing":  addrAttr(listingAddr),
		"asset":    addrAttr(l.AssetID),
		"seller":   addrAttr(l.Seller),
		"price":    amountAttr(l.Price),
		"refund":   amountAttr(refund),
	}}
}

// NewSoldEvent returns the payload emitted when a listing settles.
func NewSoldEvent(platform, listingAddr, buyer [20]byte, l *Listing, fee, proceeds, refund *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSold, Attributes: map[string]string{
		"platform": addrAttr(platform),
		"listing":  addrAttr(listingAddr),
		"asset":    addrAttr(l.AssetID),
		"seller":   addrAttr(l.Seller),
		"buyer":    addrAttr(buyer),
		"price":    amountAttr(l.Price),
		"fee":      amountAttr(fee),
		"proceeds": amountAttr(proceeds),
		"refund":   amountAttr(refund),
	}}
}
