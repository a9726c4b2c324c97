package tickets

import (
	"strconv"

	"nftickets/core/types"
	"nftickets/crypto"
	"nftickets/native/fees"
)

const (
	EventTypeEventCreated  = "tickets.event_created"
	EventTypeTicketMinted  = "tickets.minted"
	EventTypeTicketScanned = "tickets.scanned"
)

func addrAttr(addr [20]byte) string { return crypto.Address(addr).String() }

func newEventCreatedEvent(addr [20]byte, e *Event) *types.Event {
	return &types.Event{Type: EventTypeEventCreated, Attributes: map[string]string{
		"event":    addrAttr(addr),
		"manager":  addrAttr(e.Manager),
		"platform": e.Platform,
		"name":     e.Name,
		"capacity": strconv.FormatUint(e.Capacity, 10),
		"price":    e.Price.String(),
	}}
}

func newTicketMintedEvent(event, mint, buyer [20]byte, index uint64, split fees.Split) *types.Event {
	return &types.Event{Type: EventTypeTicketMinted, Attributes: map[string]string{
		"event":    addrAttr(event),
		"asset":    addrAttr(mint),
		"buyer":    addrAttr(buyer),
		"index":    strconv.FormatUint(index, 10),
		"price":    split.Gross.String(),
		"fee":      split.Fee.String(),
		"proceeds": split.Net.String(),
	}}
}

func newTicketScannedEvent(t *Ticket) *types.Event {
	return &types.Event{Type: EventTypeTicketScanned, Attributes: map[string]string{
		"event": addrAttr(t.Event),
		"asset": addrAttr(t.Mint),
	}}
}
