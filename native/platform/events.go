package platform

import (
	"math/big"
	"strconv"

	"nftickets/core/types"
	"nftickets/crypto"
)

const (
	EventTypeInitialized       = "platform.initialized"
	EventTypeFeeUpdated        = "platform.fee_updated"
	EventTypeTreasuryWithdrawn = "platform.treasury_withdrawn"
	EventTypeManagerRegistered = "platform.manager_registered"
)

func addrAttr(addr [20]byte) string { return crypto.Address(addr).String() }

func newInitializedEvent(addr [20]byte, p *Platform) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"platform": addrAttr(addr),
		"name":     p.Name,
		"manager":  addrAttr(p.Manager),
		"feeBps":   strconv.FormatUint(uint64(p.FeeBps), 10),
	}}
}

func newFeeUpdatedEvent(addr [20]byte, previous, current uint16) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"platform":       addrAttr(addr),
		"previousFeeBps": strconv.FormatUint(uint64(previous), 10),
		"feeBps":         strconv.FormatUint(uint64(current), 10),
	}}
}

func newTreasuryWithdrawnEvent(addr, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTreasuryWithdrawn, Attributes: map[string]string{
		"platform": addrAttr(addr),
		"to":       addrAttr(to),
		"amount":   amount.String(),
	}}
}

func newManagerRegisteredEvent(signer [20]byte) *types.Event {
	return &types.Event{Type: EventTypeManagerRegistered, Attributes: map[string]string{
		"manager": addrAttr(signer),
	}}
}
