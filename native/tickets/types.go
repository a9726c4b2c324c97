package tickets

import (
	"fmt"
	"math/big"

	"nftickets/native/common"
)

// Program is the record owner label for event and ticket records.
const Program = "tickets"

const (
	MaxNameLength     = 32
	MaxCategoryLength = 16
	MaxVenueLength    = 32
	MaxURILength      = 128
)

var (
	eventSize = 20 + common.StringSize(32) + common.StringSize(MaxNameLength) +
		common.StringSize(MaxCategoryLength) + common.StringSize(MaxVenueLength) +
		common.StringSize(MaxURILength) + 8 + 8 + 8 + 32 + 1
	ticketSize = 20 + 20 + 8 + 1
)

// Event is an organised event whose tickets are issued as single-unit assets.
type Event struct {
	Manager      [20]byte
	Platform     string
	Name         string
	Category     string
	Venue        string
	URI          string
	Date         int64
	Capacity     uint64
	Sold         uint64
	Price        *big.Int
	Transferable bool
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Price != nil {
		clone.Price = new(big.Int).Set(e.Price)
	}
	return &clone
}

// Ticket links an issued asset to its event and tracks check-in.
type Ticket struct {
	Event   [20]byte
	Mint    [20]byte
	Index   uint64
	Scanned bool
}

func (e *Event) encode() ([]byte, error) {
	buf := make([]byte, eventSize)
	off := common.PutAddress(buf, 0, e.Manager)
	var err error
	fields := []struct {
		value    string
		capacity int
	}{
		{e.Platform, 32},
		{e.Name, MaxNameLength},
		{e.Category, MaxCategoryLength},
		{e.Venue, MaxVenueLength},
		{e.URI, MaxURILength},
	}
	for _, field := range fields {
		if off, err = common.PutString(buf, off, field.value, field.capacity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	}
	off = common.PutUint64(buf, off, uint64(e.Date))
	off = common.PutUint64(buf, off, e.Capacity)
	off = common.PutUint64(buf, off, e.Sold)
	if off, err = common.PutAmount(buf, off, e.Price); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.Transferable {
		buf[off] = 1
	}
	return buf, nil
}

func decodeEvent(data []byte) (*Event, error) {
	if len(data) != eventSize {
		return nil, fmt.Errorf("tickets: malformed event record")
	}
	e := &Event{}
	off := 0
	e.Manager, off = common.ReadAddress(data, off)
	targets := []struct {
		dst      *string
		capacity int
	}{
		{&e.Platform, 32},
		{&e.Name, MaxNameLength},
		{&e.Category, MaxCategoryLength},
		{&e.Venue, MaxVenueLength},
		{&e.URI, MaxURILength},
	}
	for _, target := range targets {
		value, next, err := common.ReadString(data, off, target.capacity)
		if err != nil {
			return nil, err
		}
		*target.dst = value
		off = next
	}
	var date uint64
	date, off = common.ReadUint64(data, off)
	e.Date = int64(date)
	e.Capacity, off = common.ReadUint64(data, off)
	e.Sold, off = common.ReadUint64(data, off)
	e.Price, off = common.ReadAmount(data, off)
	e.Transferable = data[off] == 1
	return e, nil
}

func (t *Ticket) encode() []byte {
	buf := make([]byte, ticketSize)
	off := common.PutAddress(buf, 0, t.Event)
	off = common.PutAddress(buf, off, t.Mint)
	off = common.PutUint64(buf, off, t.Index)
	if t.Scanned {
		buf[off] = 1
	}
	return buf
}

func decodeTicket(data []byte) (*Ticket, error) {
	if len(data) != ticketSize {
		return nil, fmt.Errorf("tickets: malformed ticket record")
	}
	t := &Ticket{}
	off := 0
	t.Event, off = common.ReadAddress(data, off)
	t.Mint, off = common.ReadAddress(data, off)
	t.Index, off = common.ReadUint64(data, off)
	t.Scanned = data[off] == 1
	return t, nil
}
