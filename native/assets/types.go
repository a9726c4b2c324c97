package assets

import (
	"encoding/binary"
	"fmt"
)

// Program is the record owner label for every asset record.
const Program = "assets"

const (
	mintSize    = 1 + 8 + 20
	accountSize = 20 + 20 + 8
)

// Mint describes an asset class. Tickets are mints with zero decimals and a
// supply of one.
type Mint struct {
	Decimals  uint8
	Supply    uint64
	Authority [20]byte
}

// CustodyAccount holds a quantity of one mint on behalf of Owner. Only the
// owner may move or close it.
type CustodyAccount struct {
	Mint   [20]byte
	Owner  [20]byte
	Amount uint64
}

func (m *Mint) encode() []byte {
	buf := make([]byte, mintSize)
	buf[0] = m.Decimals
	binary.BigEndian.PutUint64(buf[1:9], m.Supply)
	copy(buf[9:], m.Authority[:])
	return buf
}

func decodeMint(data []byte) (*Mint, error) {
	if len(data) != mintSize {
		return nil, fmt.Errorf("assets: malformed mint record")
	}
	m := &Mint{Decimals: data[0], Supply: binary.BigEndian.Uint64(data[1:9])}
	copy(m.Authority[:], data[9:])
	return m, nil
}

func (a *CustodyAccount) encode() []byte {
	buf := make([]byte, accountSize)
	copy(buf[0:20], a.Mint[:])
	copy(buf[20:40], a.Owner[:])
	binary.BigEndian.PutUint64(buf[40:], a.Amount)
	return buf
}

func decodeAccount(data []byte) (*CustodyAccount, error) {
	if len(data) != accountSize {
		return nil, fmt.Errorf("assets: malformed custody account record")
	}
	a := &CustodyAccount{Amount: binary.BigEndian.Uint64(data[40:])}
	copy(a.Mint[:], data[0:20])
	copy(a.Owner[:], data[20:40])
	return a, nil
}
