package platform

import (
	"encoding/binary"
	"fmt"

	"nftickets/native/common"
)

// Program is the record owner label for platform records.
const Program = "platform"

// MaxNameLength bounds platform names.
const MaxNameLength = 32

// RewardsDecimals is the precision of the platform rewards mint.
const RewardsDecimals = 6

var (
	platformSize = common.StringSize(MaxNameLength) + 20 + 2 + 3
	managerSize  = 20 + 1
)

// Platform is the singleton registry entry for a named marketplace.
type Platform struct {
	Name         string
	Manager      [20]byte
	FeeBps       uint16
	Bump         uint8
	TreasuryBump uint8
	RewardsBump  uint8
}

// Clone returns a copy of the platform.
func (p *Platform) Clone() *Platform {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Manager is the registration record of an account allowed to organise
// events.
type Manager struct {
	Signer [20]byte
	Bump   uint8
}

func (p *Platform) encode() ([]byte, error) {
	buf := make([]byte, platformSize)
	off, err := common.PutString(buf, 0, p.Name, MaxNameLength)
	if err != nil {
		return nil, err
	}
	off = common.PutAddress(buf, off, p.Manager)
	binary.BigEndian.PutUint16(buf[off:off+2], p.FeeBps)
	off += 2
	buf[off] = p.Bump
	buf[off+1] = p.TreasuryBump
	buf[off+2] = p.RewardsBump
	return buf, nil
}

func decodePlatform(data []byte) (*Platform, error) {
	if len(data) != platformSize {
		return nil, fmt.Errorf("platform: malformed record")
	}
	name, off, err := common.ReadString(data, 0, MaxNameLength)
	if err != nil {
		return nil, err
	}
	p := &Platform{Name: name}
	p.Manager, off = common.ReadAddress(data, off)
	p.FeeBps = binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	p.Bump, p.TreasuryBump, p.RewardsBump = data[off], data[off+1], data[off+2]
	return p, nil
}

func (m *Manager) encode() []byte {
	buf := make([]byte, managerSize)
	off := common.PutAddress(buf, 0, m.Signer)
	buf[off] = m.Bump
	return buf
}

func decodeManager(data []byte) (*Manager, error) {
	if len(data) != managerSize {
		return nil, fmt.Errorf("platform: malformed manager record")
	}
	m := &Manager{}
	var off int
	m.Signer, off = common.ReadAddress(data, 0)
	m.Bump = data[off]
	return m, nil
}
