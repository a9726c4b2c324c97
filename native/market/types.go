package market

import (
	"fmt"
	"math/big"

	"nftickets/crypto"
	"nftickets/native/common"
)

// Program is the record owner label for listing records.
const Program = "market"

const listingSize = 20 + 20 + 32 + 1

// Listing is a single asset offered for resale at a fixed price. It is never
// modified after creation.
type Listing struct {
	Seller  [20]byte
	AssetID [20]byte
	Price   *big.Int
	Bump    uint8
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	}
	return &clone
}

// Quote previews the settlement of a listing at the current fee rate.
type Quote struct {
	Listing  *Listing
	FeeBps   uint16
	Fee      *big.Int
	Proceeds *big.Int
}

// ListingAddress derives the listing address of asset under platform. The
// address doubles as the one-listing-per-asset lock.
func ListingAddress(platform, asset [20]byte) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress(platform[:], asset[:])
}

func (l *Listing) encode() ([]byte, error) {
	buf := make([]byte, listingSize)
	off := common.PutAddress(buf, 0, l.Seller)
	off = common.PutAddress(buf, off, l.AssetID)
	off, err := common.PutAmount(buf, off, l.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	buf[off] = l.Bump
	return buf, nil
}

func decodeListing(data []byte) (*Listing, error) {
	if len(data) != listingSize {
		return nil, fmt.Errorf("market: malformed listing record")
	}
	l := &Listing{}
	off := 0
	l.Seller, off = common.ReadAddress(data, off)
	l.AssetID, off = common.ReadAddress(data, off)
	l.Price, off = common.ReadAmount(data, off)
	l.Bump = data[off]
	return l, nil
}
