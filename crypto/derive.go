package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seed components in a derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds each seed component.
	MaxSeedLength = 32

	programDerivedMarker = "nftickets/program-derived"
)

var (
	// ErrOnCurve is returned when a candidate digest is a valid secp256k1
	// x-coordinate, meaning a private key could exist for it.
	ErrOnCurve = errors.New("crypto: derived address lies on the curve")
	// ErrNoViableBump is returned when every bump yields an on-curve digest.
	ErrNoViableBump = errors.New("crypto: no viable bump for program address")
)

// CreateProgramAddress derives the address for the given seeds and bump. The
// digest must not be a secp256k1 x-coordinate so that no signing key can ever
// control the resulting address; only the program that knows the seeds can
// act on its behalf.
func CreateProgramAddress(seeds [][]byte, bump uint8) ([20]byte, error) {
	if len(seeds) > MaxSeeds {
		return [20]byte{}, fmt.Errorf("crypto: too many seeds (%d > %d)", len(seeds), MaxSeeds)
	}
	parts := make([][]byte, 0, len(seeds)+2)
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return [20]byte{}, fmt.Errorf("crypto: seed %d exceeds %d bytes", i, MaxSeedLength)
		}
		parts = append(parts, seed)
	}
	parts = append(parts, []byte{bump}, []byte(programDerivedMarker))
	digest := crypto.Keccak256(parts...)
	if isOnCurve(digest) {
		return [20]byte{}, ErrOnCurve
	}
	var addr [20]byte
	copy(addr[:], digest[len(digest)-20:])
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address together with the bump that produced it.
func FindProgramAddress(seeds ...[]byte) ([20]byte, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return [20]byte{}, 0, err
		}
	}
	return [20]byte{}, 0, ErrNoViableBump
}

// isOnCurve reports whether x is the x-coordinate of a point on secp256k1,
// i.e. whether x^3 + 7 is a quadratic residue modulo p.
func isOnCurve(digest []byte) bool {
	params := crypto.S256().Params()
	x := new(big.Int).SetBytes(digest)
	if x.Cmp(params.P) >= 0 {
		return false
	}
	rhs := new(big.Int).Exp(x, big.NewInt(3), params.P)
	rhs.Add(rhs, params.B)
	rhs.Mod(rhs, params.P)
	return new(big.Int).ModSqrt(rhs, params.P) != nil
}
