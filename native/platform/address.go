package platform

import (
	"fmt"
	"strings"

	"nftickets/crypto"
)

// Address derives the registry address of the named platform.
func Address(name string) ([20]byte, uint8, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return [20]byte{}, 0, fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidName, MaxNameLength)
	}
	return crypto.FindProgramAddress([]byte("platform"), []byte(name))
}

// TreasuryAddress derives the fee treasury of a platform.
func TreasuryAddress(platform [20]byte) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress([]byte("treasury"), platform[:])
}

// RewardsAddress derives the rewards mint of a platform.
func RewardsAddress(platform [20]byte) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress([]byte("rewards"), platform[:])
}

// ManagerAddress derives the manager registration record of signer.
func ManagerAddress(signer [20]byte) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress([]byte("manager"), signer[:])
}
