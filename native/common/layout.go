package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Record layouts are fixed-size so a record never changes size after it has
// been allocated. Strings occupy a length byte followed by a zero-padded
// region of capacity bytes; amounts occupy 32 big-endian bytes.

// StringSize is the encoded size of a string field with the given capacity.
func StringSize(capacity int) int { return 1 + capacity }

// PutString writes s into buf at off and returns the next offset.
func PutString(buf []byte, off int, s string, capacity int) (int, error) {
	if len(s) > capacity || capacity > 255 {
		return off, fmt.Errorf("string %q exceeds %d bytes", s, capacity)
	}
	buf[off] = byte(len(s))
	copy(buf[off+1:off+1+capacity], s)
	return off + 1 + capacity, nil
}

// ReadString reads a string written by PutString.
func ReadString(buf []byte, off int, capacity int) (string, int, error) {
	n := int(buf[off])
	if n > capacity {
		return "", off, fmt.Errorf("corrupt string field")
	}
	return string(buf[off+1 : off+1+n]), off + 1 + capacity, nil
}

// PutAmount writes a non-negative 256-bit amount at off.
func PutAmount(buf []byte, off int, amount *big.Int) (int, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return off, fmt.Errorf("negative amount")
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return off, fmt.Errorf("amount exceeds 256 bits")
	}
	word := value.Bytes32()
	copy(buf[off:off+32], word[:])
	return off + 32, nil
}

// ReadAmount reads an amount written by PutAmount.
func ReadAmount(buf []byte, off int) (*big.Int, int) {
	return new(uint256.Int).SetBytes32(buf[off : off+32]).ToBig(), off + 32
}

// PutAddress writes addr at off.
func PutAddress(buf []byte, off int, addr [20]byte) int {
	copy(buf[off:off+20], addr[:])
	return off + 20
}

// ReadAddress reads an address at off.
func ReadAddress(buf []byte, off int) ([20]byte, int) {
	var addr [20]byte
	copy(addr[:], buf[off:off+20])
	return addr, off + 20
}

// PutUint64 writes v big-endian at off.
func PutUint64(buf []byte, off int, v uint64) int {
	binary.BigEndian.PutUint64(buf[off:off+8], v)
	return off + 8
}

// ReadUint64 reads a big-endian uint64 at off.
func ReadUint64(buf []byte, off int) (uint64, int) {
	return binary.BigEndian.Uint64(buf[off : off+8]), off + 8
}
