package tickets

import (
	"encoding/binary"

	"nftickets/crypto"
)

// EventAddress derives the record address of an event.
func EventAddress(manager [20]byte, name string) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress([]byte("event"), manager[:], []byte(name))
}

// MintAddress derives the asset id of the index-th ticket of an event.
func MintAddress(event [20]byte, index uint64) ([20]byte, uint8, error) {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return crypto.FindProgramAddress([]byte("ticket-mint"), event[:], idx[:])
}

// TicketAddress derives the ticket record address of an asset.
func TicketAddress(mint [20]byte) ([20]byte, uint8, error) {
	return crypto.FindProgramAddress([]byte("ticket"), mint[:])
}
