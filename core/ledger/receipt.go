package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"nftickets/core/types"
	"nftickets/crypto"
	"nftickets/storage"
)

var (
	txLogPrefix = []byte("txlog/")
	headKey     = []byte("ledger/head")
)

// ErrReceiptNotFound is returned when no receipt exists for a sequence number.
var ErrReceiptNotFound = errors.New("ledger: receipt not found")

// Receipt records a committed operation.
type Receipt struct {
	Seq       uint64         `json:"seq"`
	Op        string         `json:"op"`
	Signer    string         `json:"signer,omitempty"`
	Nonce     uint64         `json:"nonce"`
	Hash      string         `json:"hash"`
	Events    []*types.Event `json:"events"`
	Timestamp int64          `json:"timestamp"`
}

func receiptKey(seq uint64) []byte {
	key := make([]byte, len(txLogPrefix)+8)
	copy(key, txLogPrefix)
	binary.BigEndian.PutUint64(key[len(txLogPrefix):], seq)
	return key
}

func encodeSeq(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}

func signerString(signer [20]byte) string {
	if signer == ([20]byte{}) {
		return ""
	}
	return crypto.Address(signer).String()
}

func hashString(root [32]byte) string {
	return "0x" + hex.EncodeToString(root[:])
}

func loadHead(db storage.Database) (uint64, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("ledger: corrupt head record")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func loadReceipt(db storage.Database, seq uint64) (*Receipt, error) {
	raw, err := db.Get(receiptKey(seq))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	receipt := new(Receipt)
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, fmt.Errorf("ledger: decode receipt: %w", err)
	}
	return receipt, nil
}
