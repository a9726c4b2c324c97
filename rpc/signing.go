package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nftickets/crypto"
)

var (
	errMissingSignature = errors.New("signature required")
	errSignerMismatch   = errors.New("signature does not match signer")
)

// Envelope carries the authorisation fields of every write method.
type Envelope struct {
	Signer    string `json:"signer"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// CanonicalPayload returns the bytes a signer signs for method: the method
// name and the parameter object without its signature, with keys sorted.
func CanonicalPayload(method string, params json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return nil, fmt.Errorf("params must be an object: %w", err)
	}
	delete(fields, "signature")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return append([]byte(method+":"), body...), nil
}

// SignParams signs params for method with key and returns the object with
// the signer, nonce and signature fields set.
func SignParams(key *crypto.PrivateKey, method string, nonce uint64, params map[string]interface{}) (json.RawMessage, error) {
	fields := make(map[string]interface{}, len(params)+3)
	for k, v := range params {
		fields[k] = v
	}
	fields["signer"] = key.Address().String()
	fields["nonce"] = nonce
	delete(fields, "signature")
	unsigned, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	payload, err := CanonicalPayload(method, unsigned)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(payload)
	if err != nil {
		return nil, err
	}
	fields["signature"] = "0x" + hex.EncodeToString(sig)
	return json.Marshal(fields)
}

// verifyEnvelope checks that the signature over the canonical payload was
// produced by the declared signer.
func verifyEnvelope(method string, raw json.RawMessage, env Envelope) ([20]byte, error) {
	signer, err := crypto.DecodeAddress(env.Signer)
	if err != nil {
		return [20]byte{}, fmt.Errorf("signer: %w", err)
	}
	sigHex := strings.TrimPrefix(strings.TrimSpace(env.Signature), "0x")
	if sigHex == "" {
		return [20]byte{}, errMissingSignature
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return [20]byte{}, fmt.Errorf("signature: %w", err)
	}
	payload, err := CanonicalPayload(method, raw)
	if err != nil {
		return [20]byte{}, err
	}
	recovered, err := crypto.RecoverAddress(payload, sig)
	if err != nil {
		return [20]byte{}, fmt.Errorf("signature: %w", err)
	}
	if recovered != signer {
		return [20]byte{}, errSignerMismatch
	}
	return signer, nil
}
