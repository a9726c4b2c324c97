package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nftickets/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeInvalidParams  = -32021
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
	codeInternal       = -32025
	codeRejected       = -32026
	codeModulePaused   = -32027
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if detail, ok := e.Data.(string); ok && detail != "" {
		return e.Message + ": " + detail
	}
	return e.Message
}

// responseWriter records the JSON-RPC error code written for metrics.
type responseWriter struct {
	http.ResponseWriter
	code int
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if rw, ok := w.(*responseWriter); ok {
		rw.code = code
	}
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, detail string) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, core.ClassInvalidParams, detail)
}

// writeNodeError maps a node error onto its JSON-RPC code by taxonomy class.
func writeNodeError(w http.ResponseWriter, id interface{}, err error) {
	status, code := http.StatusInternalServerError, codeInternal
	class := core.ErrorClass(err)
	switch class {
	case core.ClassInvalidParams:
		status, code = http.StatusBadRequest, codeInvalidParams
	case core.ClassNotFound:
		status, code = http.StatusNotFound, codeNotFound
	case core.ClassForbidden:
		status, code = http.StatusForbidden, codeForbidden
	case core.ClassConflict:
		status, code = http.StatusConflict, codeConflict
	case core.ClassRejected:
		status, code = http.StatusUnprocessableEntity, codeRejected
	case core.ClassPaused:
		status, code = http.StatusServiceUnavailable, codeModulePaused
	default:
		class = "internal_error"
	}
	writeError(w, status, id, code, class, err.Error())
}

// decodeParams unmarshals the single parameter object of req into out.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	dec := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
