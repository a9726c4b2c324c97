package rpc

import (
	"net/http"
	"strings"
)

type assetBalanceParams struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

type receiptParams struct {
	Seq uint64 `json:"seq"`
}

type historySalesParams struct {
	Asset string `json:"asset"`
	Limit int    `json:"limit"`
}

type faucetParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleAccountGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	account, err := s.node.Account(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, AccountResult{
		Address: addrString(addr),
		Nonce:   account.Nonce,
		Balance: amountString(account.Balance),
	})
}

func (s *Server) handleAssetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	mint, err := parseAddress("mint", params.Mint)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	amount, err := s.node.AssetBalance(owner, mint)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"owner":  addrString(owner),
		"mint":   addrString(mint),
		"amount": amount,
	})
}

func (s *Server) handleLedgerReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params receiptParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.Receipt(params.Seq)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) historyAvailable(w http.ResponseWriter, req *RPCRequest) bool {
	if s.history == nil {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "history index disabled", nil)
		return false
	}
	return true
}

func (s *Server) handleHistorySales(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.historyAvailable(w, req) {
		return
	}
	var params historySalesParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	asset := strings.TrimSpace(params.Asset)
	if asset != "" {
		if _, err := parseAddress("asset", asset); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	sales, err := s.history.Sales(r.Context(), asset, params.Limit)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, sales)
}

func (s *Server) handleHistoryVolume(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.historyAvailable(w, req) {
		return
	}
	totals, err := s.history.Volume(r.Context())
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"count":    totals.Count,
		"gross":    amountString(totals.Gross),
		"fees":     amountString(totals.Fee),
		"proceeds": amountString(totals.Net),
	})
}

func (s *Server) handleDevFaucet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params faucetParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.Faucet(r.Context(), addr, amount)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Events: receipt.Events})
}
