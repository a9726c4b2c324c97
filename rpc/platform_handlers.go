package rpc

import (
	"net/http"
)

type platformInitializeParams struct {
	Envelope
	Name   string `json:"name"`
	FeeBps uint16 `json:"feeBps"`
}

type platformFeeParams struct {
	Envelope
	FeeBps uint16 `json:"feeBps"`
}

type platformWithdrawParams struct {
	Envelope
	Amount string `json:"amount"`
}

type platformWriteResult struct {
	Platform PlatformResult `json:"platform"`
	WriteResult
}

func (s *Server) handlePlatformInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params platformInitializeParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	p, receipt, err := s.node.InitializePlatform(r.Context(), signer, nonce, params.Name, params.FeeBps)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result := platformResult(p)
	writeResult(w, req.ID, platformWriteResult{
		Platform:    result,
		WriteResult: WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Address: result.Address, Events: receipt.Events},
	})
}

func (s *Server) handlePlatformGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) > 0 {
		var params struct{}
		if err := decodeParams(req, &params); err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
	}
	p, err := s.node.Platform()
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result := platformResult(p)
	balance, err := s.node.TreasuryBalance()
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result.TreasuryBalance = amountString(balance)
	writeResult(w, req.ID, result)
}

func (s *Server) handlePlatformSetFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params platformFeeParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	p, receipt, err := s.node.UpdatePlatformFee(r.Context(), signer, nonce, params.FeeBps)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result := platformResult(p)
	writeResult(w, req.ID, platformWriteResult{
		Platform:    result,
		WriteResult: WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Address: result.Address, Events: receipt.Events},
	})
}

func (s *Server) handlePlatformWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params platformWithdrawParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.WithdrawTreasury(r.Context(), signer, nonce, amount)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Events: receipt.Events})
}

func (s *Server) handleManagerSetup(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params Envelope
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	receipt, err := s.node.SetupManager(r.Context(), signer, nonce)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Events: receipt.Events})
}
