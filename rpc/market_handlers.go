package rpc

import (
	"net/http"
)

type marketListParams struct {
	Envelope
	Asset string `json:"asset"`
	Price string `json:"price"`
}

type marketAssetParams struct {
	Envelope
	Asset string `json:"asset"`
}

type assetQueryParams struct {
	Asset string `json:"asset"`
}

type listingWriteResult struct {
	Listing ListingResult `json:"listing"`
	WriteResult
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	listing, receipt, err := s.node.ListTicket(r.Context(), signer, nonce, asset, price)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	result := listingResult(s.node.PlatformName(), listing)
	writeResult(w, req.ID, listingWriteResult{
		Listing: result,
		WriteResult: WriteResult{
			Seq:     receipt.Seq,
			Hash:    receipt.Hash,
			Address: result.Address,
			Events:  receipt.Events,
		},
	})
}

func (s *Server) handleMarketDelist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketAssetParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.DelistTicket(r.Context(), signer, nonce, asset)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Events: receipt.Events})
}

func (s *Server) handleMarketPurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketAssetParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	settlement, receipt, err := s.node.PurchaseTicket(r.Context(), signer, nonce, asset)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, SettlementResult{
		Listing:  listingResult(s.node.PlatformName(), settlement.Listing),
		Buyer:    addrString(settlement.Buyer),
		Fee:      amountString(settlement.Fee),
		Proceeds: amountString(settlement.Proceeds),
		Refund:   amountString(settlement.Refund),
		Seq:      receipt.Seq,
		Hash:     receipt.Hash,
	})
}

func (s *Server) handleMarketGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	listing, err := s.node.Listing(asset)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingResult(s.node.PlatformName(), listing))
}

func (s *Server) handleMarketQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	quote, err := s.node.Quote(asset)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, QuoteResult{
		Listing:  listingResult(s.node.PlatformName(), quote.Listing),
		FeeBps:   quote.FeeBps,
		Fee:      amountString(quote.Fee),
		Proceeds: amountString(quote.Proceeds),
	})
}
