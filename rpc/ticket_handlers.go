package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"nftickets/native/tickets"
)

type eventCreateParams struct {
	Envelope
	Name         string `json:"name"`
	Category     string `json:"category"`
	Venue        string `json:"venue"`
	URI          string `json:"uri"`
	Date         int64  `json:"date"`
	Capacity     uint64 `json:"capacity"`
	Price        string `json:"price"`
	Transferable bool   `json:"transferable"`
}

type ticketMintParams struct {
	Envelope
	Event string `json:"event"`
}

type ticketScanParams struct {
	Envelope
	Mint string `json:"mint"`
}

type addressQueryParams struct {
	Address string `json:"address"`
}

type mintQueryParams struct {
	Mint string `json:"mint"`
}

func (s *Server) handleEventCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params eventCreateParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	price := big.NewInt(0)
	if trimmed := strings.TrimSpace(params.Price); trimmed != "" && trimmed != "0" {
		parsed, err := parseAmount("price", trimmed)
		if err != nil {
			writeInvalidParams(w, req.ID, err.Error())
			return
		}
		price = parsed
	}
	addr, receipt, err := s.node.CreateEvent(r.Context(), signer, nonce, tickets.CreateEventArgs{
		Name:         params.Name,
		Category:     params.Category,
		Venue:        params.Venue,
		URI:          params.URI,
		Date:         params.Date,
		Capacity:     params.Capacity,
		Price:        price,
		Transferable: params.Transferable,
	})
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Address: addrString(addr), Events: receipt.Events})
}

func (s *Server) handleEventGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	evt, err := s.node.Event(addr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, eventResult(addr, evt))
}

func (s *Server) handleTicketMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ticketMintParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	eventAddr, err := parseAddress("event", params.Event)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	mint, receipt, err := s.node.MintTicket(r.Context(), signer, nonce, eventAddr)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Address: addrString(mint), Events: receipt.Events})
}

func (s *Server) handleTicketScan(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ticketScanParams
	signer, nonce, ok := s.signed(w, req, &params)
	if !ok {
		return
	}
	mint, err := parseAddress("mint", params.Mint)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	receipt, err := s.node.ScanTicket(r.Context(), signer, nonce, mint)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, WriteResult{Seq: receipt.Seq, Hash: receipt.Hash, Events: receipt.Events})
}

func (s *Server) handleTicketGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	mint, err := parseAddress("mint", params.Mint)
	if err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return
	}
	ticket, err := s.node.Ticket(mint)
	if err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, TicketResult{
		Mint:    addrString(ticket.Mint),
		Event:   addrString(ticket.Event),
		Index:   ticket.Index,
		Scanned: ticket.Scanned,
	})
}
