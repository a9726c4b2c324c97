// Package rpc exposes the node over JSON-RPC 2.0 on HTTP, plus health,
// Prometheus metrics and a websocket stream of committed events.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftickets/core"
	"nftickets/observability"
	"nftickets/rpc/middleware"
	"nftickets/storage/history"
)

// Config tunes the server.
type Config struct {
	AuthSecret        string
	RequestsPerMinute float64
	Burst             int
	AllowedOrigins    []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
	// Registry receives HTTP metrics and backs /metrics. Nil uses the
	// process-wide default registry.
	Registry *prometheus.Registry
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type method struct {
	handle handlerFunc
	admin  bool
}

// Server serves the JSON-RPC API of a node.
type Server struct {
	node    *core.Node
	history *history.Store
	cfg     Config
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	methods map[string]method
	gather  prometheus.Gatherer
}

// NewServer wires the API of node. history may be nil, in which case the
// history methods report not found.
func NewServer(node *core.Node, store *history.Store, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "rpc"))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		registerer, gatherer = cfg.Registry, cfg.Registry
	}
	s := &Server{
		node:    node,
		history: store,
		cfg:     cfg,
		logger:  logger,
		auth:    middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: cfg.AuthSecret}, logger),
		limiter: middleware.NewRateLimiter(middleware.RateLimit{RequestsPerMinute: cfg.RequestsPerMinute, Burst: cfg.Burst}),
		obs: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "nftd",
			LogRequests: false,
			Registerer:  registerer,
		}, logger),
		gather: gatherer,
	}
	s.limiter.OnThrottle = func(string) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
	}
	s.methods = map[string]method{
		"market_list":         {handle: s.handleMarketList},
		"market_delist":       {handle: s.handleMarketDelist},
		"market_purchase":     {handle: s.handleMarketPurchase},
		"market_get":          {handle: s.handleMarketGet},
		"market_quote":        {handle: s.handleMarketQuote},
		"platform_initialize": {handle: s.handlePlatformInitialize},
		"platform_get":        {handle: s.handlePlatformGet},
		"platform_setFee":     {handle: s.handlePlatformSetFee, admin: true},
		"platform_withdraw":   {handle: s.handlePlatformWithdraw, admin: true},
		"manager_setup":       {handle: s.handleManagerSetup},
		"event_create":        {handle: s.handleEventCreate},
		"event_get":           {handle: s.handleEventGet},
		"ticket_mint":         {handle: s.handleTicketMint},
		"ticket_scan":         {handle: s.handleTicketScan},
		"ticket_get":          {handle: s.handleTicketGet},
		"account_get":         {handle: s.handleAccountGet},
		"asset_balance":       {handle: s.handleAssetBalance},
		"ledger_receipt":      {handle: s.handleLedgerReceipt},
		"history_sales":       {handle: s.handleHistorySales},
		"history_volume":      {handle: s.handleHistoryVolume},
		"dev_faucet":          {handle: s.handleDevFaucet, admin: true},
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	r.With(s.obs.Middleware("ws_events"), s.limiter.Middleware).Get("/ws/events", s.handleEventsWS)
	r.With(s.obs.Middleware("jsonrpc")).Post("/", s.handle)
	return otelhttp.NewHandler(r, "nftd.http")
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	readHeader := s.cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeader,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"platform": s.node.PlatformName(),
		"height":   s.node.Height(),
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	rw := &responseWriter{ResponseWriter: w}
	if !s.limiter.Allow(r) {
		writeError(rw, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(rw, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(rw, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(rw, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(rw, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(rw, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	module, _, _ := strings.Cut(req.Method, "_")
	defer func() {
		observability.ModuleMetrics().Observe(module, req.Method, rw.code, time.Since(start))
		if rw.code != 0 {
			s.logger.Info("rpc request failed",
				slog.String("method", req.Method),
				slog.String("requestid", middleware.RequestID(r.Context())),
				slog.Int("code", rw.code))
		}
	}()

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(rw, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if m.admin {
		if err := s.auth.Authorize(r, middleware.ScopeAdmin); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, middleware.ErrInsufficientScope) {
				status = http.StatusForbidden
			}
			writeError(rw, status, req.ID, codeUnauthorized, "unauthorized", err.Error())
			return
		}
	}
	m.handle(rw, r, req)
}

// signed decodes the parameter object of a write method into out and returns
// the verified signer and nonce.
func (s *Server) signed(w http.ResponseWriter, req *RPCRequest, out interface{}) ([20]byte, uint64, bool) {
	if err := decodeParams(req, out); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return [20]byte{}, 0, false
	}
	var env Envelope
	if err := json.Unmarshal(req.Params[0], &env); err != nil {
		writeInvalidParams(w, req.ID, err.Error())
		return [20]byte{}, 0, false
	}
	signer, err := verifyEnvelope(req.Method, req.Params[0], env)
	if err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		return [20]byte{}, 0, false
	}
	return signer, env.Nonce, true
}
