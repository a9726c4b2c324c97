package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"nftickets/core"
	"nftickets/crypto"
	"nftickets/rpc/middleware"
	"nftickets/storage"
)

const testPlatform = "NF-Tickets"

type testEnv struct {
	t      *testing.T
	server *Server
	http   *httptest.Server
	client *Client
	admin  *Client
	nonces map[crypto.Address]uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), core.Options{PlatformName: testPlatform, EnableFaucet: true})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	srv := NewServer(node, nil, Config{AuthSecret: "rpc-test-secret", Registry: prometheus.NewRegistry()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	token, err := srv.auth.IssueToken("ops", time.Minute, middleware.ScopeAdmin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &testEnv{
		t:      t,
		server: srv,
		http:   ts,
		client: NewClient(ts.URL, ""),
		admin:  NewClient(ts.URL, token),
		nonces: make(map[crypto.Address]uint64),
	}
}

func (e *testEnv) newKey(funds string) *crypto.PrivateKey {
	e.t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		e.t.Fatalf("generate key: %v", err)
	}
	if funds != "" {
		e.mustCall(e.admin, "dev_faucet", map[string]interface{}{"address": key.Address().String(), "amount": funds}, nil)
	}
	return key
}

func (e *testEnv) mustCall(c *Client, method string, params interface{}, out interface{}) {
	e.t.Helper()
	raw, err := c.Call(context.Background(), method, params)
	if err != nil {
		e.t.Fatalf("%s: %v", method, err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("%s: decode result: %v", method, err)
		}
	}
}

// signedCall signs params with key at its next nonce. The nonce only
// advances when the call succeeds.
func (e *testEnv) signedCall(c *Client, key *crypto.PrivateKey, method string, params map[string]interface{}) (json.RawMessage, error) {
	e.t.Helper()
	nonce := e.nonces[key.Address()]
	body, err := SignParams(key, method, nonce, params)
	if err != nil {
		e.t.Fatalf("sign %s: %v", method, err)
	}
	raw, err := c.Call(context.Background(), method, body)
	if err == nil {
		e.nonces[key.Address()] = nonce + 1
	}
	return raw, err
}

func (e *testEnv) mustSigned(c *Client, key *crypto.PrivateKey, method string, params map[string]interface{}, out interface{}) {
	e.t.Helper()
	raw, err := e.signedCall(c, key, method, params)
	if err != nil {
		e.t.Fatalf("%s: %v", method, err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("%s: decode result: %v", method, err)
		}
	}
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPC error, got %v", err)
	}
	return rpcErr.Code
}

// setupTicket initialises the platform and returns the operator key and a
// seller holding one freshly minted ticket.
func (e *testEnv) setupTicket() (operator, seller *crypto.PrivateKey, mint string) {
	e.t.Helper()
	operator = e.newKey("1000000000000")
	organiser := e.newKey("1000000000000")
	seller = e.newKey("1000000000000")

	e.mustSigned(e.client, operator, "platform_initialize", map[string]interface{}{"name": testPlatform, "feeBps": 500}, nil)
	e.mustSigned(e.client, organiser, "manager_setup", map[string]interface{}{}, nil)
	var created WriteResult
	e.mustSigned(e.client, organiser, "event_create", map[string]interface{}{
		"name":         "Opening Night",
		"category":     "music",
		"venue":        "Hall A",
		"date":         1_900_000_000,
		"capacity":     10,
		"price":        "200",
		"transferable": true,
	}, &created)
	if created.Address == "" {
		e.t.Fatalf("event address missing")
	}
	var minted WriteResult
	e.mustSigned(e.client, seller, "ticket_mint", map[string]interface{}{"event": created.Address}, &minted)
	return operator, seller, minted.Address
}

func TestResaleFlowOverRPC(t *testing.T) {
	env := newTestEnv(t)
	_, seller, mint := env.setupTicket()
	buyer := env.newKey("1000000000000")

	var listed listingWriteResult
	env.mustSigned(env.client, seller, "market_list", map[string]interface{}{"asset": mint, "price": "1000"}, &listed)
	if listed.Listing.Price != "1000" || listed.Listing.Seller != seller.Address().String() {
		t.Fatalf("unexpected listing: %+v", listed.Listing)
	}
	if listed.Address == "" || listed.Address != listed.Listing.Address {
		t.Fatalf("listing address not reported: %+v", listed)
	}

	var quote QuoteResult
	env.mustCall(env.client, "market_quote", map[string]interface{}{"asset": mint}, &quote)
	if quote.FeeBps != 500 || quote.Fee != "50" || quote.Proceeds != "950" {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	var settlement SettlementResult
	env.mustSigned(env.client, buyer, "market_purchase", map[string]interface{}{"asset": mint}, &settlement)
	if settlement.Fee != "50" || settlement.Proceeds != "950" {
		t.Fatalf("unexpected settlement: %+v", settlement)
	}
	if settlement.Buyer != buyer.Address().String() {
		t.Fatalf("buyer mismatch: %s", settlement.Buyer)
	}

	var balance struct {
		Amount uint64 `json:"amount"`
	}
	env.mustCall(env.client, "asset_balance", map[string]interface{}{"owner": buyer.Address().String(), "mint": mint}, &balance)
	if balance.Amount != 1 {
		t.Fatalf("buyer should hold the ticket, got %d", balance.Amount)
	}

	_, err := env.client.Call(context.Background(), "market_get", map[string]interface{}{"asset": mint})
	if code := rpcCode(t, err); code != codeForbidden {
		t.Fatalf("settled listing lookup: expected %d, got %d", codeForbidden, code)
	}

	var receipt struct {
		Seq uint64 `json:"seq"`
		Op  string `json:"op"`
	}
	env.mustCall(env.client, "ledger_receipt", map[string]interface{}{"seq": settlement.Seq}, &receipt)
	if receipt.Op != "market.purchase" {
		t.Fatalf("unexpected receipt op %q", receipt.Op)
	}
}

func TestSignatureMustMatchSigner(t *testing.T) {
	env := newTestEnv(t)
	_, seller, mint := env.setupTicket()
	imposter := env.newKey("")

	body, err := SignParams(imposter, "market_list", env.nonces[seller.Address()], map[string]interface{}{"asset": mint, "price": "1000"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	fields["signer"] = seller.Address().String()

	_, err = env.client.Call(context.Background(), "market_list", fields)
	if code := rpcCode(t, err); code != codeUnauthorized {
		t.Fatalf("expected %d, got %d", codeUnauthorized, code)
	}

	fields["price"] = "1"
	_, err = env.client.Call(context.Background(), "market_list", fields)
	if code := rpcCode(t, err); code != codeUnauthorized {
		t.Fatalf("tampered params: expected %d, got %d", codeUnauthorized, code)
	}
}

func TestNodeErrorsMapToCodes(t *testing.T) {
	env := newTestEnv(t)
	operator, seller, mint := env.setupTicket()
	stranger := env.newKey("1000000000000")

	env.mustSigned(env.client, seller, "market_list", map[string]interface{}{"asset": mint, "price": "1000"}, nil)

	_, err := env.signedCall(env.client, seller, "market_list", map[string]interface{}{"asset": mint, "price": "1000"})
	if code := rpcCode(t, err); code != codeConflict {
		t.Fatalf("relist: expected %d, got %d", codeConflict, code)
	}
	_, err = env.signedCall(env.client, stranger, "market_delist", map[string]interface{}{"asset": mint})
	if code := rpcCode(t, err); code != codeForbidden {
		t.Fatalf("foreign delist: expected %d, got %d", codeForbidden, code)
	}
	poor := env.newKey("10")
	_, err = env.signedCall(env.client, poor, "market_purchase", map[string]interface{}{"asset": mint})
	if code := rpcCode(t, err); code != codeRejected {
		t.Fatalf("underfunded purchase: expected %d, got %d", codeRejected, code)
	}
	_, err = env.signedCall(env.client, seller, "market_list", map[string]interface{}{"asset": "not-an-address", "price": "1000"})
	if code := rpcCode(t, err); code != codeInvalidParams {
		t.Fatalf("bad asset: expected %d, got %d", codeInvalidParams, code)
	}
	_, err = env.client.Call(context.Background(), "ticket_get", map[string]interface{}{"mint": stranger.Address().String()})
	if code := rpcCode(t, err); code != codeNotFound {
		t.Fatalf("missing ticket: expected %d, got %d", codeNotFound, code)
	}

	// A replayed nonce is a conflict.
	env.nonces[operator.Address()]--
	_, err = env.signedCall(env.client, operator, "manager_setup", map[string]interface{}{})
	if code := rpcCode(t, err); code != codeConflict {
		t.Fatalf("stale nonce: expected %d, got %d", codeConflict, code)
	}
}

func TestAdminMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	operator, _, _ := env.setupTicket()

	_, err := env.client.Call(context.Background(), "dev_faucet", map[string]interface{}{"address": operator.Address().String(), "amount": "5"})
	if code := rpcCode(t, err); code != codeUnauthorized {
		t.Fatalf("faucet without token: expected %d, got %d", codeUnauthorized, code)
	}
	_, err = env.signedCall(env.client, operator, "platform_setFee", map[string]interface{}{"feeBps": 250})
	if code := rpcCode(t, err); code != codeUnauthorized {
		t.Fatalf("setFee without token: expected %d, got %d", codeUnauthorized, code)
	}

	var updated platformWriteResult
	env.mustSigned(env.admin, operator, "platform_setFee", map[string]interface{}{"feeBps": 250}, &updated)
	if updated.Platform.FeeBps != 250 {
		t.Fatalf("fee not updated: %+v", updated.Platform)
	}
	var current PlatformResult
	env.mustCall(env.client, "platform_get", nil, &current)
	if current.FeeBps != 250 || current.Manager != operator.Address().String() {
		t.Fatalf("unexpected platform: %+v", current)
	}
	// Mint fee from setup: 5% of 200.
	if current.TreasuryBalance != "10" {
		t.Fatalf("unexpected treasury balance %s", current.TreasuryBalance)
	}
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{name: "empty", body: "", status: http.StatusBadRequest, code: codeInvalidRequest},
		{name: "not json", body: "{", status: http.StatusBadRequest, code: codeParseError},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"nope_nope","params":[]}`, status: http.StatusNotFound, code: codeMethodNotFound},
		{name: "unknown field", body: `{"jsonrpc":"2.0","id":1,"method":"market_get","params":[{"asset":"x","extra":1}]}`, status: http.StatusBadRequest, code: codeInvalidParams},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"account_get","params":[]}`, status: http.StatusBadRequest, code: codeInvalidParams},
		{name: "history disabled", body: `{"jsonrpc":"2.0","id":1,"method":"history_sales","params":[]}`, status: http.StatusNotFound, code: codeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(env.http.URL, "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			var out RPCResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Error == nil || out.Error.Code != tc.code {
				t.Fatalf("expected code %d, got %+v", tc.code, out.Error)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["platform"] != testPlatform {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestCanonicalPayloadIgnoresKeyOrderAndSignature(t *testing.T) {
	a, err := CanonicalPayload("market_list", json.RawMessage(`{"price":"5","asset":"x","signature":"0xaa"}`))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	b, err := CanonicalPayload("market_list", json.RawMessage(`{"asset":"x", "price":"5"}`))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("payloads differ: %s vs %s", a, b)
	}
	if string(a) != `market_list:{"asset":"x","price":"5"}` {
		t.Fatalf("unexpected payload %s", a)
	}
	if _, err := CanonicalPayload("market_list", json.RawMessage(`[1]`)); err == nil {
		t.Fatalf("expected error for non-object params")
	}
}

func TestRateLimitedRequestsGetJSONRPCError(t *testing.T) {
	node, err := core.NewNode(storage.NewMemDB(), core.Options{PlatformName: testPlatform})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	srv := NewServer(node, nil, Config{RequestsPerMinute: 1, Burst: 1, Registry: prometheus.NewRegistry()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := NewClient(ts.URL, "")

	if _, err := client.Call(context.Background(), "platform_get", nil); rpcCode(t, err) != codeNotFound {
		t.Fatalf("first call should reach the node, got %v", err)
	}
	_, err = client.Call(context.Background(), "platform_get", nil)
	if code := rpcCode(t, err); code != codeRateLimited {
		t.Fatalf("expected %d, got %d", codeRateLimited, code)
	}
}
