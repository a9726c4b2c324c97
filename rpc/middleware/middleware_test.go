package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 1})
	var throttled []string
	limiter.OnThrottle = func(client string) { throttled = append(throttled, client) }
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if len(throttled) != 1 || throttled[0] != "192.0.2.1" {
		t.Fatalf("unexpected throttle callbacks: %v", throttled)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected request from %s to succeed, got %d", ip, res.Code)
		}
	}
}

func TestRateLimiterDisabledWithoutRate(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for i := 0; i < 10; i++ {
		if !limiter.Allow(req) {
			t.Fatalf("request %d throttled with limits disabled", i)
		}
	}
}

func TestAuthenticatorScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: "s3cret", Issuer: "nftd"}, nil)
	admin, err := auth.IssueToken("ops", time.Minute, ScopeAdmin)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	reader, err := auth.IssueToken("viewer", time.Minute, "read")
	if err != nil {
		t.Fatalf("issue read token: %v", err)
	}

	handler := auth.Middleware(ScopeAdmin)(okHandler())
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"admin", "Bearer " + admin, http.StatusOK},
		{"wrong scope", "Bearer " + reader, http.StatusForbidden},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"basic scheme", "Basic " + admin, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestAuthenticatorRejectsForeignIssuerAndExpiry(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: "s3cret", Issuer: "nftd", ClockSkew: time.Second}, nil)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "elsewhere", "scope": ScopeAdmin, "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expired, err := auth.IssueToken("ops", -time.Hour, ScopeAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, token := range []string{foreign, expired} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if err := auth.Authorize(req, ScopeAdmin); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	}
}

func TestAuthenticatorWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := auth.Authorize(req, ScopeAdmin); err != ErrAuthDisabled {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
}

func TestObservabilityCountsAndTagsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs := NewObservability(ObservabilityConfig{Registerer: registry}, nil)
	handler := obs.Middleware("jsonrpc")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) == "" {
			t.Errorf("request id missing from context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(HeaderRequestID); got != "req-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if got := testutil.ToFloat64(obs.requests.WithLabelValues("jsonrpc", http.MethodPost, "418")); got != 1 {
		t.Fatalf("expected one counted request, got %v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://tickets.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://tickets.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://tickets.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin must not be allowed")
	}
}
