package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	cfg := RateLimitInfo{WindowSeconds: 60, MaxRequests: 60, Burst: 2}
	mw := RateLimitMiddleware(cfg, func(r *http.Request) string { return "tenant-a" })

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var lastCode int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversations", nil))
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected the 3rd request over a burst of 2 to be rate limited, got %d", lastCode)
	}
}

func TestRateLimitMiddlewareExemptsEmptyKey(t *testing.T) {
	cfg := RateLimitInfo{WindowSeconds: 60, MaxRequests: 1, Burst: 1}
	mw := RateLimitMiddleware(cfg, func(r *http.Request) string { return "" })

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/webhooks/twilio/unknown", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected unresolved-key requests to bypass rate limiting, got %d", i, rec.Code)
		}
	}
}

func TestRateLimitMiddlewareIsolatesKeys(t *testing.T) {
	cfg := RateLimitInfo{WindowSeconds: 60, MaxRequests: 60, Burst: 1}
	var key string
	mw := RateLimitMiddleware(cfg, func(r *http.Request) string { return key })

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	key = "tenant-a"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("tenant-a first request: expected 200, got %d", rec.Code)
	}

	key = "tenant-b"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("tenant-b should have its own untouched bucket, got %d", rec.Code)
	}
}
