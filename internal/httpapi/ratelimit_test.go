package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterOnlyThrottlesPublicWrites(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{IPPerMinute: 1, IPBurst: 1})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(method, path, remote string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send(http.MethodPost, "/reservations", "192.0.2.1:1000"); got != http.StatusNoContent {
		t.Fatalf("first request: expected pass, got %d", got)
	}
	if got := send(http.MethodPost, "/reservations", "192.0.2.1:1001"); got != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", got)
	}
	if got := send(http.MethodPost, "/reservations", "192.0.2.2:1000"); got != http.StatusNoContent {
		t.Fatalf("other client: expected pass, got %d", got)
	}
	for i := 0; i < 5; i++ {
		if got := send(http.MethodGet, "/reservations/status", "192.0.2.1:1000"); got != http.StatusNoContent {
			t.Fatalf("status polling must not be throttled, got %d", got)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/reservations", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req, false); got != "198.51.100.7" {
		t.Fatalf("expected remote addr, got %q", got)
	}
	if got := clientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("expected forwarded addr, got %q", got)
	}
}
