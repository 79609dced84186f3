package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:4321", want: "10.0.0.1"},
		{name: "x-real-ip", remoteAddr: "10.0.0.1:4321", xri: "203.0.113.7", want: "203.0.113.7"},
		{name: "single forwarded", remoteAddr: "10.0.0.1:4321", xff: "203.0.113.7", want: "203.0.113.7"},
		{name: "forwarded with port", remoteAddr: "10.0.0.1:4321", xff: "203.0.113.7:9999", want: "203.0.113.7"},
		{name: "multi hop forwarded", remoteAddr: "10.0.0.1:4321", xff: "203.0.113.7, 198.51.100.2, 10.0.0.1", want: "203.0.113.7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}

			if got := getClientIP(r); got != tc.want {
				t.Errorf("getClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(2)

	for i := 0; i < 2; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d for key a should be allowed", i)
		}
	}
	if rl.Allow("a") {
		t.Error("key a should be exhausted")
	}
	if !rl.Allow("b") {
		t.Error("key b should have its own bucket")
	}
}
