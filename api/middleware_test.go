package api

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{"no proxies configured ignores headers", nil, "203.0.113.7:5000", "198.51.100.1", "198.51.100.2", "203.0.113.7"},
		{"untrusted peer cannot spoof", trusted, "203.0.113.7:5000", "198.51.100.1", "198.51.100.2", "203.0.113.7"},
		{"trusted peer forwards client", trusted, "10.1.2.3:5000", "198.51.100.1", "", "198.51.100.1"},
		{"rightmost untrusted hop wins", trusted, "10.1.2.3:5000", "1.1.1.1, 198.51.100.1, 10.9.9.9", "", "198.51.100.1"},
		{"all hops trusted uses leftmost", trusted, "10.1.2.3:5000", "10.5.5.5, 10.9.9.9", "", "10.5.5.5"},
		{"trusted peer falls back to X-Real-IP", trusted, "10.1.2.3:5000", "", "198.51.100.2", "198.51.100.2"},
		{"trusted peer without headers", trusted, "10.1.2.3:5000", "", "", "10.1.2.3"},
		{"ipv6 proxy", trusted, "[2001:db8::1]:443", "198.51.100.9", "", "198.51.100.9"},
		{"ipv4-mapped peer", trusted, "[::ffff:10.0.0.1]:80", "198.51.100.4", "", "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware(nil, discardLogger(), nil)
			m.trusted = tt.trusted
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := m.clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
