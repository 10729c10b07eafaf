package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// ============================================================================
// TrustedRealIP Tests
// ============================================================================

// realIPProbe runs one request through TrustedRealIP and reports the
// RemoteAddr the inner handler observed.
func realIPProbe(t *testing.T, trusted []string, remoteAddr string, headers map[string]string) string {
	t.Helper()
	var seen string
	h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestTrustedRealIP_HonorsHeaderFromTrustedProxy(t *testing.T) {
	got := realIPProbe(t, []string{"10.0.0.0/8"}, "10.1.2.3:4567",
		map[string]string{"X-Real-IP": "203.0.113.9"})
	if got != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want %q", got, "203.0.113.9")
	}
}

func TestTrustedRealIP_IgnoresHeaderFromUntrustedClient(t *testing.T) {
	got := realIPProbe(t, []string{"10.0.0.0/8"}, "198.51.100.7:9999",
		map[string]string{"X-Real-IP": "203.0.113.9"})
	if got != "198.51.100.7:9999" {
		t.Errorf("RemoteAddr = %q, want untouched %q", got, "198.51.100.7:9999")
	}
}

func TestTrustedRealIP_ForwardedForUsesFirstEntry(t *testing.T) {
	got := realIPProbe(t, []string{"127.0.0.1"}, "127.0.0.1:5000",
		map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1, 10.0.0.2"})
	if got != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want first forwarded entry %q", got, "203.0.113.9")
	}
}

func TestTrustedRealIP_RealIPWinsOverForwardedFor(t *testing.T) {
	got := realIPProbe(t, []string{"127.0.0.1"}, "127.0.0.1:5000", map[string]string{
		"X-Real-IP":       "203.0.113.9",
		"X-Forwarded-For": "192.0.2.44",
	})
	if got != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want X-Real-IP value %q", got, "203.0.113.9")
	}
}

func TestTrustedRealIP_InvalidHeaderValueKeepsSocketAddr(t *testing.T) {
	got := realIPProbe(t, []string{"127.0.0.1"}, "127.0.0.1:5000",
		map[string]string{"X-Real-IP": "not-an-ip"})
	if got != "127.0.0.1:5000" {
		t.Errorf("RemoteAddr = %q, want untouched %q", got, "127.0.0.1:5000")
	}
}

func TestTrustedRealIP_EmptyListTrustsNobody(t *testing.T) {
	got := realIPProbe(t, nil, "127.0.0.1:5000",
		map[string]string{"X-Real-IP": "203.0.113.9"})
	if got != "127.0.0.1:5000" {
		t.Errorf("RemoteAddr = %q, want untouched %q", got, "127.0.0.1:5000")
	}
}

func TestTrustedRealIP_SkipsInvalidEntries(t *testing.T) {
	// The bogus entry is dropped; the valid single IP still counts.
	got := realIPProbe(t, []string{"bogus/xx", "127.0.0.1"}, "127.0.0.1:5000",
		map[string]string{"X-Real-IP": "203.0.113.9"})
	if got != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want %q", got, "203.0.113.9")
	}
}
