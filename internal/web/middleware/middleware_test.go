package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		require bool
		keys    []string
		header  string
		want    int
	}{
		{"disabled passes", false, nil, "", http.StatusOK},
		{"missing key", true, []string{"k1"}, "", http.StatusUnauthorized},
		{"wrong key", true, []string{"k1", "k2"}, "nope", http.StatusForbidden},
		{"second key accepted", true, []string{"k1", "k2"}, "k2", http.StatusOK},
		{"no keys configured rejects", true, nil, "k1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.require, tt.keys)(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/api/kinds", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"code":"AUTH_`)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	trusted := ParseTrustedNets([]string{"10.0.0.0/8", "192.168.1.5", "bogus"})
	require.Len(t, trusted, 2)

	tests := []struct {
		name   string
		remote string
		realIP string
		xff    string
		want   string
	}{
		{"untrusted peer ignores headers", "203.0.113.9:5555", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy real ip", "10.1.2.3:443", "1.2.3.4", "", "1.2.3.4"},
		{"trusted proxy first forwarded hop", "10.1.2.3:443", "", "5.6.7.8, 10.1.2.3", "5.6.7.8"},
		{"single trusted host", "192.168.1.5:80", "9.9.9.9", "", "9.9.9.9"},
		{"invalid header falls back", "10.1.2.3:443", "not-an-ip", "", "10.1.2.3"},
		{"ipv6 peer", "[2001:db8::1]:443", "", "", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(req, trusted))
		})
	}
}

func TestTrustedRealIP_RewritesRemoteAddr(t *testing.T) {
	var seen string
	h := TrustedRealIP([]string{"127.0.0.0/8"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.7", seen)
}

func TestLogger_CapturesStatusAndKeepsFlusher(t *testing.T) {
	var flusherOK bool
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flusherOK = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, flusherOK)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestResponseWriter_CountsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	ww.Write([]byte("hello"))
	ww.Write([]byte(" world"))
	ww.WriteHeader(http.StatusInternalServerError) // ignored after first write

	assert.Equal(t, int64(11), ww.bytes)
	assert.Equal(t, http.StatusOK, ww.status)
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	ww := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := ww.Hijack()
	assert.Error(t, err)
}
