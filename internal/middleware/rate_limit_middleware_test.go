package middleware

import (
	"CollabChatAPI/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cidrs ...string) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		trustedProxyCIDRs: parseTrustedProxyCIDRs(cidrs),
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "Untrusted Remote Ignores Forwarded Header",
			remoteAddr: "198.51.100.20:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:       "198.51.100.20",
		},
		{
			name:       "Trusted Proxy Uses Right Most Untrusted",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2, 198.51.100.10"},
			want:       "198.51.100.10",
		},
		{
			name:       "Trusted Proxy Skips Trusted Chain",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.10, 10.1.1.1"},
			want:       "203.0.113.10",
		},
		{
			name:       "Trusted Proxy Falls Back To X-Real-IP",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.11"},
			want:       "198.51.100.11",
		},
		{
			name:       "Whole Chain Trusted Returns First Hop",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "10.2.2.2, 10.1.1.1"},
			want:       "10.2.2.2",
		},
		{
			name:       "IPv6 Remote",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	m := newTestLimiter("10.0.0.0/8", "not-a-cidr")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, m.getIP(req))
		})
	}
}

func TestLimit_WithoutRedisPassesThrough(t *testing.T) {
	m := NewRateLimitMiddleware(nil, &config.AppConfig{})

	calls := 0
	handler := m.Limit("requests", 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/requests", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
	assert.Equal(t, 3, calls)
}
