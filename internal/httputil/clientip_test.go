package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.5:54321",
			expected:   "203.0.113.5",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			expected:   "198.51.100.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2, 10.0.0.3"},
			expected:   "198.51.100.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			expected:   "198.51.100.9",
		},
		{
			name:       "forwarded-for wins over real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.7",
				"X-Real-IP":       "198.51.100.9",
			},
			expected: "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(r))
		})
	}
}
