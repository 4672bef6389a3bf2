package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/gischat/internal/logger"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"https://example.com"}, origin: "", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.test", want: true},
		{name: "exact match", allowed: []string{"https://example.com"}, origin: "https://example.com", want: true},
		{name: "case insensitive", allowed: []string{"https://Example.COM"}, origin: "HTTPS://example.com", want: true},
		{name: "other host", allowed: []string{"https://example.com"}, origin: "https://evil.test", want: false},
		{name: "other port", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:9090", want: false},
		{name: "invalid configured origin ignored", allowed: []string{"not-an-origin"}, origin: "https://example.com", want: false},
		{name: "malformed request origin", allowed: []string{"https://example.com"}, origin: "::::", want: false},
		{name: "nothing allowed", allowed: nil, origin: "https://example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, logger.Discard())
			r := httptest.NewRequest("GET", "/channel/QGIS/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, p.check(r))
		})
	}
}
