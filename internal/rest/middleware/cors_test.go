package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/tuitionbill/tuitionbill/internal/config"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
	}{
		{
			name:       "any origin when none configured",
			origin:     "https://portal.example.com",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "configured origin is echoed",
			allowed:    []string{"https://portal.example.com"},
			origin:     "https://portal.example.com",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantOrigin: "https://portal.example.com",
		},
		{
			name:       "unknown origin gets no allow header",
			allowed:    []string{"https://portal.example.com"},
			origin:     "https://evil.example.com",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight stops the chain",
			origin:     "https://portal.example.com",
			method:     http.MethodOptions,
			wantStatus: http.StatusNoContent,
			wantOrigin: "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetDefaultConfig()
			cfg.Server.AllowedOrigins = tt.allowed

			r := gin.New()
			r.Use(CORSMiddleware(cfg))
			r.Any("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-ID")
		})
	}
}
