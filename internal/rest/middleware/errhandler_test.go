package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuitionbill/tuitionbill/internal/config"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

func newTestEngine(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(config.GetDefaultConfig())
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestIDMiddleware, RequestLogger(log), ErrorHandler(log), GuestAuthenticateMiddleware)
	r.GET("/test", handler)
	return r
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         ierr.NewError("bad input").WithHint("Family ID is required").Mark(ierr.ErrValidation),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ierr.ErrCodeValidation,
			wantMessage: "Family ID is required",
		},
		{
			name:        "not found",
			err:         ierr.NewError("payment not found").WithHint("Payment not found").Mark(ierr.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantCode:    ierr.ErrCodeNotFound,
			wantMessage: "Payment not found",
		},
		{
			name:        "pricing unavailable",
			err:         ierr.NewError("no active tuition price").WithHint("No active price").Mark(ierr.ErrPricingUnavailable),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    ierr.ErrCodePricingUnavailable,
			wantMessage: "No active price",
		},
		{
			name:        "gateway",
			err:         ierr.NewError("card_declined").WithHint("The payment gateway rejected the request").Mark(ierr.ErrGateway),
			wantStatus:  http.StatusBadGateway,
			wantCode:    ierr.ErrCodeGateway,
			wantMessage: "The payment gateway rejected the request",
		},
		{
			name:        "unmarked error hides its message",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ierr.ErrCodeSystemError,
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(t, func(c *gin.Context) {
				c.Error(tt.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Display)
		})
	}
}

func TestRequestContextHeaders(t *testing.T) {
	var tenantID, userID, requestID string
	r := newTestEngine(t, func(c *gin.Context) {
		ctx := c.Request.Context()
		tenantID = types.GetTenantID(ctx)
		userID = types.GetUserID(ctx)
		requestID = types.GetRequestID(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(types.HeaderTenantID, "tenant_academy")
	req.Header.Set(types.HeaderRequestID, "req_123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tenant_academy", tenantID)
	assert.Equal(t, types.DefaultUserID, userID)
	assert.Equal(t, "req_123", requestID)
	assert.Equal(t, "req_123", w.Header().Get(types.HeaderRequestID))

	// without headers the defaults apply and a request id is generated
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, types.DefaultTenantID, tenantID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(types.HeaderRequestID))
}
