package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/http/middleware"
)

func corsRequest(handler http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
	}
	handler := middleware.CORS(cfg, "production", zap.NewNop())(okHandler())

	allowed := corsRequest(handler, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := corsRequest(handler, "https://evil.example.com")
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DevelopmentAllowsAll(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedMethods: []string{"GET"},
	}
	handler := middleware.CORS(cfg, "development", zap.NewNop())(okHandler())

	w := corsRequest(handler, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ProductionWithNoOriginsDeniesAll(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedMethods: []string{"GET"},
	}
	handler := middleware.CORS(cfg, "production", zap.NewNop())(okHandler())

	w := corsRequest(handler, "https://app.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
