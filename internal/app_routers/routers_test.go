package approuters

import (
	"Promo/internal/configuration"
	"Promo/internal/handler"
	"Promo/internal/hub"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMessageHandler struct {
	history, unseen int
}

func (s *stubMessageHandler) GetHistory(c *gin.Context) {
	s.history++
	c.Status(http.StatusNoContent)
}

func (s *stubMessageHandler) GetUnseenCounts(c *gin.Context) {
	s.unseen++
	c.Status(http.StatusNoContent)
}

func newTestContainer(t *testing.T) (*configuration.Container, *stubMessageHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub(hub.Options{}, nil, nil, zap.NewNop())
	t.Cleanup(h.Stop)

	stub := &stubMessageHandler{}
	return &configuration.Container{
		MessageHandler: stub,
		MonitorHandler: handler.NewMonitorHandler(h),
		SeenHandler:    handler.NewSeenHandler(h),
		Hub:            h,
		Config: configuration.Config{
			Server: configuration.ServerConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		},
		Logger: zap.NewNop(),
	}, stub
}

func TestNewRouter_Routes(t *testing.T) {
	container, stub := newTestContainer(t)
	router := NewRouter(container)

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{path: "/", code: http.StatusOK},
		{path: "/api/messages/a/b", code: http.StatusNoContent},
		{path: "/api/unseen/a", code: http.StatusNoContent},
		{path: "/api/presence/online", code: http.StatusOK},
		{path: "/api/monitor/stats", code: http.StatusOK},
		{path: "/api/unknown", code: http.StatusNotFound},
		{method: http.MethodPut, path: "/api/seen/nope/nope", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	assert.Equal(t, 1, stub.history)
	assert.Equal(t, 1, stub.unseen)
}

func TestNewRouter_CORS(t *testing.T) {
	container, _ := newTestContainer(t)
	router := NewRouter(container)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/online", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/presence/online", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCorsConfig_Wildcard(t *testing.T) {
	cfg := corsConfig([]string{"*"})
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)
	assert.Empty(t, cfg.AllowOrigins)
}
