package service

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/biz"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/preset"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

func setupRouter(t *testing.T, upstream http.HandlerFunc) (*gin.Engine, *[]byte, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		lastBody = buf.Bytes()
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	tr, err := transport.NewDirectTransport(&transport.Config{BaseURL: srv.URL, APIKey: "pk"})
	require.NoError(t, err)
	table, err := backend.NewTable(backend.NewDescriptor(types.BackendDirect, "Direct", "PERPLEXITY_API_KEY", tr))
	require.NoError(t, err)

	d := biz.NewDispatcher(biz.DefaultConfig(), preset.Default(), table,
		backend.Credentials{"PERPLEXITY_API_KEY": "pk"}, logger.NewNop())

	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(logger.GinLoggerWithConfig(&logger.Logger{Logger: zap.New(core)}, logger.MiddlewareOptions{}))
	NewSearchService(d).RegisterRoutes(router.Group("/api/v1"))
	return router, &lastBody, logs
}

func answer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"model":"sonar-pro","choices":[{"message":{"content":"ok [1]"}}],"citations":["https://a.example"]}`)
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(logger.RequestIDHeader, "req-http")
	router.ServeHTTP(w, req)
	return w
}

func TestSearch_Success(t *testing.T) {
	router, sent, _ := setupRouter(t, answer)

	w := post(router, `{"query":"solid state batteries","preset":"academic","search_after_date":"2023-06-01","max_tokens":300}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := gjson.Parse(w.Body.String())
	assert.EqualValues(t, 0, res.Get("code").Int())
	assert.True(t, res.Get("data.success").Bool())
	assert.Equal(t, "ok [1]", res.Get("data.answer").String())
	assert.Equal(t, "https://a.example", res.Get("data.citations.0.url").String())
	assert.Equal(t, "req-http", res.Get("data.request_id").String())

	upstream := gjson.ParseBytes(*sent)
	assert.Equal(t, "academic", upstream.Get("search_mode").String())
	assert.Equal(t, "06/01/2023", upstream.Get("search_after_date_filter").String())
	assert.EqualValues(t, 300, upstream.Get("max_tokens").Int())
	assert.True(t, upstream.Get("search_domain_filter").IsArray())
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"missing query", `{"preset":"news"}`, http.StatusBadRequest, apperrors.ErrInvalidQuery},
		{"malformed json", `{"query":`, http.StatusBadRequest, apperrors.ErrInvalidQuery},
		{"unknown preset", `{"query":"q","preset":"missing"}`, http.StatusBadRequest, apperrors.ErrUnknownPreset},
		{"conflicting dates", `{"query":"q","search_recency_filter":"week","search_before_date":"2024-01-01"}`, http.StatusBadRequest, apperrors.ErrConflictingDateFilters},
		{"unknown mode", `{"query":"q","mode":"fastest"}`, http.StatusBadRequest, apperrors.ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupRouter(t, answer)
			w := post(router, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.EqualValues(t, tt.code, gjson.Get(w.Body.String(), "code").Int())
		})
	}
}

func TestSearch_BackendFailure(t *testing.T) {
	router, _, logs := setupRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	})

	w := post(router, `{"query":"q"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	res := gjson.Parse(w.Body.String())
	assert.EqualValues(t, apperrors.ErrRequestRejected, res.Get("code").Int())
	assert.False(t, res.Get("data.success").Bool())
	assert.Equal(t, "request_rejected", res.Get("data.error.kind").String())
	assert.Equal(t, "direct", res.Get("data.error.backend").String())
	assert.Contains(t, res.Get("message").String(), "invalid api key")

	failures := logs.FilterMessage("search unsuccessful").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "search-service", failures[0].LoggerName)
	assert.Equal(t, "req-http", failures[0].ContextMap()["request_id"])
	assert.Equal(t, "request_rejected", failures[0].ContextMap()["kind"])
}

func TestListPresets(t *testing.T) {
	router, _, _ := setupRouter(t, answer)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil))
	require.Equal(t, http.StatusOK, w.Code)

	names := gjson.Get(w.Body.String(), "data.presets.#.name").Array()
	assert.Len(t, names, len(preset.Default().Names()))
	assert.Equal(t, "academic", names[0].String())
}

func TestListBackends(t *testing.T) {
	router, _, _ := setupRouter(t, answer)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil))
	require.Equal(t, http.StatusOK, w.Code)

	res := gjson.Get(w.Body.String(), "data.backends.0")
	assert.Equal(t, "direct", res.Get("id").String())
	assert.True(t, res.Get("ready").Bool())
	assert.Len(t, res.Get("capabilities").Array(), 8)
}
