package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioLine = `{"log_version":1,"type":"log_line","code":"I011","ts":"2021-11-30T12:31:04.312814","pid":59758,"msg":"Parsing tests/generic/builtin.sql","level":"debug","invocation_id":"0c3303e3-2c5c-47f5-bc69-dfaae7843f6f","thread_name":"MainThread","data":{"code":"I011","path":"tests/generic/builtin.sql"},"node_info":{}}`

type failingChecker struct{}

func (failingChecker) Run(context.Context, []string) (*contract.Report, error) {
	return nil, errors.New("boom")
}

func newTestServer(t *testing.T, config *HTTPConfig) *HTTP {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, _ := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	metric, err := metrics.New("test")
	require.NoError(t, err)

	checker, err := contract.NewChecker(contract.DefaultConfig(), log, metric, nil)
	require.NoError(t, err)

	if config == nil {
		config = &HTTPConfig{Host: "127.0.0.1", Port: "8080"}
	}
	return NewHTTP(config, checker, log, metric)
}

func post(server *HTTP, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/v1/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/x-ndjson")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	server.handler.ServeHTTP(w, req)
	return w
}

func TestHTTPEndpoints(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()

		server.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "ok", response["status"])
		assert.Contains(t, response, "time")
	})

	t.Run("check endpoint passes", func(t *testing.T) {
		w := post(server, []byte(scenarioLine+"\n"+scenarioLine+"\n"), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var report contract.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 2, report.Records)
		assert.Equal(t, "naive", report.Generation)
		assert.True(t, report.Passed())
	})

	t.Run("check endpoint reports findings", func(t *testing.T) {
		drift := strings.Replace(scenarioLine, `"log_version":1`, `"log_version":2`, 1)
		w := post(server, []byte(drift), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		findings := response["conformance"].([]interface{})
		require.Len(t, findings, 1)
	})

	t.Run("check endpoint accepts gzip", func(t *testing.T) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write([]byte(scenarioLine + "\n"))
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		w := post(server, buf.Bytes(), map[string]string{"Content-Encoding": "gzip"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad gzip body", func(t *testing.T) {
		w := post(server, []byte("plain"), map[string]string{"Content-Encoding": "gzip"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ingestion abort names the line", func(t *testing.T) {
		w := post(server, []byte(scenarioLine+"\nnot json at all\n"), nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2.0, response["line"])
		assert.Contains(t, response["error"], "not valid JSON")
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()

		server.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "# HELP")
		assert.Contains(t, w.Body.String(), "logcontract_records_checked_total")
	})
}

func TestCheckHandler_BodyLimit(t *testing.T) {
	server := newTestServer(t, &HTTPConfig{Host: "127.0.0.1", Port: "8080", MaxBodyBytes: 64})

	w := post(server, []byte(scenarioLine), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCheckHandler_CheckerFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	metric, err := metrics.New("test")
	require.NoError(t, err)

	server := NewHTTP(&HTTPConfig{}, failingChecker{}, log, metric)
	w := post(server, []byte(scenarioLine), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHTTPConfig(t *testing.T) {
	config := &HTTPConfig{
		Host: "0.0.0.0",
		Port: "8080",
	}

	server := NewHTTP(config, failingChecker{}, nil, nil)
	assert.Equal(t, int64(10<<20), config.MaxBodyBytes)
	assert.False(t, server.IsRunning())
	assert.NoError(t, server.Stop(context.Background()))
}

func TestHTTP_WithoutLoggerOrMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewHTTP(&HTTPConfig{}, failingChecker{}, nil, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	server.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	server.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(server, []byte(scenarioLine), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_StopRightAfterStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		h, err := New(nil, nil, &Config{HTTP: &HTTPConfig{Host: "127.0.0.1", Port: "0"}}, failingChecker{})
		require.NoError(t, err)

		ch := make(chan struct{}, 1)
		h.Start(ch)
		require.NoError(t, h.Stop(context.Background()))

		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("server kept serving after Stop")
		}
		assert.False(t, h.HTTP.IsRunning())
	}
}

func TestHandler_StopWhileServing(t *testing.T) {
	h, err := New(nil, nil, &Config{HTTP: &HTTPConfig{Host: "127.0.0.1", Port: "0"}}, failingChecker{})
	require.NoError(t, err)

	ch := make(chan struct{}, 1)
	h.Start(ch)
	require.Eventually(t, h.HTTP.IsRunning, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, h.Stop(context.Background()))

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("server kept serving after Stop")
	}
}

func TestNew(t *testing.T) {
	log, _ := logger.New("test", logger.Options{Format: logger.JSONLogFormat})

	_, err := New(log, nil, nil, failingChecker{})
	assert.Error(t, err)

	_, err = New(log, nil, &Config{HTTP: &HTTPConfig{}}, nil)
	assert.Error(t, err)

	h, err := New(log, nil, &Config{HTTP: &HTTPConfig{}}, failingChecker{})
	require.NoError(t, err)
	assert.NotNil(t, h.HTTP)
}
