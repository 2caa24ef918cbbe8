package apihttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/signal"
	"vigil/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type staticThresholds struct {
	th *config.Thresholds
}

func (s staticThresholds) Current() *config.Thresholds { return s.th }

func testEngine(t *testing.T, logs *decisionlog.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	router := NewRouter(staticThresholds{th: &config.Thresholds{
		Version: "v1",
		Symbols: []string{"BTC/USDT"},
		Confidence: config.ConfidenceThresholds{
			MediumMin: 50, HighMin: 70, UltraMin: 85,
			UncertainCap: signal.ConfidenceMedium,
		},
		ReducedMinConfidence: signal.ConfidenceMedium,
	}}, logs)
	router.Register(engine.Group("/api"))
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpoint(t *testing.T) {
	engine := testEngine(t, nil)

	body := `{
		"symbol": "btcusdt",
		"timeframe": "short",
		"snapshot": {
			"features": {"price_change_6h": 0.005, "taker_imbalance_1h": 0.1},
			"coverage": {"short_evaluable": true}
		}
	}`
	w := doRequest(engine, http.MethodPost, "/api/signal/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)

	res := gjson.Parse(w.Body.String())
	assert.Equal(t, "BTCUSDT", res.Get("symbol").String())
	assert.Equal(t, "short", res.Get("timeframe").String())
	assert.Equal(t, "v1", res.Get("config_version").String())
	assert.Equal(t, "NO_TRADE", res.Get("draft.decision").String())
}

func TestEvaluateEndpointRejectsBadInput(t *testing.T) {
	engine := testEngine(t, nil)

	w := doRequest(engine, http.MethodPost, "/api/signal/evaluate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/signal/evaluate",
		`{"snapshot": {"features": {}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/signal/evaluate",
		`{"symbol": "BTCUSDT", "snapshot": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/signal/evaluate",
		`{"symbol": "BTCUSDT", "timeframe": "weekly", "snapshot": {"features": {}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigVersionEndpoint(t *testing.T) {
	engine := testEngine(t, nil)

	w := doRequest(engine, http.MethodGet, "/api/config/version", "")
	require.Equal(t, http.StatusOK, w.Code)

	res := gjson.Parse(w.Body.String())
	assert.Equal(t, "v1", res.Get("version").String())
	assert.Equal(t, "BTC/USDT", res.Get("symbols.0").String())
}

func TestLatestEndpoint(t *testing.T) {
	logs, err := decisionlog.NewStore(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logs.Close() })
	engine := testEngine(t, logs)

	w := doRequest(engine, http.MethodGet, "/api/signal/latest?symbol=BTCUSDT", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	final := signal.Final{
		Draft: signal.Draft{
			Decision:   signal.Long,
			Confidence: signal.ConfidenceHigh,
			Permission: signal.PermissionAllow,
		},
		Symbol:     "BTCUSDT",
		Timeframe:  signal.TimeframeShort,
		Executable: true,
		DecidedAt:  time.Now(),
	}
	_, err = logs.InsertFinal(context.Background(), final, "v1")
	require.NoError(t, err)

	w = doRequest(engine, http.MethodGet, "/api/signal/latest?symbol=BTCUSDT", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "LONG", gjson.Get(w.Body.String(), "decision").String())

	w = doRequest(engine, http.MethodGet, "/api/signal/latest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	logs, err := decisionlog.NewStore(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logs.Close() })
	engine := testEngine(t, logs)

	for _, dir := range []signal.Direction{signal.Long, signal.NoTrade} {
		_, err = logs.InsertFinal(context.Background(), signal.Final{
			Draft:     signal.Draft{Decision: dir, Confidence: signal.ConfidenceLow, Permission: signal.PermissionDeny},
			Symbol:    "BTCUSDT",
			Timeframe: signal.TimeframeShort,
			DecidedAt: time.Now(),
		}, "v1")
		require.NoError(t, err)
	}

	w := doRequest(engine, http.MethodGet, "/api/signal/history?symbol=BTCUSDT&decision=LONG", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := gjson.Parse(w.Body.String())
	assert.Equal(t, int64(1), res.Get("total").Int())
	assert.Equal(t, "LONG", res.Get("records.0.decision").String())

	w = doRequest(engine, http.MethodGet, "/api/signal/history?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
