package decisionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleFinal(symbol string, dir signal.Direction, at time.Time) signal.Final {
	return signal.Final{
		Draft: signal.Draft{
			Decision:   dir,
			Confidence: signal.ConfidenceHigh,
			Regime:     signal.RegimeTrend,
			Quality:    signal.QualityGood,
			Permission: signal.PermissionAllow,
			Tags:       signal.TagList{signal.TagLongSignal, signal.TagTrendAligned},
			KeyMetrics: map[string]float64{"price": 50000, "confidence_score": 85},
		},
		Symbol:     symbol,
		Timeframe:  signal.TimeframeShort,
		Executable: true,
		DecidedAt:  at,
		TraceID:    "trace-1",
	}
}

func TestStoreInsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	id, err := store.InsertFinal(ctx, sampleFinal("btcusdt", signal.Long, at), "hash-a")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	list, err := store.List(ctx, Query{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	rec := list[0]
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, "short", rec.Timeframe)
	assert.Equal(t, "LONG", rec.Decision)
	assert.Equal(t, "HIGH", rec.Confidence)
	assert.Equal(t, "TREND", rec.Regime)
	assert.Equal(t, "ALLOW", rec.Permission)
	assert.True(t, rec.Executable)
	assert.Equal(t, at.UnixMilli(), rec.Timestamp)
	assert.Equal(t, []string{"LONG_SIGNAL", "TREND_ALIGNED"}, rec.Tags)
	assert.Equal(t, 50000.0, rec.KeyMetrics["price"])
	assert.Equal(t, "hash-a", rec.ConfigHash)
}

func TestStoreFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.InsertFinal(ctx, sampleFinal("BTCUSDT", signal.Long, base), "h")
	require.NoError(t, err)
	_, err = store.InsertFinal(ctx, sampleFinal("BTCUSDT", signal.Short, base.Add(time.Minute)), "h")
	require.NoError(t, err)
	_, err = store.InsertFinal(ctx, sampleFinal("ETHUSDT", signal.NoTrade, base.Add(2*time.Minute)), "h")
	require.NoError(t, err)

	list, err := store.List(ctx, Query{Decision: "SHORT"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SHORT", list[0].Decision)

	list, err = store.List(ctx, Query{Since: base.Add(time.Minute).UnixMilli()})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	total, err := store.Count(ctx, Query{Symbol: "btcusdt"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStoreLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, ok, err := store.Latest(ctx, "BTCUSDT", "short")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.InsertFinal(ctx, sampleFinal("BTCUSDT", signal.Long, base), "h")
	require.NoError(t, err)
	_, err = store.InsertFinal(ctx, sampleFinal("BTCUSDT", signal.Short, base.Add(time.Hour)), "h")
	require.NoError(t, err)

	rec, ok, err := store.Latest(ctx, "BTCUSDT", "short")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SHORT", rec.Decision)
	assert.Equal(t, base.Add(time.Hour).UnixMilli(), rec.Timestamp)
}

func TestStoreListByTraceID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	short := sampleFinal("BTCUSDT", signal.Long, base)
	medium := sampleFinal("BTCUSDT", signal.Long, base)
	medium.Timeframe = signal.TimeframeMedium

	_, err := store.InsertFinal(ctx, short, "h")
	require.NoError(t, err)
	_, err = store.InsertFinal(ctx, medium, "h")
	require.NoError(t, err)

	list, err := store.ListByTraceID(ctx, "trace-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "short", list[0].Timeframe)
	assert.Equal(t, "medium", list[1].Timeframe)

	_, err = store.ListByTraceID(ctx, "  ", 0)
	assert.Error(t, err)
}

func TestStoreBlockedRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	final := sampleFinal("BTCUSDT", signal.Long, time.Now())
	final.Executable = false
	final.BlockReason = "cooling"
	final.Permission = signal.PermissionDeny
	final.Tags = final.Tags.Append(signal.TagFrequencyCooling)

	_, err := store.InsertFinal(ctx, final, "h")
	require.NoError(t, err)

	rec, ok, err := store.Latest(ctx, "BTCUSDT", "short")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.Executable)
	assert.Equal(t, "cooling", rec.BlockReason)
	// 阻断不改写决策本身。
	assert.Equal(t, "LONG", rec.Decision)
	assert.Contains(t, rec.Tags, "FREQUENCY_COOLING")
}
