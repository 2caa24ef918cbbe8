package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// baseDoc 最小可加载配置：必需节齐全，其余靠默认值。
func baseDoc() map[string]any {
	return map[string]any{
		"symbol_universe": map[string]any{
			"symbols": []string{"btc/usdt", "ETH/USDT"},
		},
		"market_regime":      map[string]any{},
		"risk_exposure":      map[string]any{},
		"trade_quality":      map[string]any{},
		"direction":          map[string]any{},
		"confidence_scoring": map[string]any{},
		"reason_tag_rules":   map[string]any{},
		"executable_control": map[string]any{},
	}
}

func writeDoc(t *testing.T, dir, name string, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeDoc(t, t.TempDir(), "config.yaml", baseDoc())

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MEDIUM", cfg.Executable.ReducedMinConfidence)
	assert.Equal(t, "30m", cfg.Frequency.Short.Cooldown)
	assert.Equal(t, "2h", cfg.Frequency.Medium.Cooldown)
	assert.True(t, cfg.Dual.Enabled)
	assert.Equal(t, "4h", cfg.Dual.MajorFlipCooldown)
	assert.Equal(t, 0.8, cfg.MultiTimeframe.CoverageRatio)
	assert.Equal(t, path, cfg.SourcePath())
}

func TestLoadRejectsPercentagePoints(t *testing.T) {
	doc := baseDoc()
	doc["market_regime"] = map[string]any{"extreme_price_change_1h": 5.0}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "decimal fraction")
	assert.Equal(t, "market_regime", verr.Section)
}

func TestLoadRejectsUnknownTag(t *testing.T) {
	doc := baseDoc()
	doc["reason_tag_rules"] = map[string]any{
		"caps": map[string]any{"ABSORPTION_RISKK": "MEDIUM"},
	}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reason tag")
}

func TestLoadRejectsUnreachableReducedFloor(t *testing.T) {
	// 默认标签上限是 MEDIUM，reduced 下限设为 HIGH 会让
	// ALLOW_REDUCED 路径永远不可达。
	doc := baseDoc()
	doc["executable_control"] = map[string]any{"reduced_min_confidence": "HIGH"}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestLoadRejectsNonIncreasingBands(t *testing.T) {
	doc := baseDoc()
	doc["confidence_scoring"] = map[string]any{
		"bands": map[string]any{"medium_min": 70, "high_min": 50, "ultra_min": 85},
	}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")
}

func TestLoadRequiresSymbolUniverse(t *testing.T) {
	doc := baseDoc()
	delete(doc, "symbol_universe")
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "document", verr.Section)
}

func TestLoadMigratesDeprecatedKeys(t *testing.T) {
	doc := baseDoc()
	doc["executable_control"] = map[string]any{"min_confidence": "LOW"}
	doc["frequency_control"] = map[string]any{
		"short": map[string]any{"cooldown_minutes": 45},
	}
	doc["risk_exposure"] = map[string]any{"liq_cascade_price_drop": 0.04}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "LOW", cfg.Executable.ReducedMinConfidence)
	assert.Equal(t, "45m", cfg.Frequency.Short.Cooldown)
	assert.Equal(t, 0.04, cfg.Risk.LiquidationPriceDrop1h)
}

func TestLoadDeprecatedKeyIgnoredWhenNewKeySet(t *testing.T) {
	doc := baseDoc()
	doc["executable_control"] = map[string]any{
		"min_confidence":         "LOW",
		"reduced_min_confidence": "MEDIUM",
	}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", cfg.Executable.ReducedMinConfidence)
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	base := baseDoc()
	base["market_regime"] = map[string]any{"extreme_price_change_1h": 0.07}
	writeDoc(t, dir, "base.yaml", base)

	entry := map[string]any{
		"include":       []string{"base.yaml"},
		"market_regime": map[string]any{"trend_price_change_6h": 0.04},
	}
	entryPath := writeDoc(t, dir, "config.yaml", entry)

	cfg, err := Load(entryPath)
	require.NoError(t, err)

	assert.Equal(t, 0.07, cfg.Regime.ExtremePriceChange1h)
	assert.Equal(t, 0.04, cfg.Regime.TrendPriceChange6h)
	// 热加载监听入口文件。
	assert.Equal(t, entryPath, cfg.SourcePath())
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.yaml", map[string]any{"include": []string{"b.yaml"}})
	writeDoc(t, dir, "b.yaml", map[string]any{"include": []string{"a.yaml"}})

	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestCompileThresholds(t *testing.T) {
	doc := baseDoc()
	doc["reason_tag_rules"] = map[string]any{
		"caps": map[string]any{"OI_PRICE_DIVERGENCE": "HIGH"},
	}
	path := writeDoc(t, t.TempDir(), "config.yaml", doc)

	th, err := Compile(path)
	require.NoError(t, err)

	assert.Len(t, th.Version, 64)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, th.Symbols)
	assert.Equal(t, 30*time.Minute, th.Window(signal.TimeframeShort).Cooldown)
	assert.Equal(t, 2*time.Hour, th.Window(signal.TimeframeMedium).Cooldown)
	assert.Equal(t, 4*time.Hour, th.MajorFlipCooldown)
	assert.True(t, th.DualEnabled)

	capLevel, ok := th.CapFor(signal.TagOIPriceDivergence)
	require.True(t, ok)
	assert.Equal(t, signal.ConfidenceHigh, capLevel)
	_, ok = th.CapFor(signal.TagVolumeSpike)
	assert.False(t, ok)
}

func TestCompileVersionStability(t *testing.T) {
	doc := baseDoc()
	pathA := writeDoc(t, t.TempDir(), "config.yaml", doc)
	pathB := writeDoc(t, t.TempDir(), "config.yaml", doc)

	thA, err := Compile(pathA)
	require.NoError(t, err)
	thB, err := Compile(pathB)
	require.NoError(t, err)
	// 相同内容在不同路径下编译出同一版本。
	assert.Equal(t, thA.Version, thB.Version)

	doc["market_regime"] = map[string]any{"extreme_price_change_1h": 0.06}
	pathC := writeDoc(t, t.TempDir(), "config.yaml", doc)
	thC, err := Compile(pathC)
	require.NoError(t, err)
	assert.NotEqual(t, thA.Version, thC.Version)
}

func TestParseWindowDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"90s", 90 * time.Second},
	}
	for _, tc := range cases {
		got, err := ParseWindowDuration(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	for _, raw := range []string{"", "abc", "-5m", "0h"} {
		_, err := ParseWindowDuration(raw)
		assert.Error(t, err, raw)
	}
}
