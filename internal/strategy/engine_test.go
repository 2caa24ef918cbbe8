package strategy

import (
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThresholds() *config.Thresholds {
	return &config.Thresholds{
		Version: "test",
		Symbols: []string{"BTC/USDT"},
		Regime: config.RegimeThresholds{
			ExtremePriceChange1h:    0.05,
			TrendPriceChange6h:      0.03,
			TrendSteepPriceChange1h: 0.025,
		},
		Risk: config.RiskThresholds{
			LiquidationPriceDrop1h: 0.03,
			LiquidationOIDrop1h:    0.05,
			CrowdingFundingAbs:     0.0015,
			CrowdingOIGrowth6h:     0.10,
			ExtremeVolumeRatio:     5.0,
		},
		Quality: config.QualityThresholds{
			AbsorptionImbalance:   0.7,
			AbsorptionVolumeRatio: 0.5,
			NoiseFundingSwing:     0.0005,
			NoiseFollowThrough1h:  0.005,
			RotationPriceMin1h:    0.01,
			RotationOIMin1h:       0.02,
			RangeWeakImbalance:    0.3,
			PoorConditionCount:    2,
		},
		Direction: config.DirectionThresholds{
			Trend: config.DirectionRegimeRules{
				Long:  config.DirectionRule{MinImbalance1h: 0.15, MinOIChange1h: 0.005, MinPriceChange6h: 0.01},
				Short: config.DirectionRule{MinImbalance1h: 0.15, MinOIChange1h: 0.005, MinPriceChange6h: 0.01},
			},
			Range: config.DirectionRegimeRules{
				Long:  config.DirectionRule{MinImbalance15m: 0.25, MinOIChange1h: 0.003, MaxPriceChange6h: 0.02},
				Short: config.DirectionRule{MinImbalance15m: 0.25, MinOIChange1h: 0.003, MaxPriceChange6h: 0.02},
			},
			VolumeConfirmRatio: 1.5,
			FundingLongMax:     0.001,
			FundingShortMin:    -0.001,
		},
		Confidence: config.ConfidenceThresholds{
			BaseScore: 40,
			RegimeScores: map[signal.MarketRegime]float64{
				signal.RegimeTrend:   15,
				signal.RegimeRange:   5,
				signal.RegimeExtreme: 0,
			},
			QualityScores: map[signal.TradeQuality]float64{
				signal.QualityGood:      15,
				signal.QualityUncertain: 0,
				signal.QualityPoor:      -20,
			},
			ReinforcingScore: 5,
			MediumMin:        50,
			HighMin:          70,
			UltraMin:         85,
			UncertainCap:     signal.ConfidenceMedium,
			BoostEnabled:     true,
			BoostRequiredTags: []signal.ReasonTag{
				signal.TagTrendAligned, signal.TagOIConfirmed, signal.TagVolumeConfirmed,
			},
		},
		TagCaps: map[signal.ReasonTag]signal.Confidence{
			signal.TagAbsorptionRisk:    signal.ConfidenceMedium,
			signal.TagFundingNoise:      signal.ConfidenceMedium,
			signal.TagOIPriceDivergence: signal.ConfidenceHigh,
		},
		ReducedMinConfidence: signal.ConfidenceMedium,
		Frequency: map[signal.Timeframe]config.FrequencyWindow{
			signal.TimeframeShort:  {Cooldown: 30 * time.Minute, MinInterval: 10 * time.Minute, FlipCooldown: 15 * time.Minute},
			signal.TimeframeMedium: {Cooldown: 2 * time.Hour, MinInterval: 45 * time.Minute, FlipCooldown: time.Hour},
		},
		DualEnabled:       true,
		MajorFlipCooldown: 4 * time.Hour,
	}
}

func snapWith(mutate func(f *feature.Set)) *feature.Snapshot {
	snap := &feature.Snapshot{
		Coverage: feature.Coverage{ShortEvaluable: true, MediumEvaluable: true},
	}
	if mutate != nil {
		mutate(&snap.Features)
	}
	return snap
}

func TestEvaluateNilInputs(t *testing.T) {
	draft := Evaluate(nil, testThresholds())
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.Equal(t, signal.PermissionDeny, draft.Permission)
	assert.True(t, draft.Tags.Contains(signal.TagDataIncomplete))

	draft = Evaluate(snapWith(nil), nil)
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.True(t, draft.Tags.Contains(signal.TagDataIncomplete))
}

func TestEvaluateCoverageGate(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.PriceChange6h = feature.Ptr(0.04)
	})
	snap.Coverage.MediumEvaluable = false

	short := EvaluateFor(snap, testThresholds(), signal.TimeframeShort)
	assert.False(t, short.Tags.Contains(signal.TagDataIncomplete))

	medium := EvaluateFor(snap, testThresholds(), signal.TimeframeMedium)
	assert.Equal(t, signal.NoTrade, medium.Decision)
	assert.Equal(t, signal.PermissionDeny, medium.Permission)
	assert.True(t, medium.Tags.Contains(signal.TagDataIncomplete))
}

func TestEvaluateExtremeRegimeForcesNoTrade(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.PriceChange1h = feature.Ptr(0.09)
		f.PriceChange6h = feature.Ptr(0.12)
		f.TakerImbalance1h = feature.Ptr(0.8)
		f.OIChange1h = feature.Ptr(0.02)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.RegimeExtreme, draft.Regime)
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.Equal(t, signal.PermissionDeny, draft.Permission)
	assert.True(t, draft.Tags.Contains(signal.TagExtremeVolatility))
}

func TestEvaluateLiquidationCascade(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.PriceChange1h = feature.Ptr(-0.04)
		f.OIChange1h = feature.Ptr(-0.06)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.RegimeTrend, draft.Regime)
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.True(t, draft.Tags.Contains(signal.TagLiquidationCascade))
}

func TestEvaluateCrowdedTrade(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.FundingRate = feature.Ptr(0.002)
		f.OIChange6h = feature.Ptr(0.12)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.True(t, draft.Tags.Contains(signal.TagCrowdedTrade))
}

func TestEvaluateTrendLongAllow(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.Price = feature.Ptr(50000.0)
		f.PriceChange1h = feature.Ptr(0.01)
		f.PriceChange6h = feature.Ptr(0.04)
		f.OIChange1h = feature.Ptr(0.008)
		f.OIChange6h = feature.Ptr(0.05)
		f.TakerImbalance1h = feature.Ptr(0.65)
		f.TakerImbalance15m = feature.Ptr(0.3)
		f.VolumeRatio1h = feature.Ptr(1.8)
		f.FundingRate = feature.Ptr(0.0004)
		f.PrevFundingRate = feature.Ptr(0.0003)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.RegimeTrend, draft.Regime)
	assert.Equal(t, signal.QualityGood, draft.Quality)
	assert.Equal(t, signal.Long, draft.Decision)
	assert.Equal(t, signal.PermissionAllow, draft.Permission)
	assert.True(t, draft.Tags.ContainsAll([]signal.ReasonTag{
		signal.TagLongSignal, signal.TagTrendAligned, signal.TagOIConfirmed, signal.TagVolumeConfirmed,
	}))
	// 40 + 15 + 15 + 3*5 = 85，落在 ULTRA 档。
	assert.Equal(t, signal.ConfidenceUltra, draft.Confidence)
	assert.Equal(t, 85.0, draft.KeyMetrics["confidence_score"])
}

func TestEvaluateFundingOverridesLong(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.PriceChange1h = feature.Ptr(0.01)
		f.PriceChange6h = feature.Ptr(0.04)
		f.OIChange1h = feature.Ptr(0.008)
		f.TakerImbalance1h = feature.Ptr(0.65)
		f.FundingRate = feature.Ptr(0.002)
		f.PrevFundingRate = feature.Ptr(0.0019)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.Equal(t, signal.PermissionDeny, draft.Permission)
	assert.True(t, draft.Tags.Contains(signal.TagFundingOverrideLong))
	// 方向评估的标签保留，供审计还原“策略本来想做什么”。
	assert.True(t, draft.Tags.Contains(signal.TagLongSignal))
}

func TestEvaluateRangeLongReduced(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.PriceChange1h = feature.Ptr(0.003)
		f.PriceChange6h = feature.Ptr(0.005)
		f.OIChange1h = feature.Ptr(0.004)
		f.TakerImbalance15m = feature.Ptr(0.3)
		f.TakerImbalance1h = feature.Ptr(0.2)
		f.VolumeRatio1h = feature.Ptr(1.0)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.RegimeRange, draft.Regime)
	assert.Equal(t, signal.QualityUncertain, draft.Quality)
	assert.True(t, draft.Tags.Contains(signal.TagRangeWeakSignal))
	assert.Equal(t, signal.Long, draft.Decision)
	assert.Equal(t, signal.PermissionAllowReduced, draft.Permission)
	assert.Equal(t, signal.ConfidenceMedium, draft.Confidence)
}

func TestEvaluatePoorQualityForcesNoTrade(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		// 吸收风险 + 资金费率噪声，两个条件同时命中。
		f.TakerImbalance1h = feature.Ptr(0.75)
		f.VolumeRatio1h = feature.Ptr(0.4)
		f.FundingRate = feature.Ptr(0.001)
		f.PrevFundingRate = feature.Ptr(0.0001)
		f.PriceChange1h = feature.Ptr(0.002)
	})
	draft := Evaluate(snap, testThresholds())

	assert.Equal(t, signal.QualityPoor, draft.Quality)
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.True(t, draft.Tags.Contains(signal.TagAbsorptionRisk))
	assert.True(t, draft.Tags.Contains(signal.TagFundingNoise))
}

func TestEvaluateEmptyFeaturesNeverPanics(t *testing.T) {
	draft := Evaluate(snapWith(nil), testThresholds())

	assert.Equal(t, signal.RegimeRange, draft.Regime)
	assert.Equal(t, signal.NoTrade, draft.Decision)
	assert.True(t, draft.Tags.Contains(signal.TagNoClearDirection))
}

func TestEvaluateDeterministic(t *testing.T) {
	snap := snapWith(func(f *feature.Set) {
		f.Price = feature.Ptr(50000.0)
		f.PriceChange1h = feature.Ptr(0.01)
		f.PriceChange6h = feature.Ptr(0.04)
		f.OIChange1h = feature.Ptr(0.008)
		f.TakerImbalance1h = feature.Ptr(0.65)
		f.VolumeRatio1h = feature.Ptr(1.8)
	})
	th := testThresholds()

	first := Evaluate(snap, th)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(snap, th))
	}
}

func TestScoreConfidenceTagCap(t *testing.T) {
	th := testThresholds()
	tags := signal.TagList{
		signal.TagLongSignal, signal.TagTrendAligned,
		signal.TagOIConfirmed, signal.TagVolumeConfirmed,
		signal.TagAbsorptionRisk,
	}
	level, score := scoreConfidence(signal.Long, signal.RegimeTrend, signal.QualityUncertain, tags, th)
	require.GreaterOrEqual(t, score, th.Confidence.HighMin)
	// 上限钳制后 boost 也不得突破上限。
	assert.Equal(t, signal.ConfidenceMedium, level)
}

func TestScoreConfidenceBoostStepsUp(t *testing.T) {
	th := testThresholds()
	th.Confidence.ReinforcingScore = 0
	tags := signal.TagList{
		signal.TagTrendAligned, signal.TagOIConfirmed, signal.TagVolumeConfirmed,
	}
	// 40 + 15 + 15 = 70，HIGH 档；佐证齐备且无上限，上调一档到 ULTRA。
	level, score := scoreConfidence(signal.Long, signal.RegimeTrend, signal.QualityGood, tags, th)
	assert.Equal(t, 70.0, score)
	assert.Equal(t, signal.ConfidenceUltra, level)
}
