package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9985"

	defaultMarketName    = "binance"
	defaultMarketREST    = "https://fapi.binance.com"
	defaultMarketTimeout = 15
	defaultMarketRetries = 3

	defaultExtremePriceChange1h = 0.05
	defaultTrendPriceChange6h   = 0.03
	defaultTrendSteep1h         = 0.025

	defaultLiquidationPriceDrop = 0.03
	defaultLiquidationOIDrop    = 0.05
	defaultCrowdingFundingAbs   = 0.0015
	defaultCrowdingOIGrowth     = 0.10
	defaultExtremeVolumeRatio   = 5.0

	defaultAbsorptionImbalance   = 0.7
	defaultAbsorptionVolumeRatio = 0.5
	defaultNoiseFundingSwing     = 0.0005
	defaultNoiseFollowThrough    = 0.005
	defaultRotationPriceMin      = 0.01
	defaultRotationOIMin         = 0.02
	defaultRangeWeakImbalance    = 0.3
	defaultPoorConditionCount    = 2

	defaultVolumeConfirmRatio = 1.5
	defaultFundingLongMax     = 0.001
	defaultFundingShortMin    = -0.001

	defaultBaseScore        = 40.0
	defaultReinforcingScore = 5.0
	defaultMediumMin        = 50.0
	defaultHighMin          = 70.0
	defaultUltraMin         = 85.0
	defaultUncertainCap     = "MEDIUM"

	defaultReducedMinConfidence = "MEDIUM"

	defaultShortCooldown      = "30m"
	defaultShortMinInterval   = "10m"
	defaultShortFlipCooldown  = "15m"
	defaultMediumCooldown     = "2h"
	defaultMediumMinInterval  = "45m"
	defaultMediumFlipCooldown = "1h"
	defaultMajorFlipCooldown  = "4h"

	defaultCoverageRatio = 0.8

	defaultSchedulerInterval = "15m"
	defaultSchedulerOffset   = 10

	defaultDecisionLogPath = "data/vigil-decisions.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Regime.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Quality.applyDefaults(keys)
	c.Direction.applyDefaults(keys)
	c.Confidence.applyDefaults(keys)
	c.ReasonTagRules.applyDefaults(keys)
	c.Executable.applyDefaults(keys)
	c.Frequency.applyDefaults(keys)
	c.Dual.applyDefaults(keys)
	c.MultiTimeframe.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.DecisionLog.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.name", &m.Name, defaultMarketName),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
		fieldDefault{
			key:   "market.max_retries",
			need:  func() bool { return m.MaxRetries <= 0 },
			apply: func() { m.MaxRetries = defaultMarketRetries },
		},
	)
}

func (r *MarketRegimeConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("market_regime.extreme_price_change_1h", &r.ExtremePriceChange1h, defaultExtremePriceChange1h),
		floatFieldDefault("market_regime.trend_price_change_6h", &r.TrendPriceChange6h, defaultTrendPriceChange6h),
		floatFieldDefault("market_regime.trend_steep_price_change_1h", &r.TrendSteepPriceChange1h, defaultTrendSteep1h),
	)
}

func (r *RiskExposureConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk_exposure.liquidation_price_drop_1h", &r.LiquidationPriceDrop1h, defaultLiquidationPriceDrop),
		floatFieldDefault("risk_exposure.liquidation_oi_drop_1h", &r.LiquidationOIDrop1h, defaultLiquidationOIDrop),
		floatFieldDefault("risk_exposure.crowding_funding_abs", &r.CrowdingFundingAbs, defaultCrowdingFundingAbs),
		floatFieldDefault("risk_exposure.crowding_oi_growth_6h", &r.CrowdingOIGrowth6h, defaultCrowdingOIGrowth),
		floatFieldDefault("risk_exposure.extreme_volume_ratio", &r.ExtremeVolumeRatio, defaultExtremeVolumeRatio),
	)
}

func (q *TradeQualityConfig) applyDefaults(keys keySet) {
	if q == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("trade_quality.absorption_imbalance", &q.AbsorptionImbalance, defaultAbsorptionImbalance),
		floatFieldDefault("trade_quality.absorption_volume_ratio", &q.AbsorptionVolumeRatio, defaultAbsorptionVolumeRatio),
		floatFieldDefault("trade_quality.noise_funding_swing", &q.NoiseFundingSwing, defaultNoiseFundingSwing),
		floatFieldDefault("trade_quality.noise_follow_through_1h", &q.NoiseFollowThrough1h, defaultNoiseFollowThrough),
		floatFieldDefault("trade_quality.rotation_price_min_1h", &q.RotationPriceMin1h, defaultRotationPriceMin),
		floatFieldDefault("trade_quality.rotation_oi_min_1h", &q.RotationOIMin1h, defaultRotationOIMin),
		floatFieldDefault("trade_quality.range_weak_imbalance", &q.RangeWeakImbalance, defaultRangeWeakImbalance),
		fieldDefault{
			key:   "trade_quality.poor_condition_count",
			need:  func() bool { return q.PoorConditionCount <= 0 },
			apply: func() { q.PoorConditionCount = defaultPoorConditionCount },
		},
	)
}

func (d *DirectionConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("direction.trend.long.min_imbalance_1h", &d.Trend.Long.MinImbalance1h, 0.6),
		floatFieldDefault("direction.trend.long.min_oi_change_1h", &d.Trend.Long.MinOIChange1h, 0.05),
		floatFieldDefault("direction.trend.long.min_price_change_6h", &d.Trend.Long.MinPriceChange6h, 0.03),
		floatFieldDefault("direction.trend.short.min_imbalance_1h", &d.Trend.Short.MinImbalance1h, 0.6),
		floatFieldDefault("direction.trend.short.min_oi_change_1h", &d.Trend.Short.MinOIChange1h, 0.05),
		floatFieldDefault("direction.trend.short.min_price_change_6h", &d.Trend.Short.MinPriceChange6h, 0.03),
		floatFieldDefault("direction.range.long.min_imbalance_15m", &d.Range.Long.MinImbalance15m, 0.45),
		floatFieldDefault("direction.range.long.min_oi_change_1h", &d.Range.Long.MinOIChange1h, 0.02),
		floatFieldDefault("direction.range.long.max_price_change_6h", &d.Range.Long.MaxPriceChange6h, 0.02),
		floatFieldDefault("direction.range.short.min_imbalance_15m", &d.Range.Short.MinImbalance15m, 0.45),
		floatFieldDefault("direction.range.short.min_oi_change_1h", &d.Range.Short.MinOIChange1h, 0.02),
		floatFieldDefault("direction.range.short.max_price_change_6h", &d.Range.Short.MaxPriceChange6h, 0.02),
		floatFieldDefault("direction.volume_confirm_ratio", &d.VolumeConfirmRatio, defaultVolumeConfirmRatio),
		floatFieldDefault("direction.funding_long_max", &d.FundingLongMax, defaultFundingLongMax),
		fieldDefault{
			key:   "direction.funding_short_min",
			need:  func() bool { return d.FundingShortMin == 0 },
			apply: func() { d.FundingShortMin = defaultFundingShortMin },
		},
	)
}

func (c *ConfidenceScoringConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	if c.RegimeScores == nil {
		c.RegimeScores = map[string]float64{"trend": 20, "range": 10, "extreme": 0}
	}
	if c.QualityScores == nil {
		c.QualityScores = map[string]float64{"good": 20, "uncertain": 5, "poor": 0}
	}
	applyFieldDefaults(keys,
		floatFieldDefault("confidence_scoring.base_score", &c.BaseScore, defaultBaseScore),
		floatFieldDefault("confidence_scoring.reinforcing_tag_score", &c.ReinforcingScore, defaultReinforcingScore),
		floatFieldDefault("confidence_scoring.bands.medium_min", &c.Bands.MediumMin, defaultMediumMin),
		floatFieldDefault("confidence_scoring.bands.high_min", &c.Bands.HighMin, defaultHighMin),
		floatFieldDefault("confidence_scoring.bands.ultra_min", &c.Bands.UltraMin, defaultUltraMin),
		stringFieldDefault("confidence_scoring.uncertain_cap", &c.UncertainCap, defaultUncertainCap),
		boolFieldDefault("confidence_scoring.strong_signal_boost.enabled", &c.StrongSignalBoost.Enabled, true),
	)
	if len(c.StrongSignalBoost.RequiredTags) == 0 {
		c.StrongSignalBoost.RequiredTags = []string{"TREND_ALIGNED", "OI_CONFIRMED", "VOLUME_CONFIRMED"}
	}
}

func (r *ReasonTagRulesConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	if r.Caps == nil {
		r.Caps = map[string]string{
			"ABSORPTION_RISK":     "MEDIUM",
			"FUNDING_NOISE":       "MEDIUM",
			"OI_PRICE_DIVERGENCE": "MEDIUM",
			"RANGE_WEAK_SIGNAL":   "MEDIUM",
		}
	}
}

func (e *ExecutableControlConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("executable_control.reduced_min_confidence", &e.ReducedMinConfidence, defaultReducedMinConfidence),
	)
}

func (f *FrequencyControlConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("frequency_control.short.cooldown", &f.Short.Cooldown, defaultShortCooldown),
		stringFieldDefault("frequency_control.short.min_interval", &f.Short.MinInterval, defaultShortMinInterval),
		stringFieldDefault("frequency_control.short.flip_cooldown", &f.Short.FlipCooldown, defaultShortFlipCooldown),
		stringFieldDefault("frequency_control.medium.cooldown", &f.Medium.Cooldown, defaultMediumCooldown),
		stringFieldDefault("frequency_control.medium.min_interval", &f.Medium.MinInterval, defaultMediumMinInterval),
		stringFieldDefault("frequency_control.medium.flip_cooldown", &f.Medium.FlipCooldown, defaultMediumFlipCooldown),
	)
}

func (d *DualTimeframeConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("dual_timeframe_control.enabled", &d.Enabled, true),
		stringFieldDefault("dual_timeframe_control.major_flip_cooldown", &d.MajorFlipCooldown, defaultMajorFlipCooldown),
	)
}

func (m *MultiTimeframeConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("multi_timeframe.coverage_ratio", &m.CoverageRatio, defaultCoverageRatio),
	)
	if len(m.ShortWindows) == 0 {
		m.ShortWindows = []string{"5m", "15m", "1h"}
	}
	if len(m.MediumWindows) == 0 {
		m.MediumWindows = []string{"1h", "6h", "24h"}
	}
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.interval", &s.Interval, defaultSchedulerInterval),
		fieldDefault{
			key:   "scheduler.offset_seconds",
			need:  func() bool { return s.OffsetSeconds <= 0 },
			apply: func() { s.OffsetSeconds = defaultSchedulerOffset },
		},
	)
}

func (d *DecisionLogConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("decision_log.path", &d.Path, defaultDecisionLogPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
