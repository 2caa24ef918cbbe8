package config

import (
	"fmt"
	"math"
	"strings"

	"vigil/internal/signal"
)

// ValidationError 配置校验错误：致命、不重试，启动或热加载时直接失败。
// 历史教训：静默回退默认值曾造成 reduced 许可阈值与标签上限互相锁死，
// 因此所有校验失败一律显式报错。
type ValidationError struct {
	Section string
	Key     string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config validation failed: [%s] %s: %s", e.Section, e.Key, e.Reason)
	}
	return fmt.Sprintf("config validation failed: [%s] %s", e.Section, e.Reason)
}

func valErrf(section, key, format string, args ...any) *ValidationError {
	return &ValidationError{Section: section, Key: key, Reason: fmt.Sprintf(format, args...)}
}

// validate 对配置进行快速失败校验。
func validate(c *Config) error {
	if err := c.SymbolUniverse.validate(); err != nil {
		return err
	}
	if err := validateDecimalCalibration(c); err != nil {
		return err
	}
	if err := c.Quality.validate(); err != nil {
		return err
	}
	if err := c.Direction.validate(); err != nil {
		return err
	}
	if err := c.Confidence.validate(); err != nil {
		return err
	}
	if err := c.ReasonTagRules.validate(); err != nil {
		return err
	}
	if err := c.Executable.validate(); err != nil {
		return err
	}
	if err := c.Frequency.validate(); err != nil {
		return err
	}
	if err := c.Dual.validate(); err != nil {
		return err
	}
	if err := c.AuxiliaryTags.validate(); err != nil {
		return err
	}
	if err := validateCrossField(c); err != nil {
		return err
	}
	return nil
}

func (s *SymbolUniverseConfig) validate() error {
	if len(s.Symbols) == 0 {
		return valErrf("symbol_universe", "symbols", "requires at least one symbol")
	}
	for _, sym := range s.Symbols {
		if strings.TrimSpace(sym) == "" {
			return valErrf("symbol_universe", "symbols", "contains empty symbol")
		}
	}
	return nil
}

// validateDecimalCalibration 检查所有百分比类阈值使用小数分数约定。
// 绝对值 >= 1.0 的值（如把 0.05 写成 5.0）一律拒绝。
// 倍数类阈值（volume ratio）与打分权重不在检查范围。
func validateDecimalCalibration(c *Config) error {
	checks := []struct {
		section string
		key     string
		value   float64
	}{
		{"market_regime", "extreme_price_change_1h", c.Regime.ExtremePriceChange1h},
		{"market_regime", "trend_price_change_6h", c.Regime.TrendPriceChange6h},
		{"market_regime", "trend_steep_price_change_1h", c.Regime.TrendSteepPriceChange1h},
		{"risk_exposure", "liquidation_price_drop_1h", c.Risk.LiquidationPriceDrop1h},
		{"risk_exposure", "liquidation_oi_drop_1h", c.Risk.LiquidationOIDrop1h},
		{"risk_exposure", "crowding_funding_abs", c.Risk.CrowdingFundingAbs},
		{"risk_exposure", "crowding_oi_growth_6h", c.Risk.CrowdingOIGrowth6h},
		{"trade_quality", "absorption_imbalance", c.Quality.AbsorptionImbalance},
		{"trade_quality", "noise_funding_swing", c.Quality.NoiseFundingSwing},
		{"trade_quality", "noise_follow_through_1h", c.Quality.NoiseFollowThrough1h},
		{"trade_quality", "rotation_price_min_1h", c.Quality.RotationPriceMin1h},
		{"trade_quality", "rotation_oi_min_1h", c.Quality.RotationOIMin1h},
		{"trade_quality", "range_weak_imbalance", c.Quality.RangeWeakImbalance},
		{"direction", "trend.long.min_imbalance_1h", c.Direction.Trend.Long.MinImbalance1h},
		{"direction", "trend.long.min_oi_change_1h", c.Direction.Trend.Long.MinOIChange1h},
		{"direction", "trend.long.min_price_change_6h", c.Direction.Trend.Long.MinPriceChange6h},
		{"direction", "trend.short.min_imbalance_1h", c.Direction.Trend.Short.MinImbalance1h},
		{"direction", "trend.short.min_oi_change_1h", c.Direction.Trend.Short.MinOIChange1h},
		{"direction", "trend.short.min_price_change_6h", c.Direction.Trend.Short.MinPriceChange6h},
		{"direction", "range.long.min_imbalance_15m", c.Direction.Range.Long.MinImbalance15m},
		{"direction", "range.long.min_oi_change_1h", c.Direction.Range.Long.MinOIChange1h},
		{"direction", "range.long.max_price_change_6h", c.Direction.Range.Long.MaxPriceChange6h},
		{"direction", "range.short.min_imbalance_15m", c.Direction.Range.Short.MinImbalance15m},
		{"direction", "range.short.min_oi_change_1h", c.Direction.Range.Short.MinOIChange1h},
		{"direction", "range.short.max_price_change_6h", c.Direction.Range.Short.MaxPriceChange6h},
		{"direction", "funding_long_max", c.Direction.FundingLongMax},
		{"direction", "funding_short_min", c.Direction.FundingShortMin},
		{"multi_timeframe", "coverage_ratio", c.MultiTimeframe.CoverageRatio},
	}
	for _, chk := range checks {
		if math.Abs(chk.value) >= 1.0 {
			return valErrf(chk.section, chk.key,
				"expected decimal fraction (0.05 = 5%%), got %v; looks like a percentage-point value", chk.value)
		}
	}
	return nil
}

func (q *TradeQualityConfig) validate() error {
	if q.AbsorptionVolumeRatio <= 0 {
		return valErrf("trade_quality", "absorption_volume_ratio", "must be > 0")
	}
	if q.PoorConditionCount < 1 {
		return valErrf("trade_quality", "poor_condition_count", "must be >= 1")
	}
	return nil
}

func (d *DirectionConfig) validate() error {
	if d.VolumeConfirmRatio <= 0 {
		return valErrf("direction", "volume_confirm_ratio", "must be > 0")
	}
	if d.FundingLongMax <= 0 {
		return valErrf("direction", "funding_long_max", "must be > 0")
	}
	if d.FundingShortMin >= 0 {
		return valErrf("direction", "funding_short_min", "must be < 0")
	}
	return nil
}

func (c *ConfidenceScoringConfig) validate() error {
	if _, err := signal.ParseConfidence(c.UncertainCap); err != nil {
		return valErrf("confidence_scoring", "uncertain_cap", "%v", err)
	}
	for _, raw := range c.StrongSignalBoost.RequiredTags {
		if _, err := signal.ParseReasonTag(raw); err != nil {
			return valErrf("confidence_scoring", "strong_signal_boost.required_tags", "%v", err)
		}
	}
	b := c.Bands
	if !(b.MediumMin < b.HighMin && b.HighMin < b.UltraMin) {
		return valErrf("confidence_scoring", "bands",
			"must be strictly increasing: medium_min < high_min < ultra_min (got %v/%v/%v)",
			b.MediumMin, b.HighMin, b.UltraMin)
	}
	return nil
}

func (r *ReasonTagRulesConfig) validate() error {
	for rawTag, rawCap := range r.Caps {
		if _, err := signal.ParseReasonTag(rawTag); err != nil {
			return valErrf("reason_tag_rules", "caps", "%v", err)
		}
		if _, err := signal.ParseConfidence(rawCap); err != nil {
			return valErrf("reason_tag_rules", "caps."+rawTag, "%v", err)
		}
	}
	return nil
}

func (e *ExecutableControlConfig) validate() error {
	if _, err := signal.ParseConfidence(e.ReducedMinConfidence); err != nil {
		return valErrf("executable_control", "reduced_min_confidence", "%v", err)
	}
	return nil
}

func (f *FrequencyControlConfig) validate() error {
	if err := f.Short.validate("frequency_control.short"); err != nil {
		return err
	}
	return f.Medium.validate("frequency_control.medium")
}

func (w *FrequencyWindowConfig) validate(section string) error {
	for key, raw := range map[string]string{
		"cooldown":      w.Cooldown,
		"min_interval":  w.MinInterval,
		"flip_cooldown": w.FlipCooldown,
	} {
		if _, err := parseWindowDuration(raw); err != nil {
			return valErrf(section, key, "%v", err)
		}
	}
	return nil
}

func (d *DualTimeframeConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if _, err := parseWindowDuration(d.MajorFlipCooldown); err != nil {
		return valErrf("dual_timeframe_control", "major_flip_cooldown", "%v", err)
	}
	return nil
}

func (a *AuxiliaryTagsConfig) validate() error {
	for _, raw := range a.Enabled {
		if _, err := signal.ParseReasonTag(raw); err != nil {
			return valErrf("auxiliary_tags", "enabled", "%v", err)
		}
	}
	return nil
}

// validateCrossField 检查 reduced 执行许可的置信度门槛不得高于任何标签或
// UNCERTAIN 质量能施加的上限，否则 ALLOW_REDUCED 路径永远不可达（逻辑死锁）。
// 比较基于置信度枚举的序号。
func validateCrossField(c *Config) error {
	floor, err := signal.ParseConfidence(c.Executable.ReducedMinConfidence)
	if err != nil {
		return valErrf("executable_control", "reduced_min_confidence", "%v", err)
	}
	uncertainCap, err := signal.ParseConfidence(c.Confidence.UncertainCap)
	if err != nil {
		return valErrf("confidence_scoring", "uncertain_cap", "%v", err)
	}
	if uncertainCap.Below(floor) {
		return valErrf("executable_control", "reduced_min_confidence",
			"floor %s exceeds uncertain_cap %s; reduced execution would be unreachable", floor, uncertainCap)
	}
	for rawTag, rawCap := range c.ReasonTagRules.Caps {
		tagCap, err := signal.ParseConfidence(rawCap)
		if err != nil {
			return valErrf("reason_tag_rules", "caps."+rawTag, "%v", err)
		}
		if tagCap.Below(floor) {
			return valErrf("executable_control", "reduced_min_confidence",
				"floor %s exceeds cap %s imposed by tag %s; reduced execution would be unreachable",
				floor, tagCap, rawTag)
		}
	}
	return nil
}
