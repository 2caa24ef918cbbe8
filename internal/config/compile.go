package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"vigil/internal/signal"
)

// Compile 读取配置并编译为不可变阈值树。任何校验失败返回 *ValidationError
// （致命、不重试）。编译对相同配置字节是确定性的：Version 即规范化源的
// SHA-256。
func Compile(path string) (*Thresholds, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Compile()
}

// Compile 将已加载且通过校验的 Config 编译为 Thresholds。
func (c *Config) Compile() (*Thresholds, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	reduced, err := signal.ParseConfidence(c.Executable.ReducedMinConfidence)
	if err != nil {
		return nil, valErrf("executable_control", "reduced_min_confidence", "%v", err)
	}
	uncertainCap, err := signal.ParseConfidence(c.Confidence.UncertainCap)
	if err != nil {
		return nil, valErrf("confidence_scoring", "uncertain_cap", "%v", err)
	}

	tagCaps := make(map[signal.ReasonTag]signal.Confidence, len(c.ReasonTagRules.Caps))
	for rawTag, rawCap := range c.ReasonTagRules.Caps {
		tag, err := signal.ParseReasonTag(rawTag)
		if err != nil {
			return nil, valErrf("reason_tag_rules", "caps", "%v", err)
		}
		capLevel, err := signal.ParseConfidence(rawCap)
		if err != nil {
			return nil, valErrf("reason_tag_rules", "caps."+rawTag, "%v", err)
		}
		tagCaps[tag] = capLevel
	}

	boostTags := make([]signal.ReasonTag, 0, len(c.Confidence.StrongSignalBoost.RequiredTags))
	for _, raw := range c.Confidence.StrongSignalBoost.RequiredTags {
		tag, err := signal.ParseReasonTag(raw)
		if err != nil {
			return nil, valErrf("confidence_scoring", "strong_signal_boost.required_tags", "%v", err)
		}
		boostTags = append(boostTags, tag)
	}

	frequency := make(map[signal.Timeframe]FrequencyWindow, 2)
	shortWin, err := c.Frequency.Short.compile("frequency_control.short")
	if err != nil {
		return nil, err
	}
	mediumWin, err := c.Frequency.Medium.compile("frequency_control.medium")
	if err != nil {
		return nil, err
	}
	frequency[signal.TimeframeShort] = shortWin
	frequency[signal.TimeframeMedium] = mediumWin

	majorFlip, err := parseWindowDuration(c.Dual.MajorFlipCooldown)
	if err != nil {
		return nil, valErrf("dual_timeframe_control", "major_flip_cooldown", "%v", err)
	}

	symbols := make([]string, 0, len(c.SymbolUniverse.Symbols))
	for _, sym := range c.SymbolUniverse.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}

	sum := sha256.Sum256(c.normalized)

	return &Thresholds{
		Version: hex.EncodeToString(sum[:]),
		Symbols: symbols,
		Regime: RegimeThresholds{
			ExtremePriceChange1h:    c.Regime.ExtremePriceChange1h,
			TrendPriceChange6h:      c.Regime.TrendPriceChange6h,
			TrendSteepPriceChange1h: c.Regime.TrendSteepPriceChange1h,
		},
		Risk: RiskThresholds{
			LiquidationPriceDrop1h: c.Risk.LiquidationPriceDrop1h,
			LiquidationOIDrop1h:    c.Risk.LiquidationOIDrop1h,
			CrowdingFundingAbs:     c.Risk.CrowdingFundingAbs,
			CrowdingOIGrowth6h:     c.Risk.CrowdingOIGrowth6h,
			ExtremeVolumeRatio:     c.Risk.ExtremeVolumeRatio,
		},
		Quality: QualityThresholds{
			AbsorptionImbalance:   c.Quality.AbsorptionImbalance,
			AbsorptionVolumeRatio: c.Quality.AbsorptionVolumeRatio,
			NoiseFundingSwing:     c.Quality.NoiseFundingSwing,
			NoiseFollowThrough1h:  c.Quality.NoiseFollowThrough1h,
			RotationPriceMin1h:    c.Quality.RotationPriceMin1h,
			RotationOIMin1h:       c.Quality.RotationOIMin1h,
			RangeWeakImbalance:    c.Quality.RangeWeakImbalance,
			PoorConditionCount:    c.Quality.PoorConditionCount,
		},
		Direction: DirectionThresholds{
			Trend: DirectionRegimeRules{
				Long:  c.Direction.Trend.Long.compile(),
				Short: c.Direction.Trend.Short.compile(),
			},
			Range: DirectionRegimeRules{
				Long:  c.Direction.Range.Long.compile(),
				Short: c.Direction.Range.Short.compile(),
			},
			VolumeConfirmRatio: c.Direction.VolumeConfirmRatio,
			FundingLongMax:     c.Direction.FundingLongMax,
			FundingShortMin:    c.Direction.FundingShortMin,
		},
		Confidence: ConfidenceThresholds{
			BaseScore: c.Confidence.BaseScore,
			RegimeScores: map[signal.MarketRegime]float64{
				signal.RegimeTrend:   c.Confidence.RegimeScores["trend"],
				signal.RegimeRange:   c.Confidence.RegimeScores["range"],
				signal.RegimeExtreme: c.Confidence.RegimeScores["extreme"],
			},
			QualityScores: map[signal.TradeQuality]float64{
				signal.QualityGood:      c.Confidence.QualityScores["good"],
				signal.QualityUncertain: c.Confidence.QualityScores["uncertain"],
				signal.QualityPoor:      c.Confidence.QualityScores["poor"],
			},
			ReinforcingScore:  c.Confidence.ReinforcingScore,
			MediumMin:         c.Confidence.Bands.MediumMin,
			HighMin:           c.Confidence.Bands.HighMin,
			UltraMin:          c.Confidence.Bands.UltraMin,
			UncertainCap:      uncertainCap,
			BoostEnabled:      c.Confidence.StrongSignalBoost.Enabled,
			BoostRequiredTags: boostTags,
		},
		TagCaps:              tagCaps,
		ReducedMinConfidence: reduced,
		Frequency:            frequency,
		DualEnabled:          c.Dual.Enabled,
		MajorFlipCooldown:    majorFlip,
		Coverage: CoverageRules{
			Ratio:         c.MultiTimeframe.CoverageRatio,
			ShortWindows:  append([]string(nil), c.MultiTimeframe.ShortWindows...),
			MediumWindows: append([]string(nil), c.MultiTimeframe.MediumWindows...),
		},
	}, nil
}

func (w *FrequencyWindowConfig) compile(section string) (FrequencyWindow, error) {
	cooldown, err := parseWindowDuration(w.Cooldown)
	if err != nil {
		return FrequencyWindow{}, valErrf(section, "cooldown", "%v", err)
	}
	minInterval, err := parseWindowDuration(w.MinInterval)
	if err != nil {
		return FrequencyWindow{}, valErrf(section, "min_interval", "%v", err)
	}
	flip, err := parseWindowDuration(w.FlipCooldown)
	if err != nil {
		return FrequencyWindow{}, valErrf(section, "flip_cooldown", "%v", err)
	}
	return FrequencyWindow{Cooldown: cooldown, MinInterval: minInterval, FlipCooldown: flip}, nil
}

func (r DirectionRuleConfig) compile() DirectionRule {
	return DirectionRule{
		MinImbalance1h:   r.MinImbalance1h,
		MinImbalance15m:  r.MinImbalance15m,
		MinOIChange1h:    r.MinOIChange1h,
		MinPriceChange6h: r.MinPriceChange6h,
		MaxPriceChange6h: r.MaxPriceChange6h,
	}
}
