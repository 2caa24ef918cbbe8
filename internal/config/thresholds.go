package config

import (
	"time"

	"vigil/internal/signal"
)

// Thresholds 是配置编译产物：不可变的 typed 阈值树，进程内按引用共享。
// 热加载产生新实例原子替换旧实例，绝不就地修改。
type Thresholds struct {
	// Version 规范化配置源的 SHA-256（十六进制）。
	Version string

	Symbols []string

	Regime     RegimeThresholds
	Risk       RiskThresholds
	Quality    QualityThresholds
	Direction  DirectionThresholds
	Confidence ConfidenceThresholds

	// TagCaps 标签 -> 置信度上限（reason_tag_rules 编译结果）。
	TagCaps map[signal.ReasonTag]signal.Confidence
	// ReducedMinConfidence ALLOW_REDUCED 所需的置信度下限。
	ReducedMinConfidence signal.Confidence

	// Frequency 按时间级别索引的频控参数。
	Frequency map[signal.Timeframe]FrequencyWindow
	// DualEnabled 是否启用双时间级别频控。
	DualEnabled bool
	// MajorFlipCooldown 对齐态（BOTH_LONG <-> BOTH_SHORT）翻转冷却。
	MajorFlipCooldown time.Duration

	Coverage CoverageRules
}

type RegimeThresholds struct {
	ExtremePriceChange1h    float64
	TrendPriceChange6h      float64
	TrendSteepPriceChange1h float64
}

type RiskThresholds struct {
	LiquidationPriceDrop1h float64
	LiquidationOIDrop1h    float64
	CrowdingFundingAbs     float64
	CrowdingOIGrowth6h     float64
	ExtremeVolumeRatio     float64
}

type QualityThresholds struct {
	AbsorptionImbalance   float64
	AbsorptionVolumeRatio float64
	NoiseFundingSwing     float64
	NoiseFollowThrough1h  float64
	RotationPriceMin1h    float64
	RotationOIMin1h       float64
	RangeWeakImbalance    float64
	PoorConditionCount    int
}

// DirectionRule 单方向准入阈值（编译后形态，幅度为正数）。
type DirectionRule struct {
	MinImbalance1h   float64
	MinImbalance15m  float64
	MinOIChange1h    float64
	MinPriceChange6h float64
	MaxPriceChange6h float64
}

type DirectionRegimeRules struct {
	Long  DirectionRule
	Short DirectionRule
}

type DirectionThresholds struct {
	Trend DirectionRegimeRules
	Range DirectionRegimeRules

	VolumeConfirmRatio float64
	FundingLongMax     float64
	FundingShortMin    float64
}

type ConfidenceThresholds struct {
	BaseScore        float64
	RegimeScores     map[signal.MarketRegime]float64
	QualityScores    map[signal.TradeQuality]float64
	ReinforcingScore float64

	MediumMin float64
	HighMin   float64
	UltraMin  float64

	UncertainCap signal.Confidence

	BoostEnabled      bool
	BoostRequiredTags []signal.ReasonTag
}

// FrequencyWindow 单时间级别频控参数。
type FrequencyWindow struct {
	Cooldown     time.Duration
	MinInterval  time.Duration
	FlipCooldown time.Duration
}

// CoverageRules 覆盖度推导规则。
type CoverageRules struct {
	Ratio         float64
	ShortWindows  []string
	MediumWindows []string
}

// Window 返回指定时间级别的频控参数；未配置的级别返回零值。
func (t *Thresholds) Window(tf signal.Timeframe) FrequencyWindow {
	if t == nil || t.Frequency == nil {
		return FrequencyWindow{}
	}
	return t.Frequency[tf]
}

// CapFor 返回标签施加的置信度上限，未配置返回 (ULTRA, false)。
func (t *Thresholds) CapFor(tag signal.ReasonTag) (signal.Confidence, bool) {
	if t == nil || t.TagCaps == nil {
		return signal.ConfidenceUltra, false
	}
	c, ok := t.TagCaps[tag]
	if !ok {
		return signal.ConfidenceUltra, false
	}
	return c, true
}
