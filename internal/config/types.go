package config

import "strings"

// Config 是 vigil 的原始配置载体（阈值编译前的形态）。
// 字段与配置文件一一对应；typed 阈值树见 thresholds.go。
type Config struct {
	App            AppConfig               `toml:"app"`
	SymbolUniverse SymbolUniverseConfig    `toml:"symbol_universe"`
	Market         MarketConfig            `toml:"market"`
	Regime         MarketRegimeConfig      `toml:"market_regime"`
	Risk           RiskExposureConfig      `toml:"risk_exposure"`
	Quality        TradeQualityConfig      `toml:"trade_quality"`
	Direction      DirectionConfig         `toml:"direction"`
	Confidence     ConfidenceScoringConfig `toml:"confidence_scoring"`
	ReasonTagRules ReasonTagRulesConfig    `toml:"reason_tag_rules"`
	Executable     ExecutableControlConfig `toml:"executable_control"`
	Frequency      FrequencyControlConfig  `toml:"frequency_control"`
	Dual           DualTimeframeConfig     `toml:"dual_timeframe_control"`
	MultiTimeframe MultiTimeframeConfig    `toml:"multi_timeframe"`
	AuxiliaryTags  AuxiliaryTagsConfig     `toml:"auxiliary_tags"`
	Scheduler      SchedulerConfig         `toml:"scheduler"`
	Notify         NotifyConfig            `toml:"notify"`
	DecisionLog    DecisionLogConfig       `toml:"decision_log"`
	StateStore     StateStoreConfig        `toml:"state_store"`

	// normalized 合并后配置的规范化字节，Load 填充，版本哈希用。
	normalized []byte `toml:"-"`
	// sourcePath 入口配置文件路径，Load 填充。
	sourcePath string `toml:"-"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// SymbolUniverseConfig 评估标的集合。
type SymbolUniverseConfig struct {
	Symbols []string `toml:"symbols"`
}

// MarketConfig 描述行情特征来源（快照构建器）。
type MarketConfig struct {
	Name           string `toml:"name"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// MarketRegimeConfig 市场状态分界阈值，均为小数分数（0.05 = 5%）。
type MarketRegimeConfig struct {
	ExtremePriceChange1h    float64 `toml:"extreme_price_change_1h"`
	TrendPriceChange6h      float64 `toml:"trend_price_change_6h"`
	TrendSteepPriceChange1h float64 `toml:"trend_steep_price_change_1h"`
}

// RiskExposureConfig 第一道硬闸门阈值。
type RiskExposureConfig struct {
	LiquidationPriceDrop1h float64 `toml:"liquidation_price_drop_1h"`
	LiquidationOIDrop1h    float64 `toml:"liquidation_oi_drop_1h"`
	CrowdingFundingAbs     float64 `toml:"crowding_funding_abs"`
	CrowdingOIGrowth6h     float64 `toml:"crowding_oi_growth_6h"`
	// ExtremeVolumeRatio 是相对基线的倍数（如 5.0 = 5 倍量），不做小数校准检查。
	ExtremeVolumeRatio float64 `toml:"extreme_volume_ratio"`

	// 旧键，migrateDeprecatedKeys 迁移后仅作中转。
	LegacyLiqCascadePriceDrop float64 `toml:"liq_cascade_price_drop"`
	LegacyLiqCascadeOIDrop    float64 `toml:"liq_cascade_oi_drop"`
}

// TradeQualityConfig 第二道硬闸门阈值。
type TradeQualityConfig struct {
	AbsorptionImbalance   float64 `toml:"absorption_imbalance"`
	AbsorptionVolumeRatio float64 `toml:"absorption_volume_ratio"`
	NoiseFundingSwing     float64 `toml:"noise_funding_swing"`
	NoiseFollowThrough1h  float64 `toml:"noise_follow_through_1h"`
	RotationPriceMin1h    float64 `toml:"rotation_price_min_1h"`
	RotationOIMin1h       float64 `toml:"rotation_oi_min_1h"`
	RangeWeakImbalance    float64 `toml:"range_weak_imbalance"`
	// PoorConditionCount 同时命中多少个质量问题判定为 POOR。
	PoorConditionCount int `toml:"poor_condition_count"`

	LegacyLowVolumeRatio float64 `toml:"low_volume_ratio"`
}

// DirectionRuleConfig 单方向准入阈值。imbalance/oi/price 均取幅度（正数），
// 做空侧在评估时取镜像。
type DirectionRuleConfig struct {
	MinImbalance1h   float64 `toml:"min_imbalance_1h"`
	MinImbalance15m  float64 `toml:"min_imbalance_15m"`
	MinOIChange1h    float64 `toml:"min_oi_change_1h"`
	MinPriceChange6h float64 `toml:"min_price_change_6h"`
	MaxPriceChange6h float64 `toml:"max_price_change_6h"`
}

type DirectionRegimeConfig struct {
	Long  DirectionRuleConfig `toml:"long"`
	Short DirectionRuleConfig `toml:"short"`
}

type DirectionConfig struct {
	Trend DirectionRegimeConfig `toml:"trend"`
	Range DirectionRegimeConfig `toml:"range"`
	// VolumeConfirmRatio 倍数阈值，达到则记 VOLUME_CONFIRMED。
	VolumeConfirmRatio float64 `toml:"volume_confirm_ratio"`
	// FundingLongMax / FundingShortMin 资金费率否决边界（小数分数，每期）。
	FundingLongMax  float64 `toml:"funding_long_max"`
	FundingShortMin float64 `toml:"funding_short_min"`
}

type ConfidenceBoostConfig struct {
	Enabled      bool     `toml:"enabled"`
	RequiredTags []string `toml:"required_tags"`
}

type ConfidenceBandsConfig struct {
	MediumMin float64 `toml:"medium_min"`
	HighMin   float64 `toml:"high_min"`
	UltraMin  float64 `toml:"ultra_min"`
}

type ConfidenceScoringConfig struct {
	BaseScore         float64               `toml:"base_score"`
	RegimeScores      map[string]float64    `toml:"regime_scores"`
	QualityScores     map[string]float64    `toml:"quality_scores"`
	ReinforcingScore  float64               `toml:"reinforcing_tag_score"`
	Bands             ConfidenceBandsConfig `toml:"bands"`
	UncertainCap      string                `toml:"uncertain_cap"`
	StrongSignalBoost ConfidenceBoostConfig `toml:"strong_signal_boost"`
}

// ReasonTagRulesConfig 标签 -> 置信度上限。键与值都必须是已知枚举拼写。
type ReasonTagRulesConfig struct {
	Caps map[string]string `toml:"caps"`
}

type ExecutableControlConfig struct {
	ReducedMinConfidence string `toml:"reduced_min_confidence"`

	LegacyMinConfidence string `toml:"min_confidence"`
}

// FrequencyWindowConfig 单时间级别频控参数，duration 字符串（"30m"/"2h"/"1d"）。
type FrequencyWindowConfig struct {
	Cooldown     string `toml:"cooldown"`
	MinInterval  string `toml:"min_interval"`
	FlipCooldown string `toml:"flip_cooldown"`

	LegacyCooldownMinutes int `toml:"cooldown_minutes"`
}

type FrequencyControlConfig struct {
	Short  FrequencyWindowConfig `toml:"short"`
	Medium FrequencyWindowConfig `toml:"medium"`
}

type DualTimeframeConfig struct {
	Enabled           bool   `toml:"enabled"`
	MajorFlipCooldown string `toml:"major_flip_cooldown"`
}

// MultiTimeframeConfig 覆盖度推导规则（可选节）。
type MultiTimeframeConfig struct {
	CoverageRatio float64  `toml:"coverage_ratio"`
	ShortWindows  []string `toml:"short_windows"`
	MediumWindows []string `toml:"medium_windows"`
}

// AuxiliaryTagsConfig 额外启用的辅助标签（可选节）。
type AuxiliaryTagsConfig struct {
	Enabled []string `toml:"enabled"`
}

type SchedulerConfig struct {
	Interval      string `toml:"interval"`
	OffsetSeconds int    `toml:"offset_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type DecisionLogConfig struct {
	Path string `toml:"path"`
}

// StateStoreConfig path 为空时使用内存实现。
type StateStoreConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
