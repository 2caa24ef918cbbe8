package signal

import (
	"fmt"
	"strings"
)

// 中文说明：
// 本文件定义决策流水线的封闭枚举。所有枚举均为 string-backed，
// 配置文件中引用的拼写必须能通过 Parse* 解析，否则在编译配置阶段直接失败。

// Direction 交易方向建议。
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	NoTrade Direction = "NO_TRADE"
)

// IsSignal 返回是否为 LONG/SHORT（NO_TRADE 不算信号）。
func (d Direction) IsSignal() bool {
	return d == Long || d == Short
}

// Opposite 返回反向信号；NO_TRADE 返回自身。
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return d
	}
}

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(raw))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	case NoTrade:
		return NoTrade, nil
	default:
		return "", fmt.Errorf("unknown direction: %q", raw)
	}
}

// Confidence 信号置信度，按序排列（LOW < MEDIUM < HIGH < ULTRA）。
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceUltra  Confidence = "ULTRA"
)

var confidenceOrder = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
	ConfidenceUltra:  3,
}

// Ordinal 返回置信度序号，未知值返回 -1。
func (c Confidence) Ordinal() int {
	if ord, ok := confidenceOrder[c]; ok {
		return ord
	}
	return -1
}

// Below 判断 c 是否严格低于 other。
func (c Confidence) Below(other Confidence) bool {
	return c.Ordinal() < other.Ordinal()
}

// StepUp 返回上一档置信度；已是 ULTRA 时返回自身。
func (c Confidence) StepUp() Confidence {
	switch c {
	case ConfidenceLow:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceHigh
	case ConfidenceHigh:
		return ConfidenceUltra
	default:
		return c
	}
}

// MinConfidence 返回两者中较低的一档。
func MinConfidence(a, b Confidence) Confidence {
	if a.Below(b) {
		return a
	}
	return b
}

func ParseConfidence(raw string) (Confidence, error) {
	c := Confidence(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := confidenceOrder[c]; !ok {
		return "", fmt.Errorf("unknown confidence level: %q", raw)
	}
	return c, nil
}

// MarketRegime 市场状态分类。
type MarketRegime string

const (
	RegimeTrend   MarketRegime = "TREND"
	RegimeRange   MarketRegime = "RANGE"
	RegimeExtreme MarketRegime = "EXTREME"
)

func ParseMarketRegime(raw string) (MarketRegime, error) {
	switch MarketRegime(strings.ToUpper(strings.TrimSpace(raw))) {
	case RegimeTrend:
		return RegimeTrend, nil
	case RegimeRange:
		return RegimeRange, nil
	case RegimeExtreme:
		return RegimeExtreme, nil
	default:
		return "", fmt.Errorf("unknown market regime: %q", raw)
	}
}

// TradeQuality 信号环境可靠度，与方向无关。
type TradeQuality string

const (
	QualityGood      TradeQuality = "GOOD"
	QualityUncertain TradeQuality = "UNCERTAIN"
	QualityPoor      TradeQuality = "POOR"
)

func ParseTradeQuality(raw string) (TradeQuality, error) {
	switch TradeQuality(strings.ToUpper(strings.TrimSpace(raw))) {
	case QualityGood:
		return QualityGood, nil
	case QualityUncertain:
		return QualityUncertain, nil
	case QualityPoor:
		return QualityPoor, nil
	default:
		return "", fmt.Errorf("unknown trade quality: %q", raw)
	}
}

// ExecPermission 策略层执行许可，与频控互相独立。
type ExecPermission string

const (
	PermissionAllow        ExecPermission = "ALLOW"
	PermissionAllowReduced ExecPermission = "ALLOW_REDUCED"
	PermissionDeny         ExecPermission = "DENY"
)

func ParseExecPermission(raw string) (ExecPermission, error) {
	switch ExecPermission(strings.ToUpper(strings.TrimSpace(raw))) {
	case PermissionAllow:
		return PermissionAllow, nil
	case PermissionAllowReduced:
		return PermissionAllowReduced, nil
	case PermissionDeny:
		return PermissionDeny, nil
	default:
		return "", fmt.Errorf("unknown execution permission: %q", raw)
	}
}

// Timeframe 频控时间级别。
type Timeframe string

const (
	TimeframeShort  Timeframe = "short"
	TimeframeMedium Timeframe = "medium"
)

func ParseTimeframe(raw string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(raw))) {
	case TimeframeShort:
		return TimeframeShort, nil
	case TimeframeMedium:
		return TimeframeMedium, nil
	default:
		return "", fmt.Errorf("unknown timeframe: %q", raw)
	}
}
