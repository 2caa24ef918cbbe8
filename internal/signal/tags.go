package signal

import (
	"fmt"
	"strings"
)

// ReasonTag 是附着在决策上的稳定符号化标签，用于审计与排查。
// 集合封闭：配置中引用的标签必须在此注册，否则配置编译直接失败。
type ReasonTag string

const (
	// 数据与状态
	TagDataIncomplete ReasonTag = "DATA_INCOMPLETE"

	// 风险敞口闸门
	TagExtremeVolatility  ReasonTag = "EXTREME_VOLATILITY"
	TagLiquidationCascade ReasonTag = "LIQUIDATION_CASCADE"
	TagCrowdedTrade       ReasonTag = "CROWDED_TRADE"
	TagVolumeSpike        ReasonTag = "VOLUME_SPIKE"

	// 质量闸门
	TagAbsorptionRisk    ReasonTag = "ABSORPTION_RISK"
	TagFundingNoise      ReasonTag = "FUNDING_NOISE"
	TagOIPriceDivergence ReasonTag = "OI_PRICE_DIVERGENCE"
	TagRangeWeakSignal   ReasonTag = "RANGE_WEAK_SIGNAL"

	// 方向评估
	TagLongSignal             ReasonTag = "LONG_SIGNAL"
	TagShortSignal            ReasonTag = "SHORT_SIGNAL"
	TagBothDirectionsConflict ReasonTag = "BOTH_DIRECTIONS_CONFLICT"
	TagNoClearDirection       ReasonTag = "NO_CLEAR_DIRECTION"

	// 资金费率否决
	TagFundingOverrideLong  ReasonTag = "FUNDING_OVERRIDE_LONG"
	TagFundingOverrideShort ReasonTag = "FUNDING_OVERRIDE_SHORT"

	// 强信号佐证（用于置信度 boost）
	TagTrendAligned    ReasonTag = "TREND_ALIGNED"
	TagOIConfirmed     ReasonTag = "OI_CONFIRMED"
	TagVolumeConfirmed ReasonTag = "VOLUME_CONFIRMED"

	// 频控
	TagFrequencyCooling    ReasonTag = "FREQUENCY_COOLING"
	TagMinIntervalViolated ReasonTag = "MIN_INTERVAL_VIOLATED"
	TagDirectionFlip       ReasonTag = "DIRECTION_FLIP"
	TagMajorFlipCooling    ReasonTag = "MAJOR_FLIP_COOLING"
)

var knownTags = map[ReasonTag]struct{}{
	TagDataIncomplete:         {},
	TagExtremeVolatility:      {},
	TagLiquidationCascade:     {},
	TagCrowdedTrade:           {},
	TagVolumeSpike:            {},
	TagAbsorptionRisk:         {},
	TagFundingNoise:           {},
	TagOIPriceDivergence:      {},
	TagRangeWeakSignal:        {},
	TagLongSignal:             {},
	TagShortSignal:            {},
	TagBothDirectionsConflict: {},
	TagNoClearDirection:       {},
	TagFundingOverrideLong:    {},
	TagFundingOverrideShort:   {},
	TagTrendAligned:           {},
	TagOIConfirmed:            {},
	TagVolumeConfirmed:        {},
	TagFrequencyCooling:       {},
	TagMinIntervalViolated:    {},
	TagDirectionFlip:          {},
	TagMajorFlipCooling:       {},
}

func ParseReasonTag(raw string) (ReasonTag, error) {
	tag := ReasonTag(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownTags[tag]; !ok {
		return "", fmt.Errorf("unknown reason tag: %q", raw)
	}
	return tag, nil
}

// TagList 有序标签列表，保留流水线各阶段的追加顺序。
type TagList []ReasonTag

// Append 追加标签并去重（保留首次出现的位置）。
func (l TagList) Append(tags ...ReasonTag) TagList {
	for _, tag := range tags {
		if !l.Contains(tag) {
			l = append(l, tag)
		}
	}
	return l
}

func (l TagList) Contains(tag ReasonTag) bool {
	for _, t := range l {
		if t == tag {
			return true
		}
	}
	return false
}

// ContainsAll 判断列表是否包含给定全部标签。
func (l TagList) ContainsAll(tags []ReasonTag) bool {
	for _, tag := range tags {
		if !l.Contains(tag) {
			return false
		}
	}
	return len(tags) > 0
}

// Strings 转为字符串切片（序列化用）。
func (l TagList) Strings() []string {
	out := make([]string, 0, len(l))
	for _, t := range l {
		out = append(out, string(t))
	}
	return out
}
