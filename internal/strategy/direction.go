package strategy

import (
	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"
)

// evaluateDirection 方向评估与优先级裁决（流水线第 5、6 步）。
// 多空两侧独立评估；同时满足时 SHORT 优先（既定的平局规则，不是数据错误），
// 但保留两侧标签与 BOTH_DIRECTIONS_CONFLICT 供审计。
func evaluateDirection(f feature.Set, regime signal.MarketRegime, th config.DirectionThresholds) (signal.Direction, signal.TagList) {
	longOK, longTags := longPermitted(f, regime, th)
	shortOK, shortTags := shortPermitted(f, regime, th)

	switch {
	case longOK && shortOK:
		tags := signal.TagList{}.Append(signal.TagLongSignal, signal.TagShortSignal, signal.TagBothDirectionsConflict)
		return signal.Short, tags.Append(shortTags...)
	case shortOK:
		return signal.Short, signal.TagList{signal.TagShortSignal}.Append(shortTags...)
	case longOK:
		return signal.Long, signal.TagList{signal.TagLongSignal}.Append(longTags...)
	default:
		return signal.NoTrade, signal.TagList{signal.TagNoClearDirection}
	}
}

func longPermitted(f feature.Set, regime signal.MarketRegime, th config.DirectionThresholds) (bool, signal.TagList) {
	var tags signal.TagList
	switch regime {
	case signal.RegimeTrend:
		rule := th.Trend.Long
		if !(gte(f.TakerImbalance1h, rule.MinImbalance1h) &&
			gte(f.OIChange1h, rule.MinOIChange1h) &&
			gte(f.PriceChange6h, rule.MinPriceChange6h)) {
			return false, nil
		}
		tags = tags.Append(signal.TagTrendAligned, signal.TagOIConfirmed)
	case signal.RegimeRange:
		rule := th.Range.Long
		if !(gte(f.TakerImbalance15m, rule.MinImbalance15m) &&
			gte(f.OIChange1h, rule.MinOIChange1h) &&
			absLT(f.PriceChange6h, rule.MaxPriceChange6h)) {
			return false, nil
		}
		tags = tags.Append(signal.TagOIConfirmed)
	default:
		// EXTREME 已被风险闸门拦截，这里不会产生方向。
		return false, nil
	}
	if gte(f.VolumeRatio1h, th.VolumeConfirmRatio) {
		tags = tags.Append(signal.TagVolumeConfirmed)
	}
	return true, tags
}

func shortPermitted(f feature.Set, regime signal.MarketRegime, th config.DirectionThresholds) (bool, signal.TagList) {
	var tags signal.TagList
	switch regime {
	case signal.RegimeTrend:
		rule := th.Trend.Short
		if !(lte(f.TakerImbalance1h, -rule.MinImbalance1h) &&
			gte(f.OIChange1h, rule.MinOIChange1h) &&
			lte(f.PriceChange6h, -rule.MinPriceChange6h)) {
			return false, nil
		}
		tags = tags.Append(signal.TagTrendAligned, signal.TagOIConfirmed)
	case signal.RegimeRange:
		rule := th.Range.Short
		if !(lte(f.TakerImbalance15m, -rule.MinImbalance15m) &&
			gte(f.OIChange1h, rule.MinOIChange1h) &&
			absLT(f.PriceChange6h, rule.MaxPriceChange6h)) {
			return false, nil
		}
		tags = tags.Append(signal.TagOIConfirmed)
	default:
		return false, nil
	}
	if gte(f.VolumeRatio1h, th.VolumeConfirmRatio) {
		tags = tags.Append(signal.TagVolumeConfirmed)
	}
	return true, tags
}

// fundingOverride 资金费率否决（流水线第 7 步）。
// 过高正费率下做多、过低负费率下做空都会付出惩罚性持仓成本，
// 且行情大概率已被提前定价，降级为 NO_TRADE。
func fundingOverride(dir signal.Direction, f feature.Set, th config.DirectionThresholds) (signal.Direction, signal.TagList) {
	switch dir {
	case signal.Long:
		if f.FundingRate != nil && *f.FundingRate > th.FundingLongMax {
			return signal.NoTrade, signal.TagList{signal.TagFundingOverrideLong}
		}
	case signal.Short:
		if f.FundingRate != nil && *f.FundingRate < th.FundingShortMin {
			return signal.NoTrade, signal.TagList{signal.TagFundingOverrideShort}
		}
	}
	return dir, nil
}
