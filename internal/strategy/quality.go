package strategy

import (
	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"
)

// classifyQuality 信号质量闸门（流水线第 4 步，第二道硬闸门）。
// 吸收风险、资金费率噪声、价格/OI 背离计入 POOR 判定；
// RANGE 下的弱信号只降级为 UNCERTAIN，不计入 POOR。
func classifyQuality(f feature.Set, regime signal.MarketRegime, th config.QualityThresholds) (signal.TradeQuality, signal.TagList) {
	var tags signal.TagList
	conditions := 0

	// 吸收风险：高主动失衡但量能异常低，大单在被动吸收。
	if absGTE(f.TakerImbalance1h, th.AbsorptionImbalance) && lte(f.VolumeRatio1h, th.AbsorptionVolumeRatio) {
		tags = tags.Append(signal.TagAbsorptionRisk)
		conditions++
	}

	// 噪声：资金费率大幅摆动却没有方向性跟随。
	if diffAbsGTE(f.FundingRate, f.PrevFundingRate, th.NoiseFundingSwing) && absLT(f.PriceChange1h, th.NoiseFollowThrough1h) {
		tags = tags.Append(signal.TagFundingNoise)
		conditions++
	}

	// 轮动风险：价格与 OI 明显背离。
	if oppositeSigns(f.PriceChange1h, f.OIChange1h) &&
		absGTE(f.PriceChange1h, th.RotationPriceMin1h) && absGTE(f.OIChange1h, th.RotationOIMin1h) {
		tags = tags.Append(signal.TagOIPriceDivergence)
		conditions++
	}

	rangeWeak := regime == signal.RegimeRange && absLT(f.TakerImbalance1h, th.RangeWeakImbalance)
	if rangeWeak {
		tags = tags.Append(signal.TagRangeWeakSignal)
	}

	switch {
	case conditions >= th.PoorConditionCount:
		return signal.QualityPoor, tags
	case conditions > 0 || rangeWeak:
		return signal.QualityUncertain, tags
	default:
		return signal.QualityGood, tags
	}
}
