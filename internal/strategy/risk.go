package strategy

import (
	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"
)

// riskGate 风险敞口闸门（流水线第 3 步，第一道硬闸门）。
// 任一风险签名命中即拒绝敞口，后续方向信号再强也强制 NO_TRADE。
func riskGate(f feature.Set, regime signal.MarketRegime, th config.RiskThresholds) (bool, signal.TagList) {
	var tags signal.TagList

	if regime == signal.RegimeExtreme {
		tags = tags.Append(signal.TagExtremeVolatility)
	}

	// 清算瀑布签名：价格急动 + OI 急降。
	if absGTE(f.PriceChange1h, th.LiquidationPriceDrop1h) && lte(f.OIChange1h, -th.LiquidationOIDrop1h) {
		tags = tags.Append(signal.TagLiquidationCascade)
	}

	// 拥挤交易签名：资金费率极端 + OI 高增长。
	if absGTE(f.FundingRate, th.CrowdingFundingAbs) && gte(f.OIChange6h, th.CrowdingOIGrowth6h) {
		tags = tags.Append(signal.TagCrowdedTrade)
	}

	// 极端放量。
	if gte(f.VolumeRatio1h, th.ExtremeVolumeRatio) {
		tags = tags.Append(signal.TagVolumeSpike)
	}

	return len(tags) == 0, tags
}
