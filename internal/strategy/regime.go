package strategy

import (
	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"
)

// detectRegime 市场状态分类（流水线第 2 步）。
// EXTREME：1 小时价格变动超过极端阈值；
// TREND：6 小时变动（或陡峭的 1 小时变动）超过趋势阈值；
// 否则 RANGE（默认）。
func detectRegime(f feature.Set, th config.RegimeThresholds) signal.MarketRegime {
	if absGTE(f.PriceChange1h, th.ExtremePriceChange1h) {
		return signal.RegimeExtreme
	}
	if absGTE(f.PriceChange6h, th.TrendPriceChange6h) || absGTE(f.PriceChange1h, th.TrendSteepPriceChange1h) {
		return signal.RegimeTrend
	}
	return signal.RegimeRange
}
