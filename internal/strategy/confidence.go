package strategy

import (
	"vigil/internal/config"
	"vigil/internal/signal"
)

// scoreConfidence 置信度打分（流水线第 9 步）。
// 先加性计分（决策强度 + 状态 + 质量 + 佐证标签），再按标签/质量上限向下
// 钳制，最后在全部强信号佐证齐备且不突破已施加上限的前提下，允许一次
// 离散上调（strong-signal boost）。
func scoreConfidence(
	dir signal.Direction,
	regime signal.MarketRegime,
	quality signal.TradeQuality,
	tags signal.TagList,
	th *config.Thresholds,
) (signal.Confidence, float64) {
	sc := th.Confidence

	score := 0.0
	if dir.IsSignal() {
		score += sc.BaseScore
	}
	score += sc.RegimeScores[regime]
	score += sc.QualityScores[quality]
	score += sc.ReinforcingScore * float64(countReinforcing(tags, sc.BoostRequiredTags))

	level := bandFor(score, sc)

	// 向下钳制：UNCERTAIN 质量与带上限的标签都能压低置信度。
	capFloor := signal.ConfidenceUltra
	if quality == signal.QualityUncertain {
		capFloor = signal.MinConfidence(capFloor, sc.UncertainCap)
	}
	for _, tag := range tags {
		if tagCap, ok := th.CapFor(tag); ok {
			capFloor = signal.MinConfidence(capFloor, tagCap)
		}
	}
	level = signal.MinConfidence(level, capFloor)

	// 一次性上调：要求全部佐证标签齐备，且上调结果不得超过已施加的上限。
	if sc.BoostEnabled && dir.IsSignal() && tags.ContainsAll(sc.BoostRequiredTags) {
		boosted := level.StepUp()
		if !capFloor.Below(boosted) {
			level = boosted
		}
	}

	return level, score
}

func bandFor(score float64, sc config.ConfidenceThresholds) signal.Confidence {
	switch {
	case score >= sc.UltraMin:
		return signal.ConfidenceUltra
	case score >= sc.HighMin:
		return signal.ConfidenceHigh
	case score >= sc.MediumMin:
		return signal.ConfidenceMedium
	default:
		return signal.ConfidenceLow
	}
}

func countReinforcing(tags signal.TagList, reinforcing []signal.ReasonTag) int {
	n := 0
	for _, tag := range reinforcing {
		if tags.Contains(tag) {
			n++
		}
	}
	return n
}
