package strategy

import (
	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/signal"
)

// 中文说明：
// Evaluate 是决策核心：纯函数、无时钟、无外部状态，相同输入必然产生
// 逐位一致的输出，可无锁并发调用。十个阶段按固定顺序执行：
//   1 可评估性检查  2 市场状态分类  3 风险敞口闸门  4 质量闸门
//   5 方向评估      6 优先级裁决    7 资金费率否决  8 执行许可
//   9 置信度打分   10 组装
// 两道硬闸门（3、4）任一失败即强制 NO_TRADE，方向阶段（5~7）被跳过；
// 许可与置信度阶段（8、9）对所有决策都执行。

// Evaluate 按短期时间级别评估快照。
func Evaluate(snap *feature.Snapshot, th *config.Thresholds) signal.Draft {
	return EvaluateFor(snap, th, signal.TimeframeShort)
}

// EvaluateFor 按指定时间级别评估快照。
func EvaluateFor(snap *feature.Snapshot, th *config.Thresholds, tf signal.Timeframe) signal.Draft {
	draft := signal.Draft{
		Decision:   signal.NoTrade,
		Confidence: signal.ConfidenceLow,
		Regime:     signal.RegimeRange,
		Quality:    signal.QualityGood,
		Permission: signal.PermissionDeny,
	}
	if snap == nil || th == nil {
		draft.Tags = draft.Tags.Append(signal.TagDataIncomplete)
		return draft
	}

	// 1. 可评估性：请求级别的覆盖度不足直接返回。
	if !timeframeEvaluable(snap, tf) {
		draft.Tags = draft.Tags.Append(signal.TagDataIncomplete)
		draft.KeyMetrics = keyMetrics(snap.Features, 0)
		return draft
	}

	f := snap.Features

	// 2. 市场状态。
	draft.Regime = detectRegime(f, th.Regime)

	// 3. 风险敞口闸门。
	riskOK, riskTags := riskGate(f, draft.Regime, th.Risk)
	draft.Tags = draft.Tags.Append(riskTags...)

	// 4. 质量闸门（即使风险闸门已失败也照常分类，保留审计信息）。
	quality, qualityTags := classifyQuality(f, draft.Regime, th.Quality)
	draft.Quality = quality
	draft.Tags = draft.Tags.Append(qualityTags...)

	// 5~7. 方向评估、优先级、资金费率否决：两道闸门都通过才进入。
	if riskOK && quality != signal.QualityPoor {
		dir, dirTags := evaluateDirection(f, draft.Regime, th.Direction)
		draft.Tags = draft.Tags.Append(dirTags...)
		dir, overrideTags := fundingOverride(dir, f, th.Direction)
		draft.Tags = draft.Tags.Append(overrideTags...)
		draft.Decision = dir
	}

	// 8. 执行许可。
	draft.Permission = assignPermission(draft)

	// 9. 置信度打分与上限钳制。
	level, score := scoreConfidence(draft.Decision, draft.Regime, draft.Quality, draft.Tags, th)
	draft.Confidence = level

	// reduced 许可要求的置信度下限（编译期已保证该下限可达）。
	if draft.Permission == signal.PermissionAllowReduced && draft.Confidence.Below(th.ReducedMinConfidence) {
		draft.Permission = signal.PermissionDeny
	}

	// 10. 组装。
	draft.KeyMetrics = keyMetrics(f, score)
	return draft
}

func timeframeEvaluable(snap *feature.Snapshot, tf signal.Timeframe) bool {
	switch tf {
	case signal.TimeframeMedium:
		return snap.Coverage.MediumEvaluable
	default:
		return snap.Coverage.ShortEvaluable
	}
}

// assignPermission 执行许可（流水线第 8 步）。
// NO_TRADE 一律 DENY；UNCERTAIN 质量或 RANGE 弱信号给 ALLOW_REDUCED。
func assignPermission(draft signal.Draft) signal.ExecPermission {
	if !draft.Decision.IsSignal() {
		return signal.PermissionDeny
	}
	if draft.Quality == signal.QualityUncertain || draft.Tags.Contains(signal.TagRangeWeakSignal) {
		return signal.PermissionAllowReduced
	}
	return signal.PermissionAllow
}

func keyMetrics(f feature.Set, score float64) map[string]float64 {
	metrics := make(map[string]float64, 8)
	put := func(name string, p *float64) {
		if p != nil {
			metrics[name] = *p
		}
	}
	put("price", f.Price)
	put("price_change_1h", f.PriceChange1h)
	put("price_change_6h", f.PriceChange6h)
	put("oi_change_1h", f.OIChange1h)
	put("taker_imbalance_1h", f.TakerImbalance1h)
	put("volume_ratio_1h", f.VolumeRatio1h)
	put("funding_rate", f.FundingRate)
	metrics["confidence_score"] = score
	return metrics
}
