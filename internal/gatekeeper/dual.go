package gatekeeper

import (
	"time"

	"vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/signal"
)

// DualGate 双时间级别频控。短/中期各自持有独立的 Gate 与状态，
// 在两级结果之上再做一层对齐态裁决：BOTH_LONG <-> BOTH_SHORT 的
// 大级别翻转受 MajorFlipCooldown 约束，冷却内两级全部阻断。
type DualGate struct {
	store  *DualStore
	short  *Gate
	medium *Gate
	locks  keyedMutex
}

func NewDualGate(store *DualStore) *DualGate {
	return &DualGate{
		store:  store,
		short:  NewGate(store.Timeframe(signal.TimeframeShort)),
		medium: NewGate(store.Timeframe(signal.TimeframeMedium)),
	}
}

// Apply 对同一标的的两个级别草案执行频控并裁决对齐态。
// DualEnabled=false 时退化为两次独立的单级别频控。
func (d *DualGate) Apply(short, medium signal.Draft, symbol string, now time.Time, th *config.Thresholds) signal.CombinedResult {
	mu := d.locks.forKey(normalizeSymbol(symbol))
	mu.Lock()
	defer mu.Unlock()

	// 先记下两级的频控状态，大级别翻转被拦时要整体回滚。
	prevShort, hadShort := d.store.Timeframe(signal.TimeframeShort).Last(symbol)
	prevMedium, hadMedium := d.store.Timeframe(signal.TimeframeMedium).Last(symbol)

	res := signal.CombinedResult{
		Short:  d.short.Apply(short, symbol, now, th, signal.TimeframeShort),
		Medium: d.medium.Apply(medium, symbol, now, th, signal.TimeframeMedium),
	}
	res.Alignment = alignmentOf(res.Short, res.Medium)

	if !th.DualEnabled {
		return res
	}

	dir, aligned := alignmentDirection(res.Alignment)
	if !aligned {
		return res
	}

	if prev, ok := d.store.LastAlignment(symbol); ok && prev.Direction != dir && now.Sub(prev.At) < th.MajorFlipCooldown {
		res.MajorFlipBlocked = true
		d.blockMajorFlip(&res.Short)
		d.blockMajorFlip(&res.Medium)
		d.restore(signal.TimeframeShort, symbol, prevShort, hadShort)
		d.restore(signal.TimeframeMedium, symbol, prevMedium, hadMedium)
		logger.Infof("大级别翻转冷却中 %s: %s -> %s（剩余 %s）",
			symbol, prev.Direction, dir, (th.MajorFlipCooldown - now.Sub(prev.At)).Round(time.Second))
		return res
	}

	if err := d.store.SaveAlignment(symbol, now, dir); err != nil {
		logger.Errorf("保存对齐态失败 %s: %v", symbol, err)
	}
	return res
}

func (d *DualGate) blockMajorFlip(final *signal.Final) {
	final.Executable = false
	final.BlockReason = BlockReasonMajorFlip
	final.Permission = signal.PermissionDeny
	final.Tags = final.Tags.Append(signal.TagMajorFlipCooling)
}

// restore 把单级别频控已提交的状态退回翻转前的样子。
func (d *DualGate) restore(tf signal.Timeframe, symbol string, prev Record, had bool) {
	store := d.store.Timeframe(tf)
	var err error
	if had {
		err = store.Save(symbol, prev.At, prev.Direction)
	} else {
		err = store.Clear(symbol)
	}
	if err != nil {
		logger.Errorf("回滚频控状态失败 %s %s: %v", symbol, tf, err)
	}
}

// alignmentOf 基于可执行的最终决策计算对齐态。
func alignmentOf(short, medium signal.Final) signal.Alignment {
	if !short.Decision.IsSignal() && !medium.Decision.IsSignal() {
		return signal.AlignmentNone
	}
	sOK := short.Executable && short.Decision.IsSignal()
	mOK := medium.Executable && medium.Decision.IsSignal()
	if sOK && mOK && short.Decision == medium.Decision {
		if short.Decision == signal.Long {
			return signal.AlignmentBothLong
		}
		return signal.AlignmentBothShort
	}
	return signal.AlignmentMixed
}

func alignmentDirection(a signal.Alignment) (signal.Direction, bool) {
	switch a {
	case signal.AlignmentBothLong:
		return signal.Long, true
	case signal.AlignmentBothShort:
		return signal.Short, true
	default:
		return signal.NoTrade, false
	}
}
