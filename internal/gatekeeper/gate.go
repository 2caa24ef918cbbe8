package gatekeeper

import (
	"time"

	"vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/signal"
)

// 频控阻断原因。Decision 字段不会被改写，阻断只体现在
// Executable=false 与 Permission=DENY 上。
const (
	BlockReasonCooling     = "cooling"
	BlockReasonMinInterval = "min interval"
	BlockReasonFlipCooling = "flip cooling"
	BlockReasonMajorFlip   = "major flip"
)

// Gate 单时间级别频控：对 DecisionCore 的 Draft 做读-判-写一次完成的
// 状态机裁决。规则检查顺序固定：
//   同向冷却 -> 翻转冷却 -> 最小间隔
// 首个信号（无历史状态）永远可执行；NO_TRADE 直接放行且不更新状态。
type Gate struct {
	store Store
	locks keyedMutex
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Apply 对单个标的执行频控。同一标的的并发调用被串行化，
// 状态更新当且仅当决策为 LONG/SHORT 且最终可执行。
func (g *Gate) Apply(draft signal.Draft, symbol string, now time.Time, th *config.Thresholds, tf signal.Timeframe) signal.Final {
	final := signal.Final{
		Draft:      draft,
		Symbol:     symbol,
		Timeframe:  tf,
		Executable: true,
		DecidedAt:  now,
	}

	// NO_TRADE 不占用频控窗口，也不刷新状态。
	if !draft.Decision.IsSignal() {
		return final
	}

	mu := g.locks.forKey(normalizeSymbol(symbol))
	mu.Lock()
	defer mu.Unlock()

	rec, ok := g.store.Last(symbol)
	if !ok {
		g.commit(&final, now)
		return final
	}

	elapsed := now.Sub(rec.At)
	win := th.Window(tf)
	sameDirection := rec.Direction == draft.Decision

	switch {
	case sameDirection && elapsed < win.Cooldown:
		g.block(&final, BlockReasonCooling, signal.TagFrequencyCooling)
	case !sameDirection && elapsed < win.FlipCooldown:
		g.block(&final, BlockReasonFlipCooling, signal.TagDirectionFlip)
	case elapsed < win.MinInterval:
		g.block(&final, BlockReasonMinInterval, signal.TagMinIntervalViolated)
	default:
		if !sameDirection {
			final.Tags = final.Tags.Append(signal.TagDirectionFlip)
		}
		g.commit(&final, now)
	}
	return final
}

func (g *Gate) block(final *signal.Final, reason string, tag signal.ReasonTag) {
	final.Executable = false
	final.BlockReason = reason
	final.Permission = signal.PermissionDeny
	final.Tags = final.Tags.Append(tag)
	logger.Debugf("频控阻断 %s %s: %s (决策 %s)", final.Symbol, final.Timeframe, reason, final.Decision)
}

func (g *Gate) commit(final *signal.Final, now time.Time) {
	if err := g.store.Save(final.Symbol, now, final.Decision); err != nil {
		// 状态写失败不拦截本次决策，但下个周期的频控会缺一条记录。
		logger.Errorf("保存频控状态失败 %s %s: %v", final.Symbol, final.Timeframe, err)
	}
}
