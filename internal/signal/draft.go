package signal

import "time"

// Draft 是 DecisionCore 的纯函数输出：不带时间戳、不依赖任何实例状态。
// 相同 (snapshot, thresholds) 输入必须产生逐位一致的 Draft。
type Draft struct {
	Decision   Direction      `json:"decision"`
	Confidence Confidence     `json:"confidence"`
	Regime     MarketRegime   `json:"market_regime"`
	Quality    TradeQuality   `json:"trade_quality"`
	Permission ExecPermission `json:"execution_permission"`

	// Tags 按流水线阶段 2~7 的产生顺序排列。
	Tags TagList `json:"reason_tags"`
	// KeyMetrics 展示用关键指标（指标名 -> 数值）。
	KeyMetrics map[string]float64 `json:"key_metrics,omitempty"`
}

// Final 是频控之后的最终决策。Decision 字段永远与 Draft 保持一致：
// 频控阻断只体现在 Executable=false 与 Permission=DENY 上，
// 以便审计“策略想做什么”与“实际被允许做什么”。
type Final struct {
	Draft

	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	Executable bool      `json:"executable"`
	// BlockReason 非空时说明频控阻断原因（cooling / min interval / flip cooling / major flip）。
	BlockReason string    `json:"block_reason,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// Blocked 返回该决策是否被频控阻断。
func (f Final) Blocked() bool {
	return f.BlockReason != ""
}

// Alignment 双时间级别对齐状态（用于 major flip 冷却）。
type Alignment string

const (
	AlignmentNone      Alignment = "NONE"
	AlignmentBothLong  Alignment = "BOTH_LONG"
	AlignmentBothShort Alignment = "BOTH_SHORT"
	AlignmentMixed     Alignment = "MIXED"
)

// CombinedResult 双时间级别频控的组合输出。短/中期结果完全独立，
// 对齐态翻转冷却只额外作用于 BOTH_LONG <-> BOTH_SHORT 的大级别切换。
type CombinedResult struct {
	Short            Final     `json:"short"`
	Medium           Final     `json:"medium"`
	Alignment        Alignment `json:"alignment"`
	MajorFlipBlocked bool      `json:"major_flip_blocked"`
}
