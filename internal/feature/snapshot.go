package feature

import "time"

// 中文说明：
// Snapshot 是决策流水线的唯一输入契约，由外部特征构建器（gateway）每个评估周期
// 产出一次，流水线内部只读。所有百分比类字段一律使用小数分数约定
// （0.05 = 5%），绝不使用百分点；该约定由配置编译器的阈值校准检查共同保证。
//
// 字段均为可选（*float64）：缺失 != 0。对缺失字段的任何阈值比较都必须判定为
// “条件不成立”，绝不允许 panic。

// SchemaVersion 当前快照结构版本。
const SchemaVersion = "1"

// Set 分组的市场特征。
type Set struct {
	// 价格
	Price          *float64 `json:"price,omitempty"`
	PriceChange5m  *float64 `json:"price_change_5m,omitempty"`
	PriceChange15m *float64 `json:"price_change_15m,omitempty"`
	PriceChange1h  *float64 `json:"price_change_1h,omitempty"`
	PriceChange6h  *float64 `json:"price_change_6h,omitempty"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`

	// 未平仓合约
	OpenInterest *float64 `json:"open_interest,omitempty"`
	OIChange15m  *float64 `json:"oi_change_15m,omitempty"`
	OIChange1h   *float64 `json:"oi_change_1h,omitempty"`
	OIChange6h   *float64 `json:"oi_change_6h,omitempty"`

	// 主动成交失衡，取值范围 [-1, 1]
	TakerImbalance5m  *float64 `json:"taker_imbalance_5m,omitempty"`
	TakerImbalance15m *float64 `json:"taker_imbalance_15m,omitempty"`
	TakerImbalance1h  *float64 `json:"taker_imbalance_1h,omitempty"`

	// 成交量与成交量比值（相对基线的倍数，非百分比）
	Volume5m      *float64 `json:"volume_5m,omitempty"`
	Volume1h      *float64 `json:"volume_1h,omitempty"`
	VolumeRatio5m *float64 `json:"volume_ratio_5m,omitempty"`
	VolumeRatio1h *float64 `json:"volume_ratio_1h,omitempty"`

	// 资金费率（当前与上一期）
	FundingRate     *float64 `json:"funding_rate,omitempty"`
	PrevFundingRate *float64 `json:"prev_funding_rate,omitempty"`
}

// WindowCoverage 某个回看窗口的实际覆盖情况。
type WindowCoverage struct {
	// ActualLookbackSec 实际回看时长（秒）。
	ActualLookbackSec float64 `json:"actual_lookback_sec"`
	// GapSec 数据缺口总时长（秒）。
	GapSec float64 `json:"gap_sec"`
}

// Coverage 覆盖度元数据，决定各时间级别是否允许进入流水线。
type Coverage struct {
	Windows        map[string]WindowCoverage `json:"windows,omitempty"`
	MissingWindows []string                  `json:"missing_windows,omitempty"`

	// ShortEvaluable / MediumEvaluable 由特征构建器推导：对应级别所需窗口
	// 均未缺失且实际回看覆盖达到配置比例。
	ShortEvaluable  bool `json:"short_evaluable"`
	MediumEvaluable bool `json:"medium_evaluable"`
}

// Metadata 快照来源信息。
type Metadata struct {
	SchemaVersion string    `json:"schema_version"`
	Symbol        string    `json:"symbol"`
	SourceAt      time.Time `json:"source_at"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Snapshot 不可变输入契约。
type Snapshot struct {
	Features Set      `json:"features"`
	Coverage Coverage `json:"coverage"`
	Meta     Metadata `json:"metadata"`
}

// Evaluable 返回至少一个时间级别可评估。
func (s *Snapshot) Evaluable() bool {
	return s != nil && (s.Coverage.ShortEvaluable || s.Coverage.MediumEvaluable)
}

// Float 指针取值辅助：返回 (值, 是否存在)。
func Float(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Ptr 构造 *float64，测试与构建器共用。
func Ptr(v float64) *float64 {
	return &v
}
