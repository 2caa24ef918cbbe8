package notifier

import (
	"fmt"
	"strings"

	"vigil/internal/signal"
)

// DecisionMessage 把一轮双级别决策渲染成推送消息。
func DecisionMessage(symbol string, res signal.CombinedResult) StructuredMessage {
	msg := StructuredMessage{
		Icon:      decisionIcon(res),
		Title:     fmt.Sprintf("%s 信号", symbol),
		Timestamp: res.Short.DecidedAt,
		Sections: []MessageSection{
			{Title: "短期", Lines: finalLines(res.Short)},
			{Title: "中期", Lines: finalLines(res.Medium)},
		},
	}
	if res.Alignment == signal.AlignmentBothLong || res.Alignment == signal.AlignmentBothShort {
		msg.Footer = "双级别对齐: " + string(res.Alignment)
	}
	if res.MajorFlipBlocked {
		msg.Footer = "大级别翻转冷却中，本轮信号全部拦截"
	}
	return msg
}

func finalLines(final signal.Final) []string {
	lines := []string{
		fmt.Sprintf("决策 %s / 置信度 %s / 许可 %s", final.Decision, final.Confidence, final.Permission),
		fmt.Sprintf("状态 %s / 质量 %s", final.Regime, final.Quality),
	}
	if final.Blocked() {
		lines = append(lines, "频控阻断: "+final.BlockReason)
	}
	if len(final.Tags) > 0 {
		lines = append(lines, "标签: "+strings.Join(final.Tags.Strings(), ", "))
	}
	if price, ok := final.KeyMetrics["price"]; ok {
		lines = append(lines, fmt.Sprintf("价格 %.6g", price))
	}
	return lines
}

func decisionIcon(res signal.CombinedResult) string {
	switch {
	case res.MajorFlipBlocked:
		return "⏳"
	case res.Alignment == signal.AlignmentBothLong:
		return "📈"
	case res.Alignment == signal.AlignmentBothShort:
		return "📉"
	case res.Short.Executable && res.Short.Decision == signal.Long:
		return "📈"
	case res.Short.Executable && res.Short.Decision == signal.Short:
		return "📉"
	default:
		return "ℹ️"
	}
}

// ShouldNotify 只有产生新的可执行信号或大级别翻转被拦时才推送。
func ShouldNotify(res signal.CombinedResult) bool {
	if res.MajorFlipBlocked {
		return true
	}
	return (res.Short.Executable && res.Short.Decision.IsSignal()) ||
		(res.Medium.Executable && res.Medium.Decision.IsSignal())
}
