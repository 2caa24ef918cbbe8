package notifier

import (
	"testing"
	"time"

	"vigil/internal/signal"

	"github.com/stretchr/testify/assert"
)

func finalOf(dir signal.Direction, executable bool) signal.Final {
	return signal.Final{
		Draft: signal.Draft{
			Decision:   dir,
			Confidence: signal.ConfidenceHigh,
			Regime:     signal.RegimeTrend,
			Quality:    signal.QualityGood,
			Permission: signal.PermissionAllow,
			KeyMetrics: map[string]float64{"price": 50000},
		},
		Symbol:     "BTCUSDT",
		Timeframe:  signal.TimeframeShort,
		Executable: executable,
		DecidedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestShouldNotify(t *testing.T) {
	noTrade := signal.CombinedResult{
		Short:  finalOf(signal.NoTrade, true),
		Medium: finalOf(signal.NoTrade, true),
	}
	assert.False(t, ShouldNotify(noTrade))

	executable := noTrade
	executable.Short = finalOf(signal.Long, true)
	assert.True(t, ShouldNotify(executable))

	blocked := noTrade
	blocked.Short = finalOf(signal.Long, false)
	assert.False(t, ShouldNotify(blocked))

	majorFlip := blocked
	majorFlip.MajorFlipBlocked = true
	assert.True(t, ShouldNotify(majorFlip))
}

func TestDecisionMessageRender(t *testing.T) {
	res := signal.CombinedResult{
		Short:     finalOf(signal.Long, true),
		Medium:    finalOf(signal.Long, true),
		Alignment: signal.AlignmentBothLong,
	}

	msg := DecisionMessage("BTCUSDT", res)
	assert.Equal(t, "📈", msg.Icon)

	body := msg.RenderMarkdown()
	assert.Contains(t, body, "BTCUSDT 信号")
	assert.Contains(t, body, "短期")
	assert.Contains(t, body, "中期")
	assert.Contains(t, body, "LONG")
	assert.Contains(t, body, "双级别对齐: BOTH_LONG")
}

func TestDecisionMessageMajorFlip(t *testing.T) {
	short := finalOf(signal.Short, false)
	short.BlockReason = "major flip"
	medium := finalOf(signal.Short, false)
	medium.BlockReason = "major flip"

	res := signal.CombinedResult{
		Short:            short,
		Medium:           medium,
		Alignment:        signal.AlignmentBothShort,
		MajorFlipBlocked: true,
	}

	msg := DecisionMessage("ETHUSDT", res)
	assert.Equal(t, "⏳", msg.Icon)

	body := msg.RenderMarkdown()
	assert.Contains(t, body, "大级别翻转冷却中")
	assert.Contains(t, body, "频控阻断: major flip")
}
