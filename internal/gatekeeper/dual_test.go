package gatekeeper

import (
	"testing"
	"time"

	"vigil/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDualGateRecordsAlignment(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	res := gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)

	assert.Equal(t, signal.AlignmentBothLong, res.Alignment)
	assert.False(t, res.MajorFlipBlocked)

	rec, ok := store.LastAlignment("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, signal.Long, rec.Direction)
	assert.Equal(t, gateBase, rec.At)
}

func TestDualGateMixedAlignment(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	res := gate.Apply(draftOf(signal.Long), draftOf(signal.NoTrade), "BTCUSDT", gateBase, th)
	assert.Equal(t, signal.AlignmentMixed, res.Alignment)
	_, ok := store.LastAlignment("BTCUSDT")
	assert.False(t, ok)

	res = gate.Apply(draftOf(signal.NoTrade), draftOf(signal.NoTrade), "ETHUSDT", gateBase, th)
	assert.Equal(t, signal.AlignmentNone, res.Alignment)
}

func TestDualGateMajorFlipBlocked(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)

	// 两小时后反向对齐：各级别频控都已放行，但大级别翻转冷却（4h）未到。
	at := gateBase.Add(2 * time.Hour)
	res := gate.Apply(draftOf(signal.Short), draftOf(signal.Short), "BTCUSDT", at, th)

	assert.True(t, res.MajorFlipBlocked)
	assert.Equal(t, signal.AlignmentBothShort, res.Alignment)
	for _, final := range []signal.Final{res.Short, res.Medium} {
		assert.False(t, final.Executable)
		assert.Equal(t, BlockReasonMajorFlip, final.BlockReason)
		assert.Equal(t, signal.PermissionDeny, final.Permission)
		assert.True(t, final.Tags.Contains(signal.TagMajorFlipCooling))
		assert.Equal(t, signal.Short, final.Decision)
	}

	// 对齐态保持原方向，单级别状态回滚到翻转前。
	align, ok := store.LastAlignment("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, signal.Long, align.Direction)
	assert.Equal(t, gateBase, align.At)

	shortRec, ok := store.Timeframe(signal.TimeframeShort).Last("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, signal.Long, shortRec.Direction)
	assert.Equal(t, gateBase, shortRec.At)
	mediumRec, ok := store.Timeframe(signal.TimeframeMedium).Last("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, signal.Long, mediumRec.Direction)
}

func TestDualGateMajorFlipAfterCooldown(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)

	at := gateBase.Add(5 * time.Hour)
	res := gate.Apply(draftOf(signal.Short), draftOf(signal.Short), "BTCUSDT", at, th)

	assert.False(t, res.MajorFlipBlocked)
	assert.True(t, res.Short.Executable)
	assert.True(t, res.Medium.Executable)

	align, ok := store.LastAlignment("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, signal.Short, align.Direction)
	assert.Equal(t, at, align.At)
}

func TestDualGateSameDirectionRefreshesAlignment(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)

	// 同向对齐不受大级别翻转冷却约束，但要过各级别自己的冷却。
	at := gateBase.Add(3 * time.Hour)
	res := gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", at, th)

	assert.False(t, res.MajorFlipBlocked)
	assert.True(t, res.Short.Executable)
	assert.True(t, res.Medium.Executable)

	align, _ := store.LastAlignment("BTCUSDT")
	assert.Equal(t, at, align.At)
}

func TestDualGateDisabledSkipsMajorFlip(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()
	th.DualEnabled = false

	gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)
	res := gate.Apply(draftOf(signal.Short), draftOf(signal.Short), "BTCUSDT", gateBase.Add(2*time.Hour), th)

	assert.False(t, res.MajorFlipBlocked)
	assert.True(t, res.Short.Executable)
	assert.True(t, res.Medium.Executable)
	_, ok := store.LastAlignment("BTCUSDT")
	assert.False(t, ok)
}

func TestDualGateBlockedTimeframeBreaksAlignment(t *testing.T) {
	store := NewMemoryDualStore()
	gate := NewDualGate(store)
	th := gateThresholds()

	gate.Apply(draftOf(signal.Long), draftOf(signal.Long), "BTCUSDT", gateBase, th)

	// 短期冷却内再次 LONG：短期被阻断，对齐态退化为 MIXED。
	at := gateBase.Add(5 * time.Minute)
	res := gate.Apply(draftOf(signal.Long), draftOf(signal.NoTrade), "BTCUSDT", at, th)

	assert.False(t, res.Short.Executable)
	assert.Equal(t, signal.AlignmentMixed, res.Alignment)
}
