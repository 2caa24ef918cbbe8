package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	vcfg "vigil/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBuilderConfig(t *testing.T) *vcfg.Config {
	t.Helper()
	cfg, err := vcfg.Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.DecisionLog.Path = filepath.Join(dir, "decision_log.db")
	cfg.StateStore.Path = ""
	cfg.Notify.Telegram.Enabled = false
	return cfg
}

func TestBuildParsesCandleInterval(t *testing.T) {
	cfg := loadBuilderConfig(t)
	cfg.Scheduler.Interval = "4h"

	application, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(application.Close)

	assert.Equal(t, 4*time.Hour, application.sched.Interval)
}

func TestBuildRejectsNonCandleInterval(t *testing.T) {
	cfg := loadBuilderConfig(t)
	// 通用时长写法（"90s"）没有对应的 K 线周期，构建阶段直接拒绝。
	cfg.Scheduler.Interval = "90s"

	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "调度周期")
}
