package app

import (
	"context"
	"fmt"
	"time"

	vcfg "vigil/internal/config"
	"vigil/internal/gatekeeper"
	"vigil/internal/gateway/binance"
	"vigil/internal/gateway/notifier"
	"vigil/internal/scheduler"
	"vigil/internal/store/decisionlog"
	apihttp "vigil/internal/transport/http/api"
)

const defaultDecisionLogPath = "data/decision_log.db"

// AppBuilder 按依赖顺序组装应用：配置热加载 → 行情网关 → 频控状态 →
// 决策日志 → 引擎 → HTTP。
type AppBuilder struct {
	cfg *vcfg.Config
}

func NewAppBuilder(cfg *vcfg.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	watcher, err := vcfg.NewWatcher(cfg.SourcePath())
	if err != nil {
		return nil, fmt.Errorf("编译配置失败: %w", err)
	}

	app := &App{cfg: cfg, watcher: watcher}

	source, err := binance.New(binance.Config{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.Market.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化行情网关失败: %w", err)
	}
	featureBuilder := binance.NewBuilder(source)

	var dualStore *gatekeeper.DualStore
	var durable *gatekeeper.DurableStore
	if cfg.StateStore.Path != "" {
		durable, err = gatekeeper.NewDurableStore(cfg.StateStore.Path)
		if err != nil {
			return nil, fmt.Errorf("初始化状态库失败: %w", err)
		}
		app.closers = append(app.closers, durable.Close)
		dualStore = durable.DualStore()
	} else {
		dualStore = gatekeeper.NewMemoryDualStore()
	}
	gate := gatekeeper.NewDualGate(dualStore)

	logPath := cfg.DecisionLog.Path
	if logPath == "" {
		logPath = defaultDecisionLogPath
	}
	logs, err := decisionlog.NewStore(logPath)
	if err != nil {
		return nil, fmt.Errorf("初始化决策日志失败: %w", err)
	}
	app.closers = append(app.closers, logs.Close)

	var notify notifier.TextNotifier
	if tg := cfg.Notify.Telegram; tg.Enabled {
		notify = notifier.NewTelegram(tg.BotToken, tg.ChatID)
	}

	app.engine = NewEngine(EngineDeps{
		Thresholds: watcher,
		Builder:    featureBuilder,
		Gate:       gate,
		Durable:    durable,
		Logs:       logs,
		Notify:     notify,
	})

	app.httpSrv, err = apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Thresholds: watcher,
		Logs:       logs,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	interval, ok := scheduler.ParseIntervalDuration(cfg.Scheduler.Interval)
	if !ok {
		return nil, fmt.Errorf("解析调度周期失败: %q 不是合法的 K 线周期", cfg.Scheduler.Interval)
	}
	app.sched = scheduler.NewAlignedScheduler(ctx,
		interval, time.Duration(cfg.Scheduler.OffsetSeconds)*time.Second)
	app.sched.RunImmediately = true

	return app, nil
}
