package app

import (
	"context"
	"fmt"

	vcfg "vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/scheduler"
	apihttp "vigil/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动调度、HTTP 与热加载。
type App struct {
	cfg     *vcfg.Config
	watcher *vcfg.Watcher
	engine  *Engine
	httpSrv *apihttp.Server
	sched   *scheduler.AlignedScheduler

	closers []func() error
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *vcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动评估循环与 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.engine == nil || a.sched == nil {
		return fmt.Errorf("engine not initialized")
	}
	defer a.Close()

	th := a.watcher.Current()
	logger.Infof("vigil 启动: 配置版本=%s 标的=%v 双级别频控=%v",
		shortHash(th.Version), th.Symbols, th.DualEnabled)

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		a.sched.Start(func() {
			a.engine.RunCycle(ctx)
		})
		return nil
	})

	return group.Wait()
}

// Close 释放持久化资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			logger.Warnf("关闭资源失败: %v", err)
		}
	}
	a.closers = nil
}

// Engine 暴露评估引擎（测试/回放用）。
func (a *App) Engine() *Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func shortHash(v string) string {
	if len(v) < 8 {
		return v
	}
	return v[:8]
}
