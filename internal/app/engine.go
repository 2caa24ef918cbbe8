package app

import (
	"context"
	"time"

	"vigil/internal/config"
	"vigil/internal/gatekeeper"
	"vigil/internal/gateway/binance"
	"vigil/internal/gateway/notifier"
	"vigil/internal/logger"
	"vigil/internal/signal"
	"vigil/internal/store/decisionlog"
	"vigil/internal/strategy"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSymbols 单轮评估的并发上限，控制行情端点压力。
const maxConcurrentSymbols = 4

// ThresholdSource 引擎取当前阈值树的来源（热加载下每轮取最新，
// 单轮内固定使用开始时捕获的那一份）。
type ThresholdSource interface {
	Current() *config.Thresholds
}

// EngineDeps 引擎依赖。Durable 与 Notify 可为 nil。
type EngineDeps struct {
	Thresholds ThresholdSource
	Builder    *binance.Builder
	Gate       *gatekeeper.DualGate
	Durable    *gatekeeper.DurableStore
	Logs       *decisionlog.Store
	Notify     notifier.TextNotifier
}

// Engine 每轮评估的编排：快照 → 双级别评估 → 频控 → 落库 → 通知。
type Engine struct {
	deps EngineDeps
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{deps: deps}
}

// RunCycle 对全部标的执行一轮评估。单个标的失败不影响其他标的。
func (e *Engine) RunCycle(ctx context.Context) {
	th := e.deps.Thresholds.Current()
	if th == nil {
		logger.Warnf("阈值尚未就绪，跳过本轮评估")
		return
	}
	if len(th.Symbols) == 0 {
		logger.Warnf("未配置评估标的，跳过本轮评估")
		return
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSymbols)
	for _, sym := range th.Symbols {
		sym := sym
		g.Go(func() error {
			e.evaluateSymbol(gctx, sym, th)
			return nil
		})
	}
	_ = g.Wait()
	logger.Infof("本轮评估完成: %d 个标的, 耗时 %s, 配置版本 %s",
		len(th.Symbols), time.Since(start).Truncate(time.Millisecond), shortHash(th.Version))
}

// EvaluateSymbol 对单个标的执行一轮完整评估并返回组合结果（回放/测试用）。
func (e *Engine) EvaluateSymbol(ctx context.Context, sym string, th *config.Thresholds) (signal.CombinedResult, error) {
	traceID := uuid.NewString()
	snap, err := e.deps.Builder.Build(ctx, sym, th.Coverage)
	if err != nil {
		return signal.CombinedResult{}, err
	}

	shortDraft := strategy.EvaluateFor(snap, th, signal.TimeframeShort)
	mediumDraft := strategy.EvaluateFor(snap, th, signal.TimeframeMedium)

	res := e.deps.Gate.Apply(shortDraft, mediumDraft, sym, time.Now(), th)
	res.Short.TraceID = traceID
	res.Medium.TraceID = traceID
	return res, nil
}

func (e *Engine) evaluateSymbol(ctx context.Context, sym string, th *config.Thresholds) {
	res, err := e.EvaluateSymbol(ctx, sym, th)
	if err != nil {
		logger.Errorf("构建快照失败 %s: %v", sym, err)
		return
	}

	e.persist(ctx, res.Short, th.Version)
	e.persist(ctx, res.Medium, th.Version)

	logger.Infof("%s 决策: 短期=%s(%s,%v) 中期=%s(%s,%v) 对齐=%s",
		sym,
		res.Short.Decision, res.Short.Confidence, res.Short.Executable,
		res.Medium.Decision, res.Medium.Confidence, res.Medium.Executable,
		res.Alignment)

	if e.deps.Notify != nil && notifier.ShouldNotify(res) {
		msg := notifier.DecisionMessage(sym, res)
		if err := e.deps.Notify.SendText(msg.RenderMarkdown()); err != nil {
			logger.Warnf("推送通知失败 %s: %v", sym, err)
		}
	}
}

func (e *Engine) persist(ctx context.Context, final signal.Final, version string) {
	if e.deps.Logs != nil {
		if _, err := e.deps.Logs.InsertFinal(ctx, final, version); err != nil {
			logger.Errorf("写入决策日志失败 %s %s: %v", final.Symbol, final.Timeframe, err)
		}
	}
	if e.deps.Durable != nil {
		if err := e.deps.Durable.SaveLatest(final); err != nil {
			logger.Warnf("更新最新决策快照失败 %s %s: %v", final.Symbol, final.Timeframe, err)
		}
	}
}
