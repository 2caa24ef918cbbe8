package apihttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/feature"
	"vigil/internal/logger"
	"vigil/internal/signal"
	"vigil/internal/store/decisionlog"
	"vigil/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const maxEvaluateBody = 1 << 20

// ThresholdProvider 暴露当前生效的阈值树（热加载下每次取最新）。
type ThresholdProvider interface {
	Current() *config.Thresholds
}

// Router 暴露信号查询与离线评估接口。
type Router struct {
	Thresholds ThresholdProvider
	Logs       *decisionlog.Store
}

func NewRouter(thresholds ThresholdProvider, logs *decisionlog.Store) *Router {
	return &Router{Thresholds: thresholds, Logs: logs}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/signal/evaluate", r.handleEvaluate)
	group.GET("/signal/latest", r.handleLatest)
	group.GET("/signal/history", r.handleHistory)
	group.GET("/config/version", r.handleConfigVersion)
}

type evaluateRequest struct {
	Symbol    string           `json:"symbol"`
	Timeframe string           `json:"timeframe"`
	Snapshot  feature.Snapshot `json:"snapshot"`
}

// handleEvaluate 对上送快照做一次只读评估（不过频控、不写状态），
// 供回放与联调使用。先用 gjson 做结构预检，再反序列化。
func (r *Router) handleEvaluate(c *gin.Context) {
	th := r.currentThresholds()
	if th == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "配置尚未就绪"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEvaluateBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法 JSON"})
		return
	}
	if !gjson.GetBytes(body, "symbol").Exists() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	if !gjson.GetBytes(body, "snapshot.features").IsObject() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 snapshot.features"})
		return
	}
	var req evaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tf, err := parseTimeframe(req.Timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := strategy.EvaluateFor(&req.Snapshot, th, tf)
	c.JSON(http.StatusOK, gin.H{
		"symbol":         strings.ToUpper(strings.TrimSpace(req.Symbol)),
		"timeframe":      tf,
		"draft":          draft,
		"config_version": th.Version,
	})
}

func (r *Router) handleLatest(c *gin.Context) {
	if r.Logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "决策日志未启用"})
		return
	}
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	tf, err := parseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	rec, ok, err := r.Logs.Latest(ctx, symbol, string(tf))
	if err != nil {
		logger.Errorf("[api] 查询最新决策失败 ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "无决策记录"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.Logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "决策日志未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	query := decisionlog.Query{
		Symbol:    c.Query("symbol"),
		Timeframe: c.Query("timeframe"),
		Decision:  c.Query("decision"),
		TraceID:   c.Query("trace_id"),
		Limit:     limit,
		Offset:    offset,
	}
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		ms, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since 必须是毫秒时间戳"})
			return
		}
		query.Since = ms
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	records, err := r.Logs.List(ctx, query)
	if err != nil {
		logger.Errorf("[api] 查询决策历史失败 ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := r.Logs.Count(ctx, query)
	if err != nil {
		total = -1
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "records": records})
}

func (r *Router) handleConfigVersion(c *gin.Context) {
	th := r.currentThresholds()
	if th == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "配置尚未就绪"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":      th.Version,
		"dual_enabled": th.DualEnabled,
		"symbols":      th.Symbols,
	})
}

func (r *Router) currentThresholds() *config.Thresholds {
	if r.Thresholds == nil {
		return nil
	}
	return r.Thresholds.Current()
}

func parseTimeframe(raw string) (signal.Timeframe, error) {
	if strings.TrimSpace(raw) == "" {
		return signal.TimeframeShort, nil
	}
	return signal.ParseTimeframe(raw)
}
