package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vigil/internal/logger"
	"vigil/internal/signal"

	_ "modernc.org/sqlite"
)

// Store 决策日志的只追加 SQLite 存储：每条最终决策一行，
// Tags/KeyMetrics 以 JSON 落库，方便后续排查/可视化。
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// Record 一条持久化的决策日志。
type Record struct {
	ID          int64              `json:"id"`
	TraceID     string             `json:"trace_id"`
	Timestamp   int64              `json:"ts"`
	Symbol      string             `json:"symbol"`
	Timeframe   string             `json:"timeframe"`
	Decision    string             `json:"decision"`
	Confidence  string             `json:"confidence"`
	Regime      string             `json:"market_regime"`
	Quality     string             `json:"trade_quality"`
	Permission  string             `json:"execution_permission"`
	Executable  bool               `json:"executable"`
	BlockReason string             `json:"block_reason,omitempty"`
	Tags        []string           `json:"reason_tags,omitempty"`
	KeyMetrics  map[string]float64 `json:"key_metrics,omitempty"`
	ConfigHash  string             `json:"config_hash,omitempty"`
}

// Query 日志筛选条件。
type Query struct {
	Symbol    string
	Timeframe string
	Decision  string
	TraceID   string
	Since     int64
	Limit     int
	Offset    int
}

// NewStore 初始化 SQLite 存储。
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("决策日志路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB 复用外部初始化的 SQLite 连接，避免多连接锁冲突。
func (s *Store) UseExternalDB(db *sql.DB) error {
	if s == nil {
		return fmt.Errorf("decision log store 未初始化")
	}
	if db == nil {
		return fmt.Errorf("external db 不能为空")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			trace_id TEXT,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			decision TEXT NOT NULL,
			confidence TEXT NOT NULL,
			market_regime TEXT,
			trade_quality TEXT,
			execution_permission TEXT,
			executable INTEGER NOT NULL DEFAULT 0,
			block_reason TEXT,
			tags_json TEXT,
			metrics_json TEXT,
			config_hash TEXT,
			created_at INTEGER NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_symbol_ts_id ON decision_logs(symbol, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_trace ON decision_logs(trace_id);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_ts ON decision_logs(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert 写入一条日志。
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("decision log store 未初始化")
	}
	ts := rec.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	enc := func(v interface{}) string {
		if v == nil {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO decision_logs
			(ts, trace_id, symbol, timeframe, decision, confidence, market_regime, trade_quality,
			 execution_permission, executable, block_reason, tags_json, metrics_json, config_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts,
		rec.TraceID,
		strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		rec.Timeframe,
		rec.Decision,
		rec.Confidence,
		rec.Regime,
		rec.Quality,
		rec.Permission,
		boolToInt(rec.Executable),
		rec.BlockReason,
		enc(rec.Tags),
		enc(rec.KeyMetrics),
		rec.ConfigHash,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// InsertFinal 把频控后的最终决策转成 Record 写入。
func (s *Store) InsertFinal(ctx context.Context, final signal.Final, configHash string) (int64, error) {
	return s.Insert(ctx, FromFinal(final, configHash))
}

// FromFinal 最终决策到日志记录的映射。
func FromFinal(final signal.Final, configHash string) Record {
	return Record{
		TraceID:     final.TraceID,
		Timestamp:   final.DecidedAt.UnixMilli(),
		Symbol:      final.Symbol,
		Timeframe:   string(final.Timeframe),
		Decision:    string(final.Decision),
		Confidence:  string(final.Confidence),
		Regime:      string(final.Regime),
		Quality:     string(final.Quality),
		Permission:  string(final.Permission),
		Executable:  final.Executable,
		BlockReason: final.BlockReason,
		Tags:        final.Tags.Strings(),
		KeyMetrics:  final.KeyMetrics,
		ConfigHash:  configHash,
	}
}

func buildFilter(q Query) (string, []interface{}) {
	var args []interface{}
	var sb strings.Builder
	sb.WriteString(" WHERE 1=1")
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		sb.WriteString(" AND symbol=?")
		args = append(args, sym)
	}
	if tf := strings.TrimSpace(q.Timeframe); tf != "" {
		sb.WriteString(" AND timeframe=?")
		args = append(args, tf)
	}
	if dec := strings.TrimSpace(q.Decision); dec != "" {
		sb.WriteString(" AND decision=?")
		args = append(args, dec)
	}
	if trace := strings.TrimSpace(q.TraceID); trace != "" {
		sb.WriteString(" AND trace_id=?")
		args = append(args, trace)
	}
	if q.Since > 0 {
		sb.WriteString(" AND ts>=?")
		args = append(args, q.Since)
	}
	return sb.String(), args
}

const selectColumns = `SELECT id, ts, trace_id, symbol, timeframe, decision, confidence,
	market_regime, trade_quality, execution_permission, executable, block_reason,
	tags_json, metrics_json, config_hash FROM decision_logs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(scanner rowScanner) (Record, error) {
	var (
		rec        Record
		traceID    sql.NullString
		regime     sql.NullString
		quality    sql.NullString
		permission sql.NullString
		executable sql.NullInt64
		blockRsn   sql.NullString
		tags       sql.NullString
		metrics    sql.NullString
		hash       sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &rec.Timestamp, &traceID, &rec.Symbol, &rec.Timeframe,
		&rec.Decision, &rec.Confidence, &regime, &quality, &permission,
		&executable, &blockRsn, &tags, &metrics, &hash); err != nil {
		return rec, err
	}
	rec.TraceID = traceID.String
	rec.Regime = regime.String
	rec.Quality = quality.String
	rec.Permission = permission.String
	rec.Executable = executable.Valid && executable.Int64 != 0
	rec.BlockReason = blockRsn.String
	rec.Tags = decodeStringArray(tags.String)
	rec.KeyMetrics = decodeMetrics(metrics.String)
	rec.ConfigHash = hash.String
	return rec, nil
}

// List 返回最新的决策日志，支持按 symbol/timeframe/decision/trace 过滤。
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store 未初始化")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	filterSQL, args := buildFilter(q)
	var sb strings.Builder
	sb.WriteString(selectColumns)
	sb.WriteString(filterSQL)
	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Count 统计满足筛选条件的日志数量。
func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("decision log store 未初始化")
	}
	filterSQL, args := buildFilter(q)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_logs`+filterSQL, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Latest 返回指定标的/级别的最新一条日志；无记录返回 (zero, false, nil)。
func (s *Store) Latest(ctx context.Context, symbol, timeframe string) (Record, bool, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return Record{}, false, fmt.Errorf("decision log store 未初始化")
	}
	row := db.QueryRowContext(ctx, selectColumns+
		` WHERE symbol=? AND timeframe=? ORDER BY ts DESC, id DESC LIMIT 1`,
		strings.ToUpper(strings.TrimSpace(symbol)), strings.TrimSpace(timeframe))
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

// ListByTraceID 返回同一 trace 下的所有记录，按时间顺序排列。
func (s *Store) ListByTraceID(ctx context.Context, traceID string, limit int) ([]Record, error) {
	traceID = strings.TrimSpace(traceID)
	if traceID == "" {
		return nil, fmt.Errorf("trace_id 不能为空")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := db.QueryContext(ctx, selectColumns+
		` WHERE trace_id=? ORDER BY ts ASC, id ASC LIMIT ?`, traceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decodeStringArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		logger.Warnf("解析标签数组失败: %v", err)
		return nil
	}
	return arr
}

func decodeMetrics(raw string) map[string]float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Warnf("解析指标失败: %v", err)
		return nil
	}
	return m
}
