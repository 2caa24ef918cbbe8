package gatekeeper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vigil/internal/logger"
	"vigil/internal/signal"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type gateStateModel struct {
	Symbol    string `gorm:"primaryKey;size:32"`
	Timeframe string `gorm:"primaryKey;size:16"`
	Direction string `gorm:"size:16"`
	DecidedAt time.Time
	UpdatedAt time.Time
}

func (gateStateModel) TableName() string { return "gate_states" }

type alignStateModel struct {
	Symbol    string `gorm:"primaryKey;size:32"`
	Direction string `gorm:"size:16"`
	AlignedAt time.Time
	UpdatedAt time.Time
}

func (alignStateModel) TableName() string { return "gate_alignments" }

type latestDecisionModel struct {
	Symbol    string         `gorm:"primaryKey;size:32"`
	Timeframe string         `gorm:"primaryKey;size:16"`
	Payload   datatypes.JSON `gorm:"type:json"`
	DecidedAt time.Time
	UpdatedAt time.Time
}

func (latestDecisionModel) TableName() string { return "latest_decisions" }

// DurableStore 基于 Gorm + SQLite 的频控状态持久化：进程重启后
// 冷却窗口与对齐态依然生效。另维护每个标的/级别的最新决策快照
// 供 HTTP 查询。
type DurableStore struct {
	db *gorm.DB
}

func NewDurableStore(path string) (*DurableStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("状态库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DSN 使用 modernc 风格的 _pragma 参数，须走纯 Go 的 "sqlite" 驱动
	// （CGO_ENABLED=0 下默认的 sqlite3 驱动不可用）。
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&gateStateModel{}, &alignStateModel{}, &latestDecisionModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL：为并发 HTTP 读保留少量并行度，同时压低锁竞争。
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &DurableStore{db: db}, nil
}

func (d *DurableStore) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Timeframe 返回实现 Store 接口的单级别视图。
func (d *DurableStore) Timeframe(tf signal.Timeframe) Store {
	return &durableTimeframeStore{db: d.db, tf: tf}
}

// DualStore 组装持久化的双级别状态。
func (d *DurableStore) DualStore() *DualStore {
	return NewDualStore(d.Timeframe(signal.TimeframeShort), d.Timeframe(signal.TimeframeMedium), d)
}

func (d *DurableStore) SaveAlignment(symbol string, at time.Time, dir signal.Direction) error {
	rec := alignStateModel{
		Symbol:    normalizeSymbol(symbol),
		Direction: string(dir),
		AlignedAt: at,
	}
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (d *DurableStore) LastAlignment(symbol string) (Record, bool) {
	var rec alignStateModel
	err := d.db.Where("symbol = ?", normalizeSymbol(symbol)).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Errorf("读取对齐态失败 %s: %v", symbol, err)
		}
		return Record{}, false
	}
	dir, err := signal.ParseDirection(rec.Direction)
	if err != nil {
		return Record{}, false
	}
	return Record{At: rec.AlignedAt, Direction: dir}, true
}

func (d *DurableStore) ClearAlignment(symbol string) error {
	return d.db.Where("symbol = ?", normalizeSymbol(symbol)).Delete(&alignStateModel{}).Error
}

func (d *DurableStore) ClearAllAlignments() error {
	return d.db.Where("1 = 1").Delete(&alignStateModel{}).Error
}

var _ AlignmentStore = (*DurableStore)(nil)

// SaveLatest 覆盖式写入最新决策快照（Tags/KeyMetrics 以 JSON 落库）。
func (d *DurableStore) SaveLatest(final signal.Final) error {
	payload, err := json.Marshal(final)
	if err != nil {
		return err
	}
	rec := latestDecisionModel{
		Symbol:    normalizeSymbol(final.Symbol),
		Timeframe: string(final.Timeframe),
		Payload:   datatypes.JSON(payload),
		DecidedAt: final.DecidedAt,
	}
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Latest 读取指定标的/级别的最新决策快照。
func (d *DurableStore) Latest(symbol string, tf signal.Timeframe) (signal.Final, bool, error) {
	var rec latestDecisionModel
	err := d.db.Where("symbol = ? AND timeframe = ?", normalizeSymbol(symbol), string(tf)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return signal.Final{}, false, nil
		}
		return signal.Final{}, false, err
	}
	var final signal.Final
	if err := json.Unmarshal(rec.Payload, &final); err != nil {
		return signal.Final{}, false, err
	}
	return final, true, nil
}

// durableTimeframeStore 单级别 Store 视图，symbol+timeframe 作联合主键。
type durableTimeframeStore struct {
	db *gorm.DB
	tf signal.Timeframe
}

func (s *durableTimeframeStore) Save(symbol string, at time.Time, dir signal.Direction) error {
	key := normalizeSymbol(symbol)
	if key == "" {
		return nil
	}
	rec := gateStateModel{
		Symbol:    key,
		Timeframe: string(s.tf),
		Direction: string(dir),
		DecidedAt: at,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *durableTimeframeStore) Last(symbol string) (Record, bool) {
	var rec gateStateModel
	err := s.db.Where("symbol = ? AND timeframe = ?", normalizeSymbol(symbol), string(s.tf)).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Errorf("读取频控状态失败 %s %s: %v", symbol, s.tf, err)
		}
		return Record{}, false
	}
	dir, err := signal.ParseDirection(rec.Direction)
	if err != nil {
		return Record{}, false
	}
	return Record{At: rec.DecidedAt, Direction: dir}, true
}

func (s *durableTimeframeStore) LastTime(symbol string) (time.Time, bool) {
	rec, ok := s.Last(symbol)
	return rec.At, ok
}

func (s *durableTimeframeStore) LastDirection(symbol string) (signal.Direction, bool) {
	rec, ok := s.Last(symbol)
	return rec.Direction, ok
}

func (s *durableTimeframeStore) Clear(symbol string) error {
	return s.db.Where("symbol = ? AND timeframe = ?", normalizeSymbol(symbol), string(s.tf)).
		Delete(&gateStateModel{}).Error
}

func (s *durableTimeframeStore) ClearAll() error {
	return s.db.Where("timeframe = ?", string(s.tf)).Delete(&gateStateModel{}).Error
}

var _ Store = (*durableTimeframeStore)(nil)
