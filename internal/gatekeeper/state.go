package gatekeeper

import (
	"strings"
	"sync"
	"time"

	"vigil/internal/signal"
)

// Record 单个标的的频控状态：最近一次可执行信号的时间与方向。
type Record struct {
	At        time.Time
	Direction signal.Direction
}

// Store 频控状态存取接口。实现必须满足写后读一致与按标的隔离；
// 满足这两条的持久化实现可以直接替换内存实现。
type Store interface {
	Save(symbol string, at time.Time, dir signal.Direction) error
	Last(symbol string) (Record, bool)
	LastTime(symbol string) (time.Time, bool)
	LastDirection(symbol string) (signal.Direction, bool)
	Clear(symbol string) error
	ClearAll() error
}

// MemoryStore 单时间级别的内存实现（symbol 大写归一）。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (s *MemoryStore) Save(symbol string, at time.Time, dir signal.Direction) error {
	key := normalizeSymbol(symbol)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	s.data[key] = Record{At: at, Direction: dir}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Last(symbol string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[normalizeSymbol(symbol)]
	return rec, ok
}

func (s *MemoryStore) LastTime(symbol string) (time.Time, bool) {
	rec, ok := s.Last(symbol)
	return rec.At, ok
}

func (s *MemoryStore) LastDirection(symbol string) (signal.Direction, bool) {
	rec, ok := s.Last(symbol)
	return rec.Direction, ok
}

func (s *MemoryStore) Clear(symbol string) error {
	s.mu.Lock()
	delete(s.data, normalizeSymbol(symbol))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearAll() error {
	s.mu.Lock()
	s.data = make(map[string]Record)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)

// AlignmentStore 对齐态（BOTH_LONG/BOTH_SHORT）记录的存取接口，
// 大级别翻转冷却依赖它跨周期存活。
type AlignmentStore interface {
	SaveAlignment(symbol string, at time.Time, dir signal.Direction) error
	LastAlignment(symbol string) (Record, bool)
	ClearAlignment(symbol string) error
	ClearAllAlignments() error
}

// MemoryAlignments AlignmentStore 的内存实现。
type MemoryAlignments struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryAlignments() *MemoryAlignments {
	return &MemoryAlignments{data: make(map[string]Record)}
}

func (a *MemoryAlignments) SaveAlignment(symbol string, at time.Time, dir signal.Direction) error {
	key := normalizeSymbol(symbol)
	if key == "" {
		return nil
	}
	a.mu.Lock()
	a.data[key] = Record{At: at, Direction: dir}
	a.mu.Unlock()
	return nil
}

func (a *MemoryAlignments) LastAlignment(symbol string) (Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.data[normalizeSymbol(symbol)]
	return rec, ok
}

func (a *MemoryAlignments) ClearAlignment(symbol string) error {
	a.mu.Lock()
	delete(a.data, normalizeSymbol(symbol))
	a.mu.Unlock()
	return nil
}

func (a *MemoryAlignments) ClearAllAlignments() error {
	a.mu.Lock()
	a.data = make(map[string]Record)
	a.mu.Unlock()
	return nil
}

var _ AlignmentStore = (*MemoryAlignments)(nil)

// DualStore 双时间级别状态：短/中期完全独立，另带按标的的对齐态记录
// （BOTH_LONG/BOTH_SHORT 的大级别翻转冷却用）。
type DualStore struct {
	short  Store
	medium Store
	align  AlignmentStore
}

func NewMemoryDualStore() *DualStore {
	return NewDualStore(NewMemoryStore(), NewMemoryStore(), NewMemoryAlignments())
}

// NewDualStore 用任意的 Store/AlignmentStore 实现组装双级别状态
// （如 gorm 持久化实现）。
func NewDualStore(short, medium Store, align AlignmentStore) *DualStore {
	return &DualStore{short: short, medium: medium, align: align}
}

// Timeframe 返回指定级别的底层 Store。
func (d *DualStore) Timeframe(tf signal.Timeframe) Store {
	if tf == signal.TimeframeMedium {
		return d.medium
	}
	return d.short
}

func (d *DualStore) LastAlignment(symbol string) (Record, bool) {
	return d.align.LastAlignment(symbol)
}

func (d *DualStore) SaveAlignment(symbol string, at time.Time, dir signal.Direction) error {
	return d.align.SaveAlignment(symbol, at, dir)
}

func (d *DualStore) Clear(symbol string) error {
	if err := d.short.Clear(symbol); err != nil {
		return err
	}
	if err := d.medium.Clear(symbol); err != nil {
		return err
	}
	return d.align.ClearAlignment(symbol)
}

func (d *DualStore) ClearAll() error {
	if err := d.short.ClearAll(); err != nil {
		return err
	}
	if err := d.medium.ClearAll(); err != nil {
		return err
	}
	return d.align.ClearAllAlignments()
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// keyedMutex 按标的加锁：同一标的的读-判-写串行化，不同标的互不竞争。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) forKey(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
