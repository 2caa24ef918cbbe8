package config

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"vigil/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener 在阈值热加载成功后触发。
type ChangeListener func(*Thresholds)

// Watcher 监听配置文件变更并原子替换编译后的阈值树。
// 重编译失败只告警并沿用旧版本；进行中的评估继续使用各自捕获的引用。
type Watcher struct {
	path string
	v    *viper.Viper

	current atomic.Pointer[Thresholds]

	mu        sync.Mutex
	listeners []ChangeListener
}

// NewWatcher 完成首次编译并开始监听文件变更。
func NewWatcher(path string) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	th, err := Compile(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path}
	w.current.Store(th)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config for watch failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		next, err := Compile(w.path)
		if err != nil {
			logger.Errorf("阈值热加载失败，沿用版本 %s: %v", w.Current().Version, err)
			return
		}
		prev := w.current.Swap(next)
		if prev != nil && prev.Version == next.Version {
			return
		}
		logger.Infof("阈值热加载成功: %s -> %s", shortVersion(prev), shortVersion(next))
		w.notifyListeners(next)
	})
	v.WatchConfig()
	w.v = v
	return w, nil
}

// Current 返回当前阈值树（只读共享引用）。
func (w *Watcher) Current() *Thresholds {
	if w == nil {
		return nil
	}
	return w.current.Load()
}

// OnChange 注册热加载回调。
func (w *Watcher) OnChange(fn ChangeListener) {
	if w == nil || fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) notifyListeners(th *Thresholds) {
	w.mu.Lock()
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(th)
	}
}

func shortVersion(t *Thresholds) string {
	if t == nil || len(t.Version) < 8 {
		return "?"
	}
	return t.Version[:8]
}
