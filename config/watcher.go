package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("config")

// ChangeCallback 在配置文件变更并成功重载后被回调。
type ChangeCallback func(old, next *Config)

// Watcher 监视配置文件并热重载。
// 对快速连续的写入做去抖，避免重复重载；解析失败时保留旧配置。
type Watcher struct {
	// path 配置文件路径
	path string
	// fsWatcher 底层文件系统监视器
	fsWatcher *fsnotify.Watcher

	mu sync.RWMutex
	// current 当前生效的配置
	current *Config
	// callbacks 变更回调
	callbacks []ChangeCallback

	// done 监视协程退出信号
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher 创建监视器并加载初始配置。
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		path:      path,
		fsWatcher: fsw,
		current:   cfg,
		done:      make(chan struct{}),
	}, nil
}

// Start 开始监视配置文件。
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.path); err != nil {
		return xerrors.Errorf("watch %q: %w", w.path, err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop 停止监视并等待监视协程退出。
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Config 返回当前生效的配置。
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange 注册变更回调。
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Reload 手动重载配置。
func (w *Watcher) Reload() error { return w.reload() }

// watchLoop 消费文件系统事件，写入事件去抖 500 毫秒后重载。
// 文件被删除或改名时尝试重新挂上监视（原子替换式写入的编辑器
// 会走这条路径）。
func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	var debounce *time.Timer
	const debounceFor = 500 * time.Millisecond

	for {
		select {
		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceFor, func() {
					if err := w.reload(); err != nil {
						log.Errorw("config reload failed, keeping previous", "path", w.path, "err", err)
					}
				})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				log.Warnw("config file removed or renamed", "path", w.path)
				time.AfterFunc(time.Second, func() { _ = w.fsWatcher.Add(w.path) })
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Errorw("config watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() error {
	next, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	old := w.current
	w.current = next
	cbs := make([]ChangeCallback, len(w.callbacks))
	copy(cbs, w.callbacks)
	w.mu.Unlock()

	for _, cb := range cbs {
		go func(cb ChangeCallback) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("config change callback panicked", "panic", r)
				}
			}()
			cb(old, next)
		}(cb)
	}
	log.Infow("configuration reloaded", "path", w.path)
	return nil
}
