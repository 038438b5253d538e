package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 在配置文件变更并重新加载后调用。
// err 非 nil 时 file 为 nil，调用方应继续使用上一份配置。
type WatchCallback func(file *File, err error)

// DefaultDebounce 是默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// WatchOption 监视器配置选项。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载。非正值忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 监视配置文件并在变更时重新加载。
type Watcher struct {
	path     string
	filename string
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopped bool
	timer   *time.Timer
	done    chan struct{}
}

// Watch 创建 path 的监视器。返回的 Watcher 需调用 Start/StartAsync/Run 开始监视。
//
// 监视的是文件所在目录而非文件本身：编辑器保存时可能先删除再创建，直接监视文件会丢失事件。
func Watch(path string, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	if callback == nil {
		return nil, errors.New("xconf: nil watch callback")
	}

	w := &Watcher{
		path:     path,
		filename: filepath.Base(path),
		callback: callback,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			fsWatcher.Close(),
		)
	}
	w.watcher = fsWatcher
	return w, nil
}

// Start 阻塞运行监视循环，直到 Stop。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.loop()
}

// StartAsync 在后台 goroutine 中运行监视循环。
// 先设置 running 再启动 goroutine，避免与紧随其后的 Stop 竞争。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.loop()
}

// Run 运行监视直到 ctx 取消，签名与 xrun.Group.Go 兼容。
func (w *Watcher) Run(ctx context.Context) error {
	w.StartAsync()
	<-ctx.Done()
	if err := w.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视。幂等。
// 已经触发、正在执行的回调不会被中断，Stop 之后不再有新的回调开始。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.callback(nil, fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// handleEvent 只关心目标文件的 Write/Create/Rename，
// 后两者对应编辑器先写临时文件再 rename 的原子写入。
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != w.filename {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	file, err := Load(w.path)
	w.callback(file, err)
}
