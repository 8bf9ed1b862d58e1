package progress

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ArtifactEvent 表示发现了一个新产物。
type ArtifactEvent struct {
	Artifact  Artifact  `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher 轮询一个工作流目录，报告新出现的产物。
// 产物只追加，所以只需要关注新文件。
type Watcher struct {
	mu       sync.Mutex
	root     string
	id       string
	interval time.Duration
	seen     map[string]struct{}
	logger   *zap.Logger
}

// NewWatcher 创建监视 root/<workflowID> 的 Watcher。
func NewWatcher(root, workflowID string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:     root,
		id:       workflowID,
		interval: 2 * time.Second,
		seen:     make(map[string]struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Poll 扫描一次目录，返回上次扫描以来新出现的产物（按名称排序）。
func (w *Watcher) Poll() ([]ArtifactEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validateID(w.id); err != nil {
		return nil, err
	}
	arts, err := scanDir(w.id, filepath.Join(w.root, w.id))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var events []ArtifactEvent
	for _, a := range arts {
		if _, ok := w.seen[a.Name]; ok {
			continue
		}
		w.seen[a.Name] = struct{}{}
		events = append(events, ArtifactEvent{Artifact: a, Timestamp: now})
	}
	return events, nil
}

// Watch 周期性轮询，直到 ctx 结束。返回的通道在 ctx 结束后关闭。
func (w *Watcher) Watch(ctx context.Context) <-chan ArtifactEvent {
	ch := make(chan ArtifactEvent, 16)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			events, err := w.Poll()
			if err != nil {
				w.logger.Warn("progress poll failed", zap.String("workflow_id", w.id), zap.Error(err))
			}
			for _, evt := range events {
				select {
				case ch <- evt:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}
