package integration

import (
	"context"
	"sync"
	"time"

	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	saveAttempts     = 3
	saveTimeout      = 5 * time.Second
)

// APILogDispatcher persists provider call logs on a bounded worker pool.
// When the queue is full or the dispatcher is closed, entries are written
// synchronously so none are dropped.
type APILogDispatcher struct {
	repo    repository.ApiLogRepository
	logger  logrus.FieldLogger
	queue   chan *model.ApiLog
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAPILogDispatcher 创建调用日志分发器
func NewAPILogDispatcher(db *gorm.DB, workers, queueSize int, logger logrus.FieldLogger) *APILogDispatcher {
	return newDispatcher(repository.NewApiLogRepository(db), workers, queueSize, logger)
}

func newDispatcher(repo repository.ApiLogRepository, workers, queueSize int, logger logrus.FieldLogger) *APILogDispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &APILogDispatcher{
		repo:    repo,
		logger:  logger,
		queue:   make(chan *model.ApiLog, queueSize),
		backoff: 100 * time.Millisecond,
	}

	// 启动 worker goroutines
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Record 记录一次调用
func (d *APILogDispatcher) Record(ctx context.Context, entry *model.ApiLog) {
	if entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	d.mu.RLock()
	if !d.closed {
		select {
		case d.queue <- entry:
			d.mu.RUnlock()
			return
		default:
		}
	}
	d.mu.RUnlock()

	d.logger.WithField("correlation_id", entry.CorrelationID).Debug("api log queue unavailable, writing synchronously")
	d.save(context.WithoutCancel(ctx), entry)
}

// worker 日志写入 worker
func (d *APILogDispatcher) worker() {
	defer d.wg.Done()
	for entry := range d.queue {
		d.save(context.Background(), entry)
	}
}

// save 写入日志，失败时指数退避重试
func (d *APILogDispatcher) save(ctx context.Context, entry *model.ApiLog) {
	backoff := d.backoff
	var err error
	for i := 0; i < saveAttempts; i++ {
		saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
		err = d.repo.Save(saveCtx, entry)
		cancel()
		if err == nil {
			return
		}
		if i < saveAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	d.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": entry.CorrelationID,
		"endpoint":       entry.Endpoint,
	}).Error("failed to persist api log")
}

// Close stops accepting queued entries and waits until the queue is drained.
func (d *APILogDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
