package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/druginsight-api/internal/events"
)

const markUsedTimeout = 5 * time.Second

// UsageStore records that an API key authenticated a request.
type UsageStore interface {
	MarkUsed(ctx context.Context, keyID string) error
}

// APIKeyUsageWorker updates API key usage off the request path. Events that
// arrive while the queue is full are dropped.
type APIKeyUsageWorker struct {
	store  UsageStore
	logger *zap.Logger
	queue  chan string

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewAPIKeyUsageWorker creates a worker with a queue of the given size.
func NewAPIKeyUsageWorker(store UsageStore, logger *zap.Logger, buffer int) *APIKeyUsageWorker {
	if buffer <= 0 {
		buffer = 256
	}
	return &APIKeyUsageWorker{
		store:  store,
		logger: logger,
		queue:  make(chan string, buffer),
		stop:   make(chan struct{}),
	}
}

// Register subscribes the worker to api_key_used events.
func (w *APIKeyUsageWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventAPIKeyUsed, w.enqueue)
}

func (w *APIKeyUsageWorker) enqueue(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.APIKeyPayload)
	if !ok || payload.KeyID == "" {
		return nil
	}
	select {
	case w.queue <- payload.KeyID:
	default:
		w.logger.Debug("api key usage queue full; dropping update", zap.String("key_id", payload.KeyID))
	}
	return nil
}

// Start runs the consumer until Stop is called or ctx is done.
func (w *APIKeyUsageWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case keyID := <-w.queue:
				w.markUsed(ctx, keyID)
			case <-w.stop:
				w.drain(ctx)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop flushes queued updates and waits for the consumer to exit.
func (w *APIKeyUsageWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *APIKeyUsageWorker) drain(ctx context.Context) {
	for {
		select {
		case keyID := <-w.queue:
			w.markUsed(ctx, keyID)
		default:
			return
		}
	}
}

func (w *APIKeyUsageWorker) markUsed(ctx context.Context, keyID string) {
	ctx, cancel := context.WithTimeout(ctx, markUsedTimeout)
	defer cancel()
	if err := w.store.MarkUsed(ctx, keyID); err != nil {
		w.logger.Warn("record api key usage failed", zap.String("key_id", keyID), zap.Error(err))
	}
}
