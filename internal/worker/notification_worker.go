package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/observability"
	"github.com/interfix/helpdesk/internal/service"
)

const (
	defaultQueueSize   = 256
	defaultMaxElapsed  = 30 * time.Second
	webhookUserAgent   = "helpdesk-notifier/1"
	metricWebhookSent  = "notifications.webhook.sent"
	metricWebhookError = "notifications.webhook.failed"
)

// WebhookWorker posts events to a webhook from a single background goroutine.
type WebhookWorker struct {
	url        string
	client     *http.Client
	queue      chan events.Event
	maxElapsed time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	wg         sync.WaitGroup
}

// WebhookOptions tunes the worker.
type WebhookOptions struct {
	QueueSize  int
	MaxElapsed time.Duration
	Client     *http.Client
}

// NewWebhookWorker builds a worker for url.
func NewWebhookWorker(url string, opts WebhookOptions, logger *zap.Logger, metrics *observability.Metrics) *WebhookWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = defaultMaxElapsed
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookWorker{
		url:        url,
		client:     opts.Client,
		queue:      make(chan events.Event, opts.QueueSize),
		maxElapsed: opts.MaxElapsed,
		logger:     logger.Named("webhook"),
		metrics:    metrics,
	}
}

// Enqueue schedules delivery. It reports false when the queue is full.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	select {
	case w.queue <- event:
		return true
	default:
		return false
	}
}

// Start drains the queue until ctx is cancelled. Wait blocks until it returns.
func (w *WebhookWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-w.queue:
				if err := w.deliver(ctx, event); err != nil {
					w.metrics.Inc(metricWebhookError)
					w.logger.Warn("webhook delivery failed",
						zap.String("event_id", event.ID),
						zap.String("event_type", string(event.Type)),
						zap.Error(err))
					continue
				}
				w.metrics.Inc(metricWebhookSent)
			}
		}
	}()
}

// Wait blocks until the worker goroutine exits.
func (w *WebhookWorker) Wait() {
	w.wg.Wait()
}

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = w.maxElapsed

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", webhookUserAgent)
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartHistoryWorker registers the audit trail handlers.
func StartHistoryWorker(historyService *service.HistoryService) {
	if historyService == nil {
		return
	}
	historyService.RegisterHandlers()
}
