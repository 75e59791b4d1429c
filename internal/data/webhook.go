package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	webhookQueueSize      = 16
)

// CircuitWebhook posts circuit events as JSON to an operator endpoint from a
// background goroutine, so a slow receiver never holds up a Discogs call.
// With no URL configured events are only logged.
type CircuitWebhook struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    *pkglog.LogHelper

	queue chan model.CircuitWebhookPayload
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewCircuitWebhook creates a CircuitWebhook from the resilience config.
// The cleanup delivers queued events before returning.
func NewCircuitWebhook(c *conf.Resilience, logger log.Logger) (*CircuitWebhook, func()) {
	timeout := defaultWebhookTimeout
	w := &CircuitWebhook{
		now: time.Now,
		log: pkglog.NewLogHelper(log.With(logger, "module", "data/webhook")),
	}
	if c != nil {
		w.url = c.CircuitWebhookURL
		if c.WebhookTimeout > 0 {
			timeout = c.WebhookTimeout
		}
	}
	w.client = &http.Client{Timeout: timeout}

	if w.url != "" {
		w.queue = make(chan model.CircuitWebhookPayload, webhookQueueSize)
		w.wg.Add(1)
		go w.run()
	}
	return w, w.Close
}

// Close stops accepting events and waits for the queue to drain.
func (w *CircuitWebhook) Close() {
	w.mu.Lock()
	if !w.closed && w.queue != nil {
		close(w.queue)
	}
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
}

// NotifyCircuitBroken logs a circuit broken event and queues it for delivery.
func (w *CircuitWebhook) NotifyCircuitBroken(_ context.Context, event *model.CircuitBrokenEvent) error {
	w.log.Circuit(true, "circuit broken",
		"breaker", event.Breaker,
		"failure_count", event.FailureCount,
		"broken_at", event.BrokenAt)
	w.enqueue(model.EventCircuitBroken, event)
	return nil
}

// NotifyCircuitRecovered logs a circuit recovered event and queues it for delivery.
func (w *CircuitWebhook) NotifyCircuitRecovered(_ context.Context, event *model.CircuitRecoveredEvent) error {
	w.log.Circuit(false, "circuit recovered",
		"breaker", event.Breaker,
		"probe_count", event.ProbeCount,
		"recover_time", event.RecoverTime.String())
	w.enqueue(model.EventCircuitRecovered, event)
	return nil
}

func (w *CircuitWebhook) enqueue(kind string, data interface{}) {
	if w.queue == nil {
		return
	}

	payload := model.CircuitWebhookPayload{
		Event:   kind,
		Service: pkglog.ServiceName,
		SentAt:  w.now().UTC(),
		Data:    data,
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- payload:
	default:
		w.log.Warnw("msg", "webhook queue full, dropping event", "event", kind)
	}
}

func (w *CircuitWebhook) run() {
	defer w.wg.Done()

	for payload := range w.queue {
		if err := w.post(payload); err != nil {
			w.log.Warnw("msg", "webhook delivery failed", "event", payload.Event, "error", err)
		}
	}
}

func (w *CircuitWebhook) post(payload model.CircuitWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", pkglog.ServiceName)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("receiver answered %d", resp.StatusCode)
	}
	return nil
}
