package trigger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrDispatcherClosed is returned by Schedule after Close
var ErrDispatcherClosed = errors.New("dispatcher closed")

// LocalDispatcher delivers callbacks from in-process timers, signing them the
// same way QStash does. Pending callbacks are lost on restart, which is
// acceptable for development and single-node deployments: the scheduler
// lease expires and the next toggle re-arms.
type LocalDispatcher struct {
	signer *Signer
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewLocalDispatcher creates a timer-based dispatcher. client may be nil.
func NewLocalDispatcher(signer *Signer, client *http.Client, logger *slog.Logger) *LocalDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &LocalDispatcher{
		signer: signer,
		client: client,
		logger: logger,
		timers: make(map[*time.Timer]struct{}),
	}
}

// Schedule arms a timer that posts payload to target after delay
func (d *LocalDispatcher) Schedule(_ context.Context, target string, delay time.Duration, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	body := append([]byte(nil), payload...)
	var timer *time.Timer
	d.wg.Add(1)
	timer = time.AfterFunc(delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, timer)
		d.mu.Unlock()
		d.deliver(target, body)
	})
	d.timers[timer] = struct{}{}
	return nil
}

func (d *LocalDispatcher) deliver(target string, body []byte) {
	signature, err := d.signer.Sign(target, body)
	if err != nil {
		d.logger.Error("failed to sign local trigger", "target", target, "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("failed to build local trigger", "target", target, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("local trigger delivery failed", "target", target, "error", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger.Warn("local trigger rejected", "target", target, "status", resp.StatusCode)
	}
}

// Close cancels pending timers and waits for in-flight deliveries
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, t)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
