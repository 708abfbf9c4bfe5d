package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
)

// QStashConfig configures the QStash publisher
type QStashConfig struct {
	BaseURL string // e.g. "https://qstash.upstash.io"
	Token   string
	Timeout time.Duration

	// Breaker trips after FailureThreshold consecutive publish failures and
	// stays open for OpenTimeout
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// QStashDispatcher schedules callbacks through the QStash publish API
type QStashDispatcher struct {
	cfg     QStashConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	logger  *slog.Logger
}

// NewQStashDispatcher creates a dispatcher. client may be nil.
func NewQStashDispatcher(cfg QStashConfig, client *http.Client, logger *slog.Logger) *QStashDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "qstash-publish",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &QStashDispatcher{cfg: cfg, client: client, breaker: breaker, logger: logger}
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Schedule publishes payload for delivery to target after delay
func (d *QStashDispatcher) Schedule(ctx context.Context, target string, delay time.Duration, payload []byte) error {
	triggerID := uuid.NewString()
	messageID, err := d.breaker.Execute(func() (string, error) {
		return d.publish(ctx, target, delay, payload, triggerID)
	})
	if err != nil {
		return fmt.Errorf("qstash publish to %s: %w", target, err)
	}
	d.logger.Debug("trigger scheduled via qstash",
		"target", target,
		"delay", delay,
		"message_id", messageID,
		"trigger_id", triggerID)
	return nil
}

func (d *QStashDispatcher) publish(ctx context.Context, target string, delay time.Duration, payload []byte, triggerID string) (string, error) {
	endpoint := d.cfg.BaseURL + "/v2/publish/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Delay", strconv.Itoa(int(delay.Round(time.Second)/time.Second))+"s")
	// Forwarded to the callback as Trigger-Id for log correlation
	req.Header.Set("Upstash-Forward-Trigger-Id", triggerID)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed publishResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Accepted but unparseable; the message was still queued
		return "", nil
	}
	return parsed.MessageID, nil
}
