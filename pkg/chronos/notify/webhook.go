package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/jholhewres/chronos/pkg/chronos"
)

const (
	keyringService    = "chronos"
	keyringSigningKey = "webhook_signing_key"
)

// StoreWebhookSigningSecret saves the webhook HMAC master secret to the OS
// keyring, the preferred home for anything sensitive ahead of env vars or
// config files.
func StoreWebhookSigningSecret(secret string) error {
	return keyring.Set(keyringService, keyringSigningKey, secret)
}

func loadWebhookSigningSecret() string {
	val, err := keyring.Get(keyringService, keyringSigningKey)
	if err != nil {
		return ""
	}
	return val
}

// WebhookSink posts a JSON payload to task.Notify.WebhookURL on each
// event, signing the body with an HKDF-derived per-task key so a leaked
// task ID never exposes the master signing secret.
type WebhookSink struct {
	client       *http.Client
	logger       *slog.Logger
	masterSecret string
	maxRetries   int
	retryDelay   time.Duration
}

func NewWebhookSink(logger *slog.Logger) *WebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSink{
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		masterSecret: loadWebhookSigningSecret(),
		maxRetries:   2,
		retryDelay:   500 * time.Millisecond,
	}
}

type webhookPayload struct {
	Event       chronos.NotificationEvent `json:"event"`
	TaskID      string                    `json:"taskId"`
	TaskName    string                    `json:"taskName"`
	ExecutionID string                    `json:"executionId"`
	Status      chronos.ExecutionStatus   `json:"status"`
	Output      map[string]any            `json:"output,omitempty"`
	Error       *string                   `json:"error,omitempty"`
	Timestamp   time.Time                 `json:"timestamp"`
}

// Notify satisfies Sink. Failures are logged only: a notification error
// must never fail an execution.
func (w *WebhookSink) Notify(task *chronos.ScheduledTask, execution *chronos.TaskExecution, event chronos.NotificationEvent) {
	if task.Notify.WebhookURL == "" {
		return
	}
	body, err := json.Marshal(webhookPayload{
		Event:       event,
		TaskID:      task.ID,
		TaskName:    task.Name,
		ExecutionID: execution.ID,
		Status:      execution.Status,
		Output:      execution.Output,
		Error:       execution.Error,
		Timestamp:   time.Now(),
	})
	if err != nil {
		w.logger.Warn("webhook: marshal payload failed", "task", task.ID, "error", err)
		return
	}

	signature := w.sign(task.ID, body)

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.backoff(attempt))
		}
		if lastErr = w.post(task.Notify.WebhookURL, body, signature); lastErr == nil {
			return
		}
	}
	w.logger.Warn("webhook: delivery failed after retries",
		"task", task.ID, "url", task.Notify.WebhookURL, "error", lastErr)
}

func (w *WebhookSink) post(url string, body []byte, signature string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Chronos-Signature", signature)

	resp, err := w.client.Do(req)
	if err != nil {
		return chronos.NewError(chronos.ErrWebhookFailed, "request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return chronos.NewError(chronos.ErrWebhookFailed, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	return nil
}

// sign derives a per-task signing key from the master secret via HKDF
// (using taskID as salt) so no two tasks' signatures are forgeable from
// one another even if the master secret were later rotated per-task.
func (w *WebhookSink) sign(taskID string, body []byte) string {
	if w.masterSecret == "" {
		return ""
	}
	kdf := hkdf.New(sha256.New, []byte(w.masterSecret), []byte(taskID), []byte("chronos-webhook"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		w.logger.Warn("webhook: key derivation failed", "error", err)
		return ""
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookSink) backoff(attempt int) time.Duration {
	base := w.retryDelay * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(base) / 4 + 1))
	return base + jitter
}
