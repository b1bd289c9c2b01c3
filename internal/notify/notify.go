// Package notify delivers intervention notifications through pluggable
// channel drivers. The log driver is the zero-config default; the
// webhook driver POSTs JSON with optional HMAC-SHA256 signing.
//
// Delivery is best-effort by design: failures are logged and surfaced to
// the controller as an error for the current cycle, but never to the
// user.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/finsight/finsight/pkg/models"
	"github.com/rs/zerolog/log"
)

// Driver sends one notification over a concrete channel.
type Driver interface {
	Kind() string
	Send(ctx context.Context, n models.Notification) error
}

// Dispatcher fans a notification out to every registered driver.
type Dispatcher struct {
	drvMu   sync.RWMutex
	drivers map[string]Driver
}

// NewDispatcher creates a dispatcher with the built-in log driver.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{drivers: make(map[string]Driver)}
	d.RegisterDriver(LogDriver{})
	return d
}

// RegisterDriver adds or replaces a driver for its kind.
func (d *Dispatcher) RegisterDriver(driver Driver) {
	d.drvMu.Lock()
	defer d.drvMu.Unlock()
	d.drivers[driver.Kind()] = driver
	log.Info().Str("kind", driver.Kind()).Msg("Registered notification driver")
}

// Dispatch sends the notification through all drivers. It returns an
// error if every driver failed; partial delivery counts as success.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	d.drvMu.RLock()
	drivers := make([]Driver, 0, len(d.drivers))
	for _, drv := range d.drivers {
		drivers = append(drivers, drv)
	}
	d.drvMu.RUnlock()

	delivered := 0
	var lastErr error
	for _, drv := range drivers {
		if err := drv.Send(ctx, n); err != nil {
			log.Warn().Err(err).
				Str("kind", drv.Kind()).
				Str("intervention", n.InterventionID).
				Msg("Notification delivery failed")
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return fmt.Errorf("all notification drivers failed: %w", lastErr)
	}
	return nil
}

// ── Log driver ───────────────────────────────────────────────

// LogDriver writes the notification to the structured log. Default for
// local development, where no delivery endpoint exists.
type LogDriver struct{}

func (LogDriver) Kind() string { return "log" }

func (LogDriver) Send(_ context.Context, n models.Notification) error {
	log.Info().
		Str("intervention", n.InterventionID).
		Str("type", string(n.Type)).
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("Notification")
	return nil
}

// ── Webhook driver ───────────────────────────────────────────

// WebhookDriver POSTs the notification as JSON to a fixed URL with
// optional HMAC-SHA256 signing, retrying with exponential backoff.
type WebhookDriver struct {
	URL    string
	Secret string
	Client *http.Client
}

// NewWebhookDriver creates a webhook driver with a 15s HTTP timeout.
func NewWebhookDriver(url, secret string) *WebhookDriver {
	return &WebhookDriver{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *WebhookDriver) Kind() string { return "webhook" }

func (d *WebhookDriver) Send(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "FinSight-Webhook/1.0")
		req.Header.Set("X-FinSight-Type", string(n.Type))

		if d.Secret != "" {
			mac := hmac.New(sha256.New, []byte(d.Secret))
			mac.Write(body)
			sig := hex.EncodeToString(mac.Sum(nil))
			req.Header.Set("X-FinSight-Signature", "sha256="+sig)
		}

		resp, err := d.Client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, d.URL)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	return nil
}
