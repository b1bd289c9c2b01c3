package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finsight/finsight/internal/notify"
	"github.com/finsight/finsight/pkg/models"
)

type stubDriver struct {
	kind string
	err  error
	sent int
}

func (d *stubDriver) Kind() string { return d.kind }

func (d *stubDriver) Send(_ context.Context, _ models.Notification) error {
	if d.err != nil {
		return d.err
	}
	d.sent++
	return nil
}

func testNotification() models.Notification {
	return models.Notification{
		Title:          "Your portfolio has drifted",
		Body:           "Your stocks allocation is 12.0 percentage points away from your target.",
		InterventionID: "iv-1",
		Type:           models.InterventionDriftAlert,
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatch_FansOutToAllDrivers(t *testing.T) {
	d := notify.NewDispatcher()
	a := &stubDriver{kind: "a"}
	b := &stubDriver{kind: "b"}
	d.RegisterDriver(a)
	d.RegisterDriver(b)

	if err := d.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if a.sent != 1 || b.sent != 1 {
		t.Errorf("sent a=%d b=%d, want 1 each", a.sent, b.sent)
	}
}

func TestDispatch_PartialDeliveryIsSuccess(t *testing.T) {
	d := notify.NewDispatcher()
	d.RegisterDriver(&stubDriver{kind: "bad", err: errors.New("channel down")})

	// The built-in log driver still delivers.
	if err := d.Dispatch(context.Background(), testNotification()); err != nil {
		t.Errorf("Dispatch() with one healthy driver error: %v", err)
	}
}

func TestDispatch_AllFailedIsError(t *testing.T) {
	d := notify.NewDispatcher()
	// Replace the log driver so every channel fails.
	d.RegisterDriver(&stubDriver{kind: "log", err: errors.New("down")})

	if err := d.Dispatch(context.Background(), testNotification()); err == nil {
		t.Error("Dispatch() with all drivers failing returned nil")
	}
}

func TestWebhookDriver_SignsPayload(t *testing.T) {
	const secret = "test-secret"
	var gotSig atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("X-FinSight-Signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		gotSig.Store(r.Header.Get("X-FinSight-Signature"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := notify.NewWebhookDriver(srv.URL, secret)
	if err := d.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotSig.Load() == nil || gotSig.Load() == "" {
		t.Error("webhook request carried no signature")
	}
}

func TestWebhookDriver_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := notify.NewWebhookDriver(srv.URL, "")
	if err := d.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send() error after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d attempts, want 3", got)
	}
}

func TestWebhookDriver_GivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := notify.NewWebhookDriver(srv.URL, "")
	if err := d.Send(context.Background(), testNotification()); err == nil {
		t.Error("Send() to a permanently failing endpoint returned nil")
	}
}
