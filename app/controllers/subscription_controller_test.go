package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alphadominico/subscription-backend/app/models"
	"github.com/alphadominico/subscription-backend/internal/pkg/config"
	"github.com/alphadominico/subscription-backend/internal/pkg/subscription"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryRepo struct {
	subscribers map[string]*models.Subscriber
	payments    map[string]*models.PaymentEvent
	webhooks    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		subscribers: make(map[string]*models.Subscriber),
		payments:    make(map[string]*models.PaymentEvent),
	}
}

func (m *memoryRepo) GetSubscriberByEmail(email string) (*models.Subscriber, error) {
	sub, ok := m.subscribers[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func (m *memoryRepo) UpsertSubscriber(u subscription.SubscriberUpdate) (*models.Subscriber, error) {
	sub, ok := m.subscribers[u.Email]
	if !ok {
		sub = &models.Subscriber{Email: u.Email, PlanKey: models.PlanStandard, Status: models.SubscriberStatusTrial}
		m.subscribers[u.Email] = sub
	}
	if u.Status != nil {
		sub.Status = *u.Status
	}
	if u.ProviderSubscriptionID != nil {
		sub.ProviderSubscriptionID = *u.ProviderSubscriptionID
	}
	if u.ActivatedAt != nil && sub.ActivatedAt == nil {
		sub.ActivatedAt = u.ActivatedAt
	}
	if u.TrialStartAt != nil && sub.TrialStartAt == nil {
		sub.TrialStartAt = u.TrialStartAt
	}
	if u.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *u.CancelAtPeriodEnd
	}
	sub.UpdatedAt = time.Now().UTC()
	copied := *sub
	return &copied, nil
}

func (m *memoryRepo) InsertPaymentEventIfAbsent(ev *models.PaymentEvent) (bool, error) {
	if _, exists := m.payments[ev.ProviderPaymentID]; exists {
		return false, nil
	}
	m.payments[ev.ProviderPaymentID] = ev
	return true, nil
}

func (m *memoryRepo) RecordWebhook(_ *models.WebhookRecord) error {
	m.webhooks++
	return nil
}

func (m *memoryRepo) Transaction(fn func(subscription.Repository) error) error {
	return fn(m)
}

type stubGateway struct {
	createErr error
}

func (g *stubGateway) CreateSubscription(context.Context, subscription.CreateParams) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	return "sub_ctrl", nil
}

func (g *stubGateway) CancelAtCycleEnd(context.Context, string) error { return nil }

func newTestApp(t *testing.T) (*fiber.App, *memoryRepo) {
	t.Helper()

	cfg := config.Config{
		KeyID:         "rzp_test_key",
		KeySecret:     "key_secret",
		WebhookSecret: "webhook_secret",
		PlanIDs:       map[string]string{"standard": "plan_std"},
	}
	repo := newMemoryRepo()
	svc := subscription.NewService(repo, &stubGateway{}, cfg)
	sc := NewSubscriptionController(svc, cfg)

	app := fiber.New()
	app.Get("/api/health", sc.HandleHealth)
	app.Post("/api/create-subscription", sc.HandleCreateSubscription)
	app.Post("/api/payment-success", sc.HandlePaymentSuccess)
	app.Post("/api/cancel-subscription", sc.HandleCancelSubscription)
	app.Post("/api/webhook/razorpay", sc.HandleWebhook)
	return app, repo
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestHandleHealth(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/health", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleCreateSubscription(t *testing.T) {
	app, repo := newTestApp(t)

	status, body := postJSON(t, app, "/api/create-subscription", map[string]string{
		"email": "a@x.com", "name": "A", "phone": "+1", "plan_key": "standard",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "sub_ctrl", body["subscription_id"])
	assert.Equal(t, "rzp_test_key", body["key_id"])
	require.Contains(t, repo.subscribers, "a@x.com")
	assert.Equal(t, models.SubscriberStatusTrial, repo.subscribers["a@x.com"].Status)

	// Plan keys outside the allow-list are rejected before the gateway.
	status, body = postJSON(t, app, "/api/create-subscription", map[string]string{
		"email": "a@x.com", "name": "A", "phone": "+1", "plan_key": "enterprise",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_plan", body["error"])
}

func TestHandlePaymentSuccess_TamperedSignature(t *testing.T) {
	app, repo := newTestApp(t)

	status, body := postJSON(t, app, "/api/payment-success", map[string]string{
		"payment_id":      "pay_1",
		"subscription_id": "sub_1",
		"signature":       "deadbeefdeadbeef",
		"email":           "a@x.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_signature", body["error"])
	assert.Empty(t, repo.subscribers)
	assert.Empty(t, repo.payments)
}

func TestHandleWebhook(t *testing.T) {
	app, repo := newTestApp(t)

	payload := []byte(`{"event":"subscription.activated","payload":{"subscription":{"entity":{"id":"sub_1","notes":{"email":"a@x.com"}}}}}`)
	mac := hmac.New(sha256.New, []byte("webhook_secret"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(fiber.MethodPost, "/api/webhook/razorpay", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Razorpay-Signature", sig)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"processed"}`, string(raw))
	assert.Equal(t, models.SubscriberStatusActive, repo.subscribers["a@x.com"].Status)

	// Invalid signature: still 200, still audited, no mutation.
	req = httptest.NewRequest(fiber.MethodPost, "/api/webhook/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	resp, err = app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"signature_invalid"}`, string(raw))
	assert.Equal(t, 2, repo.webhooks)
}

func TestHandleCancelSubscription_NotFound(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := postJSON(t, app, "/api/cancel-subscription", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "subscriber_not_found", body["error"])
}

func TestHandleCreateSubscription_UpstreamRejected(t *testing.T) {
	cfg := config.Config{
		KeyID: "rzp_test_key", KeySecret: "s", WebhookSecret: "w",
		PlanIDs: map[string]string{"standard": "plan_std"},
	}
	repo := newMemoryRepo()
	svc := subscription.NewService(repo, &stubGateway{
		createErr: &subscription.GatewayError{StatusCode: 400, Body: "bad plan"},
	}, cfg)
	sc := NewSubscriptionController(svc, cfg)

	app := fiber.New()
	app.Post("/api/create-subscription", sc.HandleCreateSubscription)

	status, body := postJSON(t, app, "/api/create-subscription", map[string]string{
		"email": "a@x.com", "name": "A", "phone": "+1", "plan_key": "standard",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "provider_rejected", body["error"])
	assert.Empty(t, repo.subscribers)
}
