package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/alphadominico/subscription-backend/internal/pkg/cache"
	"github.com/alphadominico/subscription-backend/internal/pkg/config"
	"github.com/alphadominico/subscription-backend/internal/pkg/subscription"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	requestTimeout        = 20 * time.Second
	webhookTimeout        = 15 * time.Second
	statusSnapshotTTL     = 30 * time.Second
	razorpaySignatureName = "X-Razorpay-Signature"
)

var validate = validator.New()

// SubscriptionController exposes the subscription lifecycle HTTP surface on
// top of the reconciliation engine.
type SubscriptionController struct {
	svc *subscription.Service
	cfg config.Config
}

// NewSubscriptionController wires the controller with its collaborators.
func NewSubscriptionController(svc *subscription.Service, cfg config.Config) *SubscriptionController {
	return &SubscriptionController{svc: svc, cfg: cfg}
}

type createSubscriptionRequest struct {
	Email   string `json:"email" validate:"required,email,max=200"`
	Name    string `json:"name" validate:"required,max=150"`
	Phone   string `json:"phone" validate:"required,max=32"`
	PlanKey string `json:"plan_key" validate:"required,max=32"`
}

type paymentSuccessRequest struct {
	PaymentID      string `json:"payment_id" validate:"required,max=191"`
	SubscriptionID string `json:"subscription_id" validate:"required,max=191"`
	Signature      string `json:"signature" validate:"required,max=256"`
	Email          string `json:"email" validate:"required,email,max=200"`
	Name           string `json:"name" validate:"max=150"`
	Phone          string `json:"phone" validate:"max=32"`
	PlanKey        string `json:"plan_key" validate:"max=32"`
}

type cancelSubscriptionRequest struct {
	Email string `json:"email" validate:"required,email,max=200"`
}

// HandleCreateSubscription creates the upstream subscription and
// pre-registers the subscriber as trial.
func (sc *SubscriptionController) HandleCreateSubscription(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := sc.svc.CreateSubscription(ctx, subscription.CreateSubscriptionInput{
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		PlanKey: req.PlanKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrInvalidPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan"})
		case errors.Is(err, subscription.ErrPlanNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "plan_not_configured"})
		case errors.Is(err, subscription.ErrUpstreamRejected):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider_rejected"})
		case errors.Is(err, subscription.ErrUpstream):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_unavailable"})
		default:
			log.Printf("create subscription failed for %s: %v", req.Email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
		}
	}

	invalidateStatusCache(req.Email)
	return c.Status(fiber.StatusOK).JSON(res)
}

// HandlePaymentSuccess is the secondary confirmation path behind the
// authoritative webhook stream.
func (sc *SubscriptionController) HandlePaymentSuccess(c *fiber.Ctx) error {
	var req paymentSuccessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := sc.svc.ConfirmPayment(ctx, subscription.ConfirmPaymentInput{
		PaymentID:      req.PaymentID,
		SubscriptionID: req.SubscriptionID,
		Signature:      req.Signature,
		Email:          req.Email,
		Name:           req.Name,
		Phone:          req.Phone,
		PlanKey:        req.PlanKey,
	})
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Printf("payment confirmation failed for %s: %v", req.PaymentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}

	invalidateStatusCache(req.Email)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// HandleWebhook ingests provider webhook deliveries. The response is 200 for
// both processed and signature-invalid deliveries so the provider's retry
// machinery never hammers events the engine has already decided to ignore;
// only a failed audit write is surfaced as an error.
func (sc *SubscriptionController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(razorpaySignatureName))

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := sc.svc.ProcessWebhook(ctx, rawBody, signature)
	if err != nil {
		log.Printf("webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	if res.Email != "" {
		invalidateStatusCache(res.Email)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// HandleCancelSubscription schedules a cancel-at-cycle-end. The subscriber
// keeps access until the end of the paid period; the terminal transition
// arrives later via webhook.
func (sc *SubscriptionController) HandleCancelSubscription(c *fiber.Ctx) error {
	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := sc.svc.CancelSubscription(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "subscriber_not_found"})
		case errors.Is(err, subscription.ErrUpstream):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_cancel_failed"})
		default:
			log.Printf("cancel failed for %s: %v", req.Email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
		}
	}

	if res.AlreadyCancelled {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "already_cancelled"})
	}

	invalidateStatusCache(req.Email)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "cancel_scheduled",
		"message": "Your subscription will not renew. Access continues until end of billing period.",
	})
}

// HandleSubscriptionStatus returns the subscriber snapshot for an email.
func (sc *SubscriptionController) HandleSubscriptionStatus(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email_required"})
	}

	cacheKey := cache.SubscriptionStatusKey(email)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	snap, err := sc.svc.GetStatus(ctx, email)
	if err != nil {
		log.Printf("status lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}

	if encoded, err := json.Marshal(snap); err == nil {
		_ = cache.Set(cacheKey, string(encoded), statusSnapshotTTL)
	}
	return c.Status(fiber.StatusOK).JSON(snap)
}

// HandleHealth is the liveness probe.
func (sc *SubscriptionController) HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"service": "subscription-backend",
	})
}

func invalidateStatusCache(email string) {
	if err := cache.Delete(cache.SubscriptionStatusKey(email)); err != nil {
		log.Printf("status cache invalidation failed for %s: %v", email, err)
	}
}
