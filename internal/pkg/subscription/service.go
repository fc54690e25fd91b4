package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/alphadominico/subscription-backend/app/models"
	"github.com/alphadominico/subscription-backend/internal/pkg/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the reconciliation engine. It merges the three asynchronous
// inputs (checkout confirmation, provider webhooks, cancellation requests)
// into the subscriber ledger with idempotent, at-most-once semantics.
//
// Webhooks are authoritative. The checkout callback and the cancel endpoint
// only pre-stage transitions; the terminal state always arrives on the
// provider's event stream.
type Service struct {
	repo    Repository
	gateway ProviderGateway
	cfg     config.Config
}

// NewService creates the engine from injected collaborators.
func NewService(repo Repository, gateway ProviderGateway, cfg config.Config) *Service {
	return &Service{repo: repo, gateway: gateway, cfg: cfg}
}

// NewServiceFromDB creates the engine from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway ProviderGateway, cfg config.Config) *Service {
	return NewService(NewRepository(db), gateway, cfg)
}

// CreateSubscription validates the plan key against the server-side
// allow-list, creates the upstream subscription and pre-registers the
// subscriber as trial. Client-supplied plan identifiers are never trusted;
// only the key is accepted and resolved server-side.
func (s *Service) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*CreateSubscriptionResult, error) {
	planID, allowed := s.cfg.PlanID(in.PlanKey)
	if !allowed {
		return nil, ErrInvalidPlan
	}
	if planID == "" {
		return nil, ErrPlanNotConfigured
	}
	planKey := normalizedPlanKey(in.PlanKey)

	subID, err := s.gateway.CreateSubscription(ctx, CreateParams{
		PlanID:         planID,
		TotalCount:     120, // max renewal cycles (10 years)
		Quantity:       1,
		CustomerNotify: true,
		Notes: map[string]string{
			"email":    in.Email,
			"name":     in.Name,
			"plan_key": planKey,
		},
	})
	if err != nil {
		return nil, mapGatewayError(err)
	}
	log.Printf("Subscription created: %s | %s | %s", subID, in.Email, planKey)

	now := time.Now().UTC()
	status := models.SubscriberStatusTrial
	if _, err := s.repo.UpsertSubscriber(SubscriberUpdate{
		Email:                  in.Email,
		Name:                   strPtr(in.Name),
		Phone:                  strPtr(in.Phone),
		PlanKey:                strPtr(planKey),
		Status:                 &status,
		ProviderSubscriptionID: &subID,
		TrialStartAt:           &now,
	}); err != nil {
		return nil, fmt.Errorf("register subscriber: %w", err)
	}

	return &CreateSubscriptionResult{SubscriptionID: subID, KeyID: s.cfg.KeyID}, nil
}

// ConfirmPayment handles the checkout success callback. This is a secondary
// confirmation path behind the authoritative webhook stream, so it is safe to
// call any number of times for the same payment: the ledger upsert is
// convergent and the payment log insert is a no-op on duplicates.
func (s *Service) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) error {
	_ = ctx
	if !VerifyPaymentSignature(in.PaymentID, in.SubscriptionID, in.Signature, s.cfg.KeySecret) {
		log.Printf("Invalid payment signature for payment %s", in.PaymentID)
		return ErrInvalidSignature
	}

	now := time.Now().UTC()
	status := models.SubscriberStatusActive
	err := s.repo.Transaction(func(tx Repository) error {
		update := SubscriberUpdate{
			Email:                  in.Email,
			Name:                   strPtr(in.Name),
			Phone:                  strPtr(in.Phone),
			Status:                 &status,
			ProviderSubscriptionID: strPtr(in.SubscriptionID),
			ActivatedAt:            &now,
		}
		if models.ValidPlanKey(normalizedPlanKey(in.PlanKey)) {
			update.PlanKey = strPtr(normalizedPlanKey(in.PlanKey))
		}
		if _, err := tx.UpsertSubscriber(update); err != nil {
			return err
		}
		_, err := tx.InsertPaymentEventIfAbsent(&models.PaymentEvent{
			Email:                  normalizeEmail(in.Email),
			Phone:                  in.Phone,
			PlanKey:                normalizedPlanKey(in.PlanKey),
			ProviderPaymentID:      in.PaymentID,
			ProviderSubscriptionID: in.SubscriptionID,
			EventType:              models.PaymentEventManualSuccess,
			Status:                 models.PaymentStatusCaptured,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}

	log.Printf("Payment success confirmed: %s | %s", in.PaymentID, in.Email)
	return nil
}

// ProcessWebhook ingests one provider webhook delivery. The audit record is
// written unconditionally before any decision; if that write fails the whole
// request fails loudly so invalid events are never invisible to operators.
// Signature failures are acknowledged without mutation — the provider must
// not keep retrying events we will never accept.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	sigOK := VerifyWebhookSignature(rawBody, signature, s.cfg.WebhookSecret)

	event, parseErr := parseWebhookEvent(rawBody)
	eventName, entityID := "", ""
	if parseErr == nil {
		eventName = event.Name
		entityID = event.EntityID
	}

	if err := s.repo.RecordWebhook(&models.WebhookRecord{
		Event:          eventName,
		EntityID:       entityID,
		Payload:        string(rawBody),
		SignatureValid: sigOK,
	}); err != nil {
		return nil, fmt.Errorf("record webhook: %w", err)
	}

	if !sigOK {
		log.Printf("Webhook signature invalid for event: %s", eventName)
		return &WebhookResult{Status: WebhookStatusSignatureInvalid, Skipped: true}, nil
	}
	if parseErr != nil {
		log.Printf("Webhook: unparseable body, recorded and skipped")
		return &WebhookResult{Status: WebhookStatusProcessed, Skipped: true}, nil
	}
	log.Printf("Webhook received: %s", event.Name)

	var err error
	skipped := false
	switch event.Name {
	case EventSubscriptionActivated:
		skipped, err = s.handleSubscriptionActivated(ctx, event)
	case EventSubscriptionCharged:
		skipped, err = s.handleSubscriptionCharged(ctx, event, rawBody)
	case EventSubscriptionCancelled:
		skipped, err = s.handleSubscriptionCancelled(ctx, event)
	case EventSubscriptionCompleted:
		skipped, err = s.handleSubscriptionCompleted(ctx, event)
	case EventPaymentFailed:
		skipped, err = s.handlePaymentFailed(ctx, event, rawBody)
	default:
		skipped = true
	}
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", event.Name, err)
	}

	result := &WebhookResult{Status: WebhookStatusProcessed, Skipped: skipped}
	if !skipped {
		if event.Subscription != nil && event.Subscription.Email != "" {
			result.Email = event.Subscription.Email
		} else if event.Payment != nil {
			result.Email = event.Payment.Email
		}
	}
	return result, nil
}

func (s *Service) handleSubscriptionActivated(_ context.Context, event *webhookEvent) (bool, error) {
	sub := event.Subscription
	if sub == nil || sub.Email == "" {
		return true, nil
	}

	now := time.Now().UTC()
	status := models.SubscriberStatusActive
	err := s.repo.Transaction(func(tx Repository) error {
		update := SubscriberUpdate{
			Email:                  sub.Email,
			Status:                 &status,
			ProviderSubscriptionID: strPtr(sub.ID),
			ActivatedAt:            &now,
		}
		if models.ValidPlanKey(sub.PlanKey) {
			update.PlanKey = strPtr(sub.PlanKey)
		}
		_, err := tx.UpsertSubscriber(update)
		return err
	})
	if err != nil {
		return false, err
	}
	log.Printf("Subscription activated: %s | %s", sub.ID, sub.Email)
	return false, nil
}

func (s *Service) handleSubscriptionCharged(_ context.Context, event *webhookEvent, rawBody []byte) (bool, error) {
	sub, pay := event.Subscription, event.Payment
	if sub == nil || pay == nil || sub.Email == "" || pay.ID == "" {
		return true, nil
	}

	currency := pay.Currency
	if currency == "" {
		currency = "INR"
	}

	status := models.SubscriberStatusActive
	err := s.repo.Transaction(func(tx Repository) error {
		update := SubscriberUpdate{
			Email:                  sub.Email,
			Status:                 &status,
			ProviderSubscriptionID: strPtr(sub.ID),
		}
		if models.ValidPlanKey(sub.PlanKey) {
			update.PlanKey = strPtr(sub.PlanKey)
		}
		if _, err := tx.UpsertSubscriber(update); err != nil {
			return err
		}
		_, err := tx.InsertPaymentEventIfAbsent(&models.PaymentEvent{
			Email:                  normalizeEmail(sub.Email),
			Phone:                  pay.Contact,
			PlanKey:                sub.PlanKey,
			ProviderPaymentID:      pay.ID,
			ProviderSubscriptionID: sub.ID,
			ProviderOrderID:        pay.OrderID,
			Amount:                 pay.Amount,
			Currency:               currency,
			EventType:              models.PaymentEventCharged,
			Status:                 models.PaymentStatusCaptured,
			RawPayload:             string(rawBody),
		})
		return err
	})
	if err != nil {
		return false, err
	}
	log.Printf("Charged: %s | %d %s | %s", pay.ID, pay.Amount, currency, sub.Email)
	return false, nil
}

func (s *Service) handleSubscriptionCancelled(_ context.Context, event *webhookEvent) (bool, error) {
	sub := event.Subscription
	if sub == nil || sub.Email == "" {
		return true, nil
	}

	now := time.Now().UTC()
	status := models.SubscriberStatusCancelled
	err := s.repo.Transaction(func(tx Repository) error {
		_, err := tx.UpsertSubscriber(SubscriberUpdate{
			Email:                  sub.Email,
			Status:                 &status,
			ProviderSubscriptionID: strPtr(sub.ID),
			CancelledAt:            &now,
		})
		return err
	})
	if err != nil {
		return false, err
	}
	log.Printf("Subscription cancelled: %s | %s", sub.ID, sub.Email)
	return false, nil
}

func (s *Service) handleSubscriptionCompleted(_ context.Context, event *webhookEvent) (bool, error) {
	sub := event.Subscription
	if sub == nil || sub.Email == "" {
		return true, nil
	}

	status := models.SubscriberStatusExpired
	err := s.repo.Transaction(func(tx Repository) error {
		_, err := tx.UpsertSubscriber(SubscriberUpdate{
			Email:                  sub.Email,
			Status:                 &status,
			ProviderSubscriptionID: strPtr(sub.ID),
		})
		return err
	})
	if err != nil {
		return false, err
	}
	log.Printf("Subscription completed/expired: %s | %s", sub.ID, sub.Email)
	return false, nil
}

func (s *Service) handlePaymentFailed(_ context.Context, event *webhookEvent, rawBody []byte) (bool, error) {
	pay := event.Payment
	if pay == nil || pay.Email == "" {
		return true, nil
	}

	paymentID := pay.ID
	if paymentID == "" {
		// Failed charges can arrive without a payment id; synthesize one so
		// the append stays unique without colliding with real ids.
		paymentID = "fail_" + uuid.NewString()
	}

	status := models.SubscriberStatusPaymentFailed
	err := s.repo.Transaction(func(tx Repository) error {
		if _, err := tx.UpsertSubscriber(SubscriberUpdate{
			Email:  pay.Email,
			Status: &status,
		}); err != nil {
			return err
		}
		_, err := tx.InsertPaymentEventIfAbsent(&models.PaymentEvent{
			Email:                  normalizeEmail(pay.Email),
			PlanKey:                "unknown",
			ProviderPaymentID:      paymentID,
			ProviderSubscriptionID: pay.SubscriptionID,
			EventType:              models.PaymentEventFailed,
			Status:                 models.PaymentStatusFailed,
			RawPayload:             string(rawBody),
		})
		return err
	})
	if err != nil {
		return false, err
	}
	log.Printf("Payment failed: %s | %s", paymentID, pay.Email)
	return false, nil
}

// CancelSubscription schedules a cancel-at-cycle-end upstream and flags the
// ledger row. The status itself stays untouched: the terminal transition is
// owned by the future subscription.cancelled webhook. On upstream failure no
// local state changes, so the ledger never claims a cancellation that did not
// happen at the provider.
func (s *Service) CancelSubscription(ctx context.Context, email string) (*CancelResult, error) {
	sub, err := s.repo.GetSubscriberByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	if sub.IsTerminal() {
		return &CancelResult{AlreadyCancelled: true}, nil
	}

	if sub.ProviderSubscriptionID != "" {
		if err := s.gateway.CancelAtCycleEnd(ctx, sub.ProviderSubscriptionID); err != nil {
			log.Printf("Provider cancel error for %s: %v", sub.ProviderSubscriptionID, err)
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		log.Printf("Subscription cancel-at-period-end set: %s | %s", sub.ProviderSubscriptionID, email)
	}

	flag := true
	if _, err := s.repo.UpsertSubscriber(SubscriberUpdate{
		Email:             email,
		CancelAtPeriodEnd: &flag,
	}); err != nil {
		return nil, fmt.Errorf("flag cancellation: %w", err)
	}
	// Full cancellation is applied by the subscription.cancelled webhook.

	return &CancelResult{}, nil
}

// GetStatus returns the subscriber snapshot, or a not_found snapshot for
// unknown emails. Read-only.
func (s *Service) GetStatus(ctx context.Context, email string) (*StatusSnapshot, error) {
	_ = ctx
	sub, err := s.repo.GetSubscriberByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &StatusSnapshot{Status: statusNotFound, Active: false}, nil
		}
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	updatedAt := sub.UpdatedAt
	return &StatusSnapshot{
		Email:                  sub.Email,
		Name:                   sub.Name,
		PlanKey:                sub.PlanKey,
		Status:                 sub.Status,
		Active:                 sub.IsActive(),
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		TrialStartAt:           sub.TrialStartAt,
		ActivatedAt:            sub.ActivatedAt,
		CancelledAt:            sub.CancelledAt,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		UpdatedAt:              &updatedAt,
	}, nil
}

func mapGatewayError(err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.IsRejection() {
		return fmt.Errorf("%w: %v", ErrUpstreamRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

func normalizedPlanKey(planKey string) string {
	return strings.ToLower(strings.TrimSpace(planKey))
}

func strPtr(s string) *string {
	return &s
}
