package subscription

import (
	"encoding/json"
	"strings"
)

// Webhook event names handled by the engine. Anything else is recorded in the
// audit trail and acknowledged without processing.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionCompleted = "subscription.completed"
	EventPaymentFailed         = "payment.failed"
)

// subscriptionEntity carries the fields the engine uses from a
// payload.subscription.entity object. Email and plan key travel in the notes
// we attach at subscription creation.
type subscriptionEntity struct {
	ID      string
	Email   string
	Name    string
	PlanKey string
}

// paymentEntity carries the fields used from a payload.payment.entity object.
type paymentEntity struct {
	ID             string
	SubscriptionID string
	OrderID        string
	Email          string
	Contact        string
	Currency       string
	Amount         int64
}

// webhookEvent is the parsed form of a provider webhook delivery. Only the
// entities present in the payload are non-nil; handlers are expected to check
// for absence and skip rather than fail.
type webhookEvent struct {
	Name         string
	EntityID     string
	Subscription *subscriptionEntity
	Payment      *paymentEntity
}

// rawWebhookPayload mirrors the provider's nested JSON shape. Missing keys
// simply leave zero values behind, which is exactly the "skip, don't fail"
// policy the handlers build on.
type rawWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID    string `json:"id"`
				Notes struct {
					Email   string `json:"email"`
					Name    string `json:"name"`
					PlanKey string `json:"plan_key"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity struct {
				ID             string `json:"id"`
				Amount         int64  `json:"amount"`
				Currency       string `json:"currency"`
				Contact        string `json:"contact"`
				Email          string `json:"email"`
				OrderID        string `json:"order_id"`
				SubscriptionID string `json:"subscription_id"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func parseWebhookEvent(rawBody []byte) (*webhookEvent, error) {
	var raw rawWebhookPayload
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return nil, err
	}

	out := &webhookEvent{
		Name:     strings.TrimSpace(raw.Event),
		EntityID: extractEntityID(&raw),
	}

	if sub := raw.Payload.Subscription.Entity; sub.ID != "" || sub.Notes.Email != "" {
		out.Subscription = &subscriptionEntity{
			ID:      strings.TrimSpace(sub.ID),
			Email:   strings.TrimSpace(sub.Notes.Email),
			Name:    strings.TrimSpace(sub.Notes.Name),
			PlanKey: strings.ToLower(strings.TrimSpace(sub.Notes.PlanKey)),
		}
	}

	if pay := raw.Payload.Payment.Entity; pay.ID != "" || pay.Email != "" || pay.SubscriptionID != "" {
		out.Payment = &paymentEntity{
			ID:             strings.TrimSpace(pay.ID),
			SubscriptionID: strings.TrimSpace(pay.SubscriptionID),
			OrderID:        strings.TrimSpace(pay.OrderID),
			Email:          strings.TrimSpace(pay.Email),
			Contact:        strings.TrimSpace(pay.Contact),
			Currency:       strings.TrimSpace(pay.Currency),
			Amount:         pay.Amount,
		}
	}

	return out, nil
}

// extractEntityID picks the first non-empty entity id in fixed priority order
// (subscription, payment, order). This is best-effort audit metadata only,
// never an input to authorization or state decisions.
func extractEntityID(raw *rawWebhookPayload) string {
	if id := strings.TrimSpace(raw.Payload.Subscription.Entity.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(raw.Payload.Payment.Entity.ID); id != "" {
		return id
	}
	return strings.TrimSpace(raw.Payload.Order.Entity.ID)
}
