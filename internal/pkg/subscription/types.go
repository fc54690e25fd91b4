package subscription

import (
	"context"
	"time"
)

// CreateParams is the contract for creating an upstream subscription. Notes
// are echoed back inside later webhook payloads, which is how webhook events
// find their way back to a subscriber email.
type CreateParams struct {
	PlanID         string
	TotalCount     int
	Quantity       int
	CustomerNotify bool
	Notes          map[string]string
}

// ProviderGateway is the synchronous upstream collaborator. Both calls must
// be bounded by the passed context; the engine never retries them.
type ProviderGateway interface {
	CreateSubscription(ctx context.Context, params CreateParams) (string, error)
	CancelAtCycleEnd(ctx context.Context, subscriptionID string) error
}

// SubscriberUpdate is a sparse field mask for the ledger upsert. Nil pointer
// fields keep their current value. The three lifecycle timestamps are
// set-only-if-unset so that redelivered events never move them.
type SubscriberUpdate struct {
	Email                  string
	Name                   *string
	Phone                  *string
	PlanKey                *string
	Status                 *string
	ProviderCustomerID     *string
	ProviderSubscriptionID *string
	TrialStartAt           *time.Time
	ActivatedAt            *time.Time
	CancelledAt            *time.Time
	CancelAtPeriodEnd      *bool
}

type CreateSubscriptionInput struct {
	Email   string
	Name    string
	Phone   string
	PlanKey string
}

type CreateSubscriptionResult struct {
	SubscriptionID string `json:"subscription_id"`
	KeyID          string `json:"key_id"`
}

type ConfirmPaymentInput struct {
	PaymentID      string
	SubscriptionID string
	Signature      string
	Email          string
	Name           string
	Phone          string
	PlanKey        string
}

// Webhook acknowledgment statuses. Both are delivered with HTTP 200 so the
// provider never retries an event we have already decided about.
const (
	WebhookStatusProcessed        = "processed"
	WebhookStatusSignatureInvalid = "signature_invalid"
)

type WebhookResult struct {
	Status string `json:"status"`
	// Skipped is set when the delivery was acknowledged without any state
	// mutation (unknown event, missing fields, unparseable payload).
	Skipped bool `json:"-"`
	// Email is the subscriber the delivery mutated, when one was. Callers
	// use it to invalidate cached status snapshots.
	Email string `json:"-"`
}

type CancelResult struct {
	AlreadyCancelled bool
}

// StatusSnapshot is the read-only view served by the status endpoint.
type StatusSnapshot struct {
	Email                  string     `json:"email,omitempty"`
	Name                   string     `json:"name,omitempty"`
	PlanKey                string     `json:"plan_key,omitempty"`
	Status                 string     `json:"status"`
	Active                 bool       `json:"active"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	TrialStartAt           *time.Time `json:"trial_start_at,omitempty"`
	ActivatedAt            *time.Time `json:"activated_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

const statusNotFound = "not_found"
