package models

import "time"

const (
	PaymentEventCharged       = "subscription.charged"
	PaymentEventActivated     = "subscription.activated"
	PaymentEventCaptured      = "payment.captured"
	PaymentEventManualSuccess = "manual_success"
	PaymentEventFailed        = "payment.failed"
)

const (
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
)

// PaymentEvent is the immutable payment log. The unique index on
// ProviderPaymentID makes duplicate webhook delivery a no-op insert, which is
// what protects revenue counting from provider redeliveries.
type PaymentEvent struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Email                  string    `gorm:"type:varchar(200);not null;index" json:"email"`
	Phone                  string    `gorm:"type:varchar(32)" json:"phone"`
	PlanKey                string    `gorm:"type:varchar(32)" json:"plan_key"`
	ProviderPaymentID      string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_payment_id"`
	ProviderSubscriptionID string    `gorm:"type:varchar(191);default:''" json:"provider_subscription_id"`
	ProviderOrderID        string    `gorm:"type:varchar(191);default:''" json:"provider_order_id"`
	Amount                 int64     `gorm:"not null;default:0" json:"amount"`
	Currency               string    `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	EventType              string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Status                 string    `gorm:"type:varchar(32);not null;default:'captured'" json:"status"`
	RawPayload             string    `gorm:"type:longtext" json:"raw_payload"`
	LoggedAt               time.Time `gorm:"autoCreateTime;index" json:"logged_at"`
}
