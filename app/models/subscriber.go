package models

import "time"

const (
	PlanStandard = "standard"
	PlanPro      = "pro"
)

const (
	SubscriberStatusTrial         = "trial"
	SubscriberStatusActive        = "active"
	SubscriberStatusCancelled     = "cancelled"
	SubscriberStatusExpired       = "expired"
	SubscriberStatusPaymentFailed = "payment_failed"
)

// Subscriber is the authoritative per-email subscription ledger row. Rows are
// never deleted; terminal states (cancelled/expired) keep the record around
// for audit purposes.
type Subscriber struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Email                  string     `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin;not null" json:"email"`
	Name                   string     `gorm:"type:varchar(150)" json:"name"`
	Phone                  string     `gorm:"type:varchar(32)" json:"phone"`
	PlanKey                string     `gorm:"type:varchar(32);not null;default:'standard'" json:"plan_key"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'trial';index" json:"status"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);default:''" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"provider_subscription_id"`
	TrialStartAt           *time.Time `gorm:"type:timestamp;default:null" json:"trial_start_at,omitempty"`
	ActivatedAt            *time.Time `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	CancelledAt            *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscriber currently has access. Trial counts
// as active; payment_failed does not.
func (s *Subscriber) IsActive() bool {
	return s.Status == SubscriberStatusTrial || s.Status == SubscriberStatusActive
}

// IsTerminal reports whether the subscription has ended locally. A terminal
// subscriber can still be re-registered via a new subscription creation.
func (s *Subscriber) IsTerminal() bool {
	return s.Status == SubscriberStatusCancelled || s.Status == SubscriberStatusExpired
}

// ValidPlanKey reports whether plan is one of the server-side plan keys.
func ValidPlanKey(plan string) bool {
	return plan == PlanStandard || plan == PlanPro
}
