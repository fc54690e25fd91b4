package subscription

import (
	"errors"
	"strings"
	"time"

	"github.com/alphadominico/subscription-backend/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciliation engine.
// Transaction yields a Repository bound to the transaction so a ledger upsert
// and its payment-event append commit or roll back together.
type Repository interface {
	GetSubscriberByEmail(email string) (*models.Subscriber, error)
	UpsertSubscriber(update SubscriberUpdate) (*models.Subscriber, error)
	InsertPaymentEventIfAbsent(event *models.PaymentEvent) (bool, error)
	RecordWebhook(record *models.WebhookRecord) error
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscriberByEmail(email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := r.db.Where("email = ?", normalizeEmail(email)).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscriber applies a sparse update to the ledger row for the email,
// inserting a fresh trial row when none exists. Only non-nil fields are
// written; trial_start_at, activated_at and cancelled_at are written only if
// currently unset; updated_at is always refreshed.
func (r *gormRepository) UpsertSubscriber(update SubscriberUpdate) (*models.Subscriber, error) {
	email := normalizeEmail(update.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	var existing models.Subscriber
	err := r.db.Where("email = ?", email).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.insertSubscriber(email, update)
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Phone != nil {
		updates["phone"] = *update.Phone
	}
	if update.PlanKey != nil {
		updates["plan_key"] = *update.PlanKey
	}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.ProviderCustomerID != nil {
		updates["provider_customer_id"] = *update.ProviderCustomerID
	}
	if update.ProviderSubscriptionID != nil {
		updates["provider_subscription_id"] = *update.ProviderSubscriptionID
	}
	if update.TrialStartAt != nil && existing.TrialStartAt == nil {
		updates["trial_start_at"] = *update.TrialStartAt
	}
	if update.ActivatedAt != nil && existing.ActivatedAt == nil {
		updates["activated_at"] = *update.ActivatedAt
	}
	if update.CancelledAt != nil && existing.CancelledAt == nil {
		updates["cancelled_at"] = *update.CancelledAt
	}
	if update.CancelAtPeriodEnd != nil {
		updates["cancel_at_period_end"] = *update.CancelAtPeriodEnd
	}

	if err := r.db.Model(&models.Subscriber{}).Where("email = ?", email).Updates(updates).Error; err != nil {
		return nil, err
	}

	var stored models.Subscriber
	if err := r.db.Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) insertSubscriber(email string, update SubscriberUpdate) (*models.Subscriber, error) {
	sub := &models.Subscriber{
		Email:   email,
		PlanKey: models.PlanStandard,
		Status:  models.SubscriberStatusTrial,
	}
	if update.Name != nil {
		sub.Name = *update.Name
	}
	if update.Phone != nil {
		sub.Phone = *update.Phone
	}
	if update.PlanKey != nil {
		sub.PlanKey = *update.PlanKey
	}
	if update.Status != nil {
		sub.Status = *update.Status
	}
	if update.ProviderCustomerID != nil {
		sub.ProviderCustomerID = *update.ProviderCustomerID
	}
	if update.ProviderSubscriptionID != nil {
		sub.ProviderSubscriptionID = *update.ProviderSubscriptionID
	}
	sub.TrialStartAt = update.TrialStartAt
	sub.ActivatedAt = update.ActivatedAt
	sub.CancelledAt = update.CancelledAt
	if update.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *update.CancelAtPeriodEnd
	}

	if err := r.db.Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// InsertPaymentEventIfAbsent appends a payment event unless one already
// exists for the provider payment id. Reports whether a row was created.
func (r *gormRepository) InsertPaymentEventIfAbsent(event *models.PaymentEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) RecordWebhook(record *models.WebhookRecord) error {
	return r.db.Create(record).Error
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
