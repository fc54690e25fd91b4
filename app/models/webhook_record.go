package models

import "time"

// WebhookRecord is the append-only audit trail of inbound webhook deliveries.
// There is intentionally no uniqueness constraint: every delivery gets its own
// row, including signature failures and payloads we could not parse, so the
// forensic trail survives whatever reconciliation does afterwards.
type WebhookRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Event          string    `gorm:"type:varchar(100);index" json:"event"`
	EntityID       string    `gorm:"type:varchar(191);default:''" json:"entity_id"`
	Payload        string    `gorm:"type:longtext" json:"payload"`
	SignatureValid bool      `gorm:"default:false;index" json:"signature_valid"`
	ReceivedAt     time.Time `gorm:"autoCreateTime;index" json:"received_at"`
}
