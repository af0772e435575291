package models

import (
	"time"

	"github.com/fatflowers/iftar/pkg/types"
	"gorm.io/datatypes"
)

// Payment is a gateway payment. TransactionID is generated locally and sent to the gateway;
// APIResponseID and OperatorID are whatever the gateway hands back.
type Payment struct {
	ID            string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ParticipantID string              `gorm:"column:participant_id;type:uuid;not null;index" json:"participant_id"`
	Amount        int64               `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Method        types.PaymentMethod `gorm:"column:method;type:varchar(32);not null" json:"method"`
	Status        types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	TransactionID string              `gorm:"column:transaction_id;type:varchar(128);not null;uniqueIndex" json:"transaction_id"`
	APIResponseID *string             `gorm:"column:api_response_id;type:varchar(128);index" json:"api_response_id"`
	OperatorID    *string             `gorm:"column:operator_id;type:varchar(128)" json:"operator_id"`
	PaymentURL    string              `gorm:"column:payment_url;type:text" json:"payment_url"`
	CompletedAt   *time.Time          `gorm:"column:completed_at" json:"completed_at"`
	// Extra keeps the raw gateway answers for troubleshooting.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentRef is the projection scanned by the fuzzy transaction id matcher.
type PaymentRef struct {
	ID            string
	TransactionID string
	APIResponseID *string
	CreatedAt     time.Time
}
