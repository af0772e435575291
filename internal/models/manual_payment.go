package models

import (
	"time"

	"github.com/fatflowers/iftar/pkg/types"
)

// ManualPayment is a payment proven by an uploaded screenshot and validated by an administrator.
type ManualPayment struct {
	ID            string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ParticipantID string              `gorm:"column:participant_id;type:uuid;not null;index" json:"participant_id"`
	Amount        int64               `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Method        types.PaymentMethod `gorm:"column:method;type:varchar(32);not null" json:"method"`
	PhoneNumber   string              `gorm:"column:phone_number;type:varchar(32);not null" json:"phone_number"`
	ProofURL      string              `gorm:"column:proof_url;type:text;not null" json:"proof_url"`
	ProofKey      string              `gorm:"column:proof_key;type:text;not null" json:"-"`
	Comment       string              `gorm:"column:comment;type:text" json:"comment"`
	Status        types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	AdminComment  string              `gorm:"column:admin_comment;type:text" json:"admin_comment"`
	ValidatedBy   *string             `gorm:"column:validated_by;type:varchar(64)" json:"validated_by"`
	ValidatedAt   *time.Time          `gorm:"column:validated_at" json:"validated_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (ManualPayment) TableName() string { return "manual_payments" }
