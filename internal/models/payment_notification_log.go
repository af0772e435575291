package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentNotificationLogStatus string

const (
	PaymentNotificationLogStatusReceived     PaymentNotificationLogStatus = "received"
	PaymentNotificationLogStatusHandled      PaymentNotificationLogStatus = "handled"
	PaymentNotificationLogStatusHandleFailed PaymentNotificationLogStatus = "handle_failed"
)

// PaymentNotificationLog records every gateway callback and how it was handled.
type PaymentNotificationLog struct {
	ID            string                       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TraceID       string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	TransactionID string                       `gorm:"column:transaction_id;type:varchar(128);index" json:"transaction_id"`
	PaymentID     *string                      `gorm:"column:payment_id;type:uuid" json:"payment_id"`
	Data          datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result        *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status        PaymentNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_log" }
