package models

import (
	"time"

	"github.com/fatflowers/iftar/pkg/types"
	"gorm.io/datatypes"
)

type NotificationLogStatus string

const (
	NotificationLogStatusSent   NotificationLogStatus = "sent"
	NotificationLogStatusFailed NotificationLogStatus = "failed"
)

// NotificationLog records one email or SMS delivery attempt.
type NotificationLog struct {
	ID            string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ParticipantID *string                   `gorm:"column:participant_id;type:uuid;index" json:"participant_id"`
	Channel       types.NotificationChannel `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Recipient     string                    `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	TemplateID    string                    `gorm:"column:template_id;type:varchar(64)" json:"template_id"`
	Params        datatypes.JSONMap         `gorm:"column:params;type:jsonb;default:'{}'" json:"params"`
	Status        NotificationLogStatus     `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Attempt       int                       `gorm:"column:attempt;not null;default:0" json:"attempt"`
	Error         string                    `gorm:"column:error;type:text" json:"error"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func (NotificationLog) TableName() string { return "notification_log" }
