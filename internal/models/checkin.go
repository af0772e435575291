package models

import (
	"time"

	"github.com/fatflowers/iftar/pkg/types"
)

// CheckIn is an append-only entry in the door log.
type CheckIn struct {
	ID            string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ParticipantID string              `gorm:"column:participant_id;type:uuid;not null;index" json:"participant_id"`
	GuestID       *string             `gorm:"column:guest_id;type:uuid" json:"guest_id"`
	Method        types.CheckInMethod `gorm:"column:method;type:varchar(32);not null" json:"method"`
	Operator      string              `gorm:"column:operator;type:varchar(64)" json:"operator"`
	CheckedInAt   time.Time           `gorm:"column:checked_in_at;not null;index" json:"checked_in_at"`
}

func (CheckIn) TableName() string { return "check_ins" }
