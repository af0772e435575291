package models

import "time"

// Guest is a seat attached to a participant. The main guest is the participant themself.
type Guest struct {
	ID            string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ParticipantID string     `gorm:"column:participant_id;type:uuid;not null;index" json:"participant_id"`
	FirstName     string     `gorm:"column:first_name;type:varchar(128);not null" json:"first_name"`
	LastName      string     `gorm:"column:last_name;type:varchar(128)" json:"last_name"`
	IsMain        bool       `gorm:"column:is_main;not null;default:false" json:"is_main"`
	CheckedIn     bool       `gorm:"column:checked_in;not null;default:false" json:"checked_in"`
	CheckedInAt   *time.Time `gorm:"column:checked_in_at" json:"checked_in_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Guest) TableName() string { return "guests" }
