package models

import "time"

// Participant is a registered attendee. The short code and QR code are the two check-in credentials.
type Participant struct {
	ID        string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	FirstName string `gorm:"column:first_name;type:varchar(128);not null" json:"first_name"`
	LastName  string `gorm:"column:last_name;type:varchar(128);not null" json:"last_name"`
	Email     string `gorm:"column:email;type:varchar(255);not null;index" json:"email"`
	Phone     string `gorm:"column:phone;type:varchar(32);not null" json:"phone"`
	IsMember  bool   `gorm:"column:is_member;not null;default:false" json:"is_member"`
	// ShortCode is stored uppercased; the unique index is what guarantees uniqueness.
	ShortCode   string     `gorm:"column:short_code;type:varchar(16);not null;uniqueIndex" json:"short_code"`
	QRCode      *string    `gorm:"column:qr_code;type:varchar(128);uniqueIndex" json:"qr_code"`
	CheckedIn   bool       `gorm:"column:checked_in;not null;default:false" json:"checked_in"`
	CheckedInAt *time.Time `gorm:"column:checked_in_at" json:"checked_in_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Guests         []*Guest         `gorm:"foreignKey:ParticipantID" json:"guests,omitempty"`
	Payments       []*Payment       `gorm:"foreignKey:ParticipantID" json:"payments,omitempty"`
	ManualPayments []*ManualPayment `gorm:"foreignKey:ParticipantID" json:"manual_payments,omitempty"`
}

func (Participant) TableName() string { return "participants" }

func (p *Participant) FullName() string {
	if p == nil {
		return ""
	}
	return p.FirstName + " " + p.LastName
}

// HasQRCode reports whether an access credential was already issued.
func (p *Participant) HasQRCode() bool {
	return p != nil && p.QRCode != nil && *p.QRCode != ""
}

// Companions counts guests that are not the participant themself.
func (p *Participant) Companions() int {
	n := 0
	for _, g := range p.Guests {
		if !g.IsMain {
			n++
		}
	}
	return n
}
