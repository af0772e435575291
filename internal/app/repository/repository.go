package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/types"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// ParticipantFilterFields are the columns admin listings may filter on.
var ParticipantFilterFields = []string{"first_name", "last_name", "email", "phone", "is_member", "short_code", "checked_in"}

// ParticipantSortFields are the columns admin listings may sort on.
var ParticipantSortFields = []string{"created_at", "first_name", "last_name", "email"}

type ListParticipantsRequest struct {
	Filters []*types.CommonFilter
	SortBy  string
	Desc    bool
	Offset  int
	Limit   int
}

// Stats is the admin dashboard summary.
type Stats struct {
	Participants           int64            `json:"participants"`
	Members                int64            `json:"members"`
	Guests                 int64            `json:"guests"`
	CheckedIn              int64            `json:"checked_in"`
	PaymentsByStatus       map[string]int64 `json:"payments_by_status"`
	ManualPaymentsByStatus map[string]int64 `json:"manual_payments_by_status"`
	// Revenue sums completed gateway and manual payments.
	Revenue int64 `json:"revenue"`
}

// Repository is the persistence surface used by the services. Participant reads preload guests, payments and
// manual payments, newest payments first.
type Repository interface {
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	GetParticipantByShortCode(ctx context.Context, code string) (*models.Participant, error)
	GetParticipantByQRCode(ctx context.Context, qr string) (*models.Participant, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	SetMembership(ctx context.Context, id string, isMember bool) error
	// AssignQRCode sets the QR code only when none is stored and reports whether it did.
	AssignQRCode(ctx context.Context, participantID, qr string) (bool, error)
	// MarkCheckedIn flips the check-in flag only when unset and reports whether it did.
	MarkCheckedIn(ctx context.Context, participantID string, at time.Time) (bool, error)
	ListParticipants(ctx context.Context, req ListParticipantsRequest) ([]*models.Participant, int64, error)
	AllParticipants(ctx context.Context) ([]*models.Participant, error)

	CreateGuest(ctx context.Context, g *models.Guest) error
	GetGuest(ctx context.Context, id string) (*models.Guest, error)
	MarkGuestCheckedIn(ctx context.Context, guestID string, at time.Time) (bool, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	SetPaymentGatewayRef(ctx context.Context, id, apiResponseID, paymentURL string) error
	// TransitionPayment moves a payment from one status to another and reports whether the row was in from.
	TransitionPayment(ctx context.Context, id string, from, to types.PaymentStatus, operatorID *string, at time.Time) (bool, error)
	// PaymentRefsByExactID returns payments whose transaction id or API response id equals id.
	PaymentRefsByExactID(ctx context.Context, id string) ([]models.PaymentRef, error)
	PaymentRefs(ctx context.Context) ([]models.PaymentRef, error)

	CreateManualPayment(ctx context.Context, m *models.ManualPayment) error
	GetManualPayment(ctx context.Context, id string) (*models.ManualPayment, error)
	TransitionManualPayment(ctx context.Context, id string, to types.PaymentStatus, adminComment, validatedBy string, at time.Time) (bool, error)
	ListManualPayments(ctx context.Context, status types.PaymentStatus) ([]*models.ManualPayment, error)

	CreateCheckIn(ctx context.Context, c *models.CheckIn) error
	ListCheckIns(ctx context.Context, limit int) ([]*models.CheckIn, error)

	SavePaymentNotificationLog(ctx context.Context, l *models.PaymentNotificationLog) error
	SaveNotificationLog(ctx context.Context, l *models.NotificationLog) error

	Stats(ctx context.Context) (*Stats, error)
	// Wipe deletes every participant and everything attached to them.
	Wipe(ctx context.Context) error
}
