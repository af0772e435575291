package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/metrics"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

const defaultListLimit = 100

var (
	ErrNotPaid               = fmt.Errorf("%w: participant has no completed payment", types.ErrConflict)
	ErrAlreadyCheckedIn      = fmt.Errorf("%w: participant already checked in", types.ErrConflict)
	ErrGuestAlreadyCheckedIn = fmt.Errorf("%w: guest already checked in", types.ErrConflict)
)

// Result is returned by every successful check-in.
type Result struct {
	Participant *models.Participant `json:"participant"`
	CheckIn     *models.CheckIn     `json:"check_in"`
}

type Service struct {
	repo         repository.Repository
	participants *participant.Service
	metrics      *metrics.Business
	log          *zap.SugaredLogger
	now          func() time.Time
}

type Params struct {
	fx.In

	Repo         repository.Repository
	Participants *participant.Service
	Metrics      *metrics.Business `optional:"true"`
	Log          *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{repo: p.Repo, participants: p.Participants, metrics: p.Metrics, log: p.Log, now: time.Now}
}

// ByQRCode is the door scan path.
func (s *Service) ByQRCode(ctx context.Context, qr, operator string) (*Result, error) {
	p, err := s.participants.LookupByQRCode(ctx, qr)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, p, types.CheckInMethodQRScan, operator)
}

// ByShortCode is the fallback when the QR code cannot be scanned.
func (s *Service) ByShortCode(ctx context.Context, code, operator string) (*Result, error) {
	p, err := s.participants.LookupByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, p, types.CheckInMethodSMSCode, operator)
}

func (s *Service) Self(ctx context.Context, participantID string) (*Result, error) {
	p, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, p, types.CheckInMethodSelf, "")
}

func (s *Service) checkIn(ctx context.Context, p *models.Participant, method types.CheckInMethod, operator string) (*Result, error) {
	if !participant.HasCompletedPayment(p) {
		return nil, ErrNotPaid
	}
	if p.CheckedIn {
		return nil, ErrAlreadyCheckedIn
	}
	at := s.now()
	moved, err := s.repo.MarkCheckedIn(ctx, p.ID, at)
	if err != nil {
		return nil, fmt.Errorf("mark checked in: %w", err)
	}
	if !moved {
		return nil, ErrAlreadyCheckedIn
	}
	lg := logctx.FromCtx(ctx, s.log).With("participant_id", p.ID, "method", method)
	for _, g := range p.Guests {
		if g.IsMain {
			if _, err := s.repo.MarkGuestCheckedIn(ctx, g.ID, at); err != nil {
				lg.Warnw("main_guest_checkin_failed", "guest_id", g.ID, "err", err)
			}
		}
	}
	rec := &models.CheckIn{
		ID:            tool.GenerateUUIDV7(),
		ParticipantID: p.ID,
		Method:        method,
		Operator:      operator,
		CheckedInAt:   at,
	}
	if err := s.repo.CreateCheckIn(ctx, rec); err != nil {
		lg.Errorw("checkin_log_failed", "err", err)
	}
	lg.Infow("participant_checked_in", "operator", operator)
	s.metrics.CheckIn(string(method))

	fresh, err := s.participants.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Participant: fresh, CheckIn: rec}, nil
}

// Guest checks in a single companion seat.
func (s *Service) Guest(ctx context.Context, guestID, operator string) (*Result, error) {
	g, err := s.repo.GetGuest(ctx, guestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, participant.ErrGuestNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.CheckedIn {
		return nil, ErrGuestAlreadyCheckedIn
	}
	p, err := s.participants.Get(ctx, g.ParticipantID)
	if err != nil {
		return nil, err
	}
	if !participant.HasCompletedPayment(p) {
		return nil, ErrNotPaid
	}
	at := s.now()
	moved, err := s.repo.MarkGuestCheckedIn(ctx, g.ID, at)
	if err != nil {
		return nil, fmt.Errorf("mark guest checked in: %w", err)
	}
	if !moved {
		return nil, ErrGuestAlreadyCheckedIn
	}
	rec := &models.CheckIn{
		ID:            tool.GenerateUUIDV7(),
		ParticipantID: p.ID,
		GuestID:       &g.ID,
		Method:        types.CheckInMethodGuest,
		Operator:      operator,
		CheckedInAt:   at,
	}
	lg := logctx.FromCtx(ctx, s.log).With("participant_id", p.ID, "guest_id", g.ID)
	if err := s.repo.CreateCheckIn(ctx, rec); err != nil {
		lg.Errorw("checkin_log_failed", "err", err)
	}
	lg.Infow("guest_checked_in", "operator", operator)
	s.metrics.CheckIn(string(types.CheckInMethodGuest))

	fresh, err := s.participants.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Participant: fresh, CheckIn: rec}, nil
}

// List returns the most recent check-ins first.
func (s *Service) List(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	return s.repo.ListCheckIns(ctx, limit)
}
