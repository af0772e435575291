package participant

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

// insertAttempts bounds how many short codes are tried against the unique index.
const insertAttempts = 3

var (
	ErrParticipantNotFound = fmt.Errorf("%w: participant", types.ErrNotFound)
	ErrGuestNotFound       = fmt.Errorf("%w: guest", types.ErrNotFound)
	ErrShortCodeExhausted  = errors.New("could not allocate a unique short code")
)

type Notifier interface {
	Registered(ctx context.Context, p *models.Participant)
}

type GuestInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type RegisterRequest struct {
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	IsMember  bool         `json:"is_member"`
	Guests    []GuestInput `json:"guests"`
}

type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListResponse struct {
	Items []*models.Participant `json:"items"`
	Total int64                 `json:"total"`
}

type Service struct {
	repo     repository.Repository
	notifier Notifier
	event    cfgpkg.EventConfig
	log      *zap.SugaredLogger
	now      func() time.Time
	digits   func(int) string
}

func New(repo repository.Repository, notifier Notifier, cfg *cfgpkg.Config, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, notifier: notifier, event: cfg.Event, log: log, now: time.Now, digits: randomDigits}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NormalizePhone strips spaces, dots and dashes. A leading + is kept.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (r *RegisterRequest) normalize() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = NormalizePhone(r.Phone)
	if r.FirstName == "" {
		return invalid("first_name is required")
	}
	if r.LastName == "" {
		return invalid("last_name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return invalid("email is invalid")
	}
	if len(strings.TrimPrefix(r.Phone, "+")) < 8 {
		return invalid("phone is invalid")
	}
	for i := range r.Guests {
		r.Guests[i].FirstName = strings.TrimSpace(r.Guests[i].FirstName)
		r.Guests[i].LastName = strings.TrimSpace(r.Guests[i].LastName)
		if r.Guests[i].FirstName == "" {
			return invalid("guests[%d].first_name is required", i)
		}
	}
	return nil
}

// Register creates the participant, its main guest row and companions. A unique violation on the
// short code triggers a fresh code, up to insertAttempts inserts.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Participant, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	lg := logctx.FromCtx(ctx, s.log)

	var p *models.Participant
	for attempt := 1; ; attempt++ {
		code, err := generateShortCode(ctx, req.LastName, s.repo.ShortCodeExists, s.digits)
		if err != nil {
			return nil, err
		}
		p = s.buildParticipant(req, code)
		err = s.repo.CreateParticipant(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("create participant: %w", err)
		}
		lg.Warnw("short_code_collision", "code", code, "attempt", attempt)
		if attempt >= insertAttempts {
			return nil, ErrShortCodeExhausted
		}
	}
	lg.Infow("participant_registered", "participant_id", p.ID, "short_code", p.ShortCode, "guests", len(req.Guests))

	if s.notifier != nil {
		s.notifier.Registered(ctx, p)
	}
	return s.Get(ctx, p.ID)
}

func (s *Service) buildParticipant(req RegisterRequest, code string) *models.Participant {
	now := s.now()
	p := &models.Participant{
		ID:        tool.GenerateUUIDV7(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		IsMember:  req.IsMember,
		ShortCode: code,
		CreatedAt: now,
	}
	p.Guests = append(p.Guests, &models.Guest{
		ID:            tool.GenerateUUIDV7(),
		ParticipantID: p.ID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		IsMain:        true,
		CreatedAt:     now,
	})
	for _, g := range req.Guests {
		p.Guests = append(p.Guests, &models.Guest{
			ID:            tool.GenerateUUIDV7(),
			ParticipantID: p.ID,
			FirstName:     g.FirstName,
			LastName:      g.LastName,
			CreatedAt:     now,
		})
	}
	return p
}

func (s *Service) wrapNotFound(p *models.Participant, err error) (*models.Participant, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Participant, error) {
	return s.wrapNotFound(s.repo.GetParticipant(ctx, id))
}

// LookupByShortCode is trimmed and case-insensitive and returns payments and guests along.
func (s *Service) LookupByShortCode(ctx context.Context, code string) (*models.Participant, error) {
	code = NormalizeShortCode(code)
	if code == "" {
		return nil, invalid("code is required")
	}
	return s.wrapNotFound(s.repo.GetParticipantByShortCode(ctx, code))
}

func (s *Service) LookupByQRCode(ctx context.Context, qr string) (*models.Participant, error) {
	qr = strings.TrimSpace(qr)
	if qr == "" {
		return nil, invalid("qr_code is required")
	}
	return s.wrapNotFound(s.repo.GetParticipantByQRCode(ctx, qr))
}

func (s *Service) AddGuest(ctx context.Context, participantID string, in GuestInput) (*models.Guest, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" {
		return nil, invalid("first_name is required")
	}
	if _, err := s.Get(ctx, participantID); err != nil {
		return nil, err
	}
	g := &models.Guest{
		ID:            tool.GenerateUUIDV7(),
		ParticipantID: participantID,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateGuest(ctx, g); err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

func (s *Service) SetMembership(ctx context.Context, id string, isMember bool) error {
	err := s.repo.SetMembership(ctx, id, isMember)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrParticipantNotFound
	}
	if err == nil {
		logctx.FromCtx(ctx, s.log).Infow("membership_updated", "participant_id", id, "is_member", isMember)
	}
	return err
}

func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req.Size <= 0 || req.Size > 200 {
		req.Size = 50
	}
	if err := types.ValidateFilters(req.Filters, repository.ParticipantFilterFields); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	items, total, err := s.repo.ListParticipants(ctx, repository.ListParticipantsRequest{
		Filters: req.Filters,
		SortBy:  req.SortBy,
		Desc:    strings.EqualFold(req.SortOrder, "desc"),
		Offset:  req.From,
		Limit:   req.Size,
	})
	if err != nil {
		return nil, err
	}
	return &ListResponse{Items: items, Total: total}, nil
}

// TicketAmount is what the participant owes for itself and its companions.
func (s *Service) TicketAmount(p *models.Participant) int64 {
	return s.event.TicketPrice(p.IsMember, p.Companions())
}

// HasCompletedPayment reports whether a gateway or manual payment was completed.
func HasCompletedPayment(p *models.Participant) bool {
	for _, pay := range p.Payments {
		if pay.Status == types.PaymentStatusCompleted {
			return true
		}
	}
	for _, mp := range p.ManualPayments {
		if mp.Status == types.PaymentStatusCompleted {
			return true
		}
	}
	return false
}

type Params struct {
	fx.In

	Repo     repository.Repository
	Notifier Notifier
	Config   *cfgpkg.Config
	Log      *zap.SugaredLogger
}

func NewFromParams(p Params) *Service { return New(p.Repo, p.Notifier, p.Config, p.Log) }

// Wipe deletes every participant with its guests, payments, manual payments and check-ins.
func (s *Service) Wipe(ctx context.Context) error {
	if err := s.repo.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe participants: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Warnw("participants_wiped")
	return nil
}
