package manualpayment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/notification"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/storage"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/metrics"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

// MaxProofSize is the largest accepted proof file.
const MaxProofSize = 5 << 20

// AllowedProofTypes are the MIME types accepted as proof, sniffed from content.
var AllowedProofTypes = []string{"image/png", "image/jpeg", "application/pdf"}

var (
	ErrPhoneRequired         = fmt.Errorf("%w: phone number is required", types.ErrInvalidInput)
	ErrFileRequired          = fmt.Errorf("%w: proof file is required", types.ErrInvalidInput)
	ErrFileTooLarge          = fmt.Errorf("%w: proof file exceeds 5 MB", types.ErrInvalidInput)
	ErrFileType              = fmt.Errorf("%w: proof must be a PNG, JPEG or PDF file", types.ErrInvalidInput)
	ErrInvalidMethod         = fmt.Errorf("%w: unknown payment method", types.ErrInvalidInput)
	ErrInvalidDecision       = fmt.Errorf("%w: status must be completed or rejected", types.ErrInvalidInput)
	ErrManualPaymentNotFound = fmt.Errorf("%w: manual payment", types.ErrNotFound)
	ErrAlreadyValidated      = fmt.Errorf("%w: manual payment was already validated", types.ErrConflict)
	ErrAlreadyPaid           = fmt.Errorf("%w: participant already has a completed payment", types.ErrConflict)
)

type Notifier interface {
	ManualPaymentSubmitted(ctx context.Context, p *models.Participant, mp *models.ManualPayment)
	ManualPaymentRejected(ctx context.Context, p *models.Participant, adminComment string)
}

// Alerter pushes a short text to the organizers' chat.
type Alerter interface {
	SendText(text string) error
}

type Fulfiller interface {
	Fulfill(ctx context.Context, c reconcile.Completion)
}

type File struct {
	Name string
	Size int64
	Body io.Reader
}

type SubmitRequest struct {
	ParticipantID string
	Method        types.PaymentMethod
	PhoneNumber   string
	Comment       string
	File          *File
}

type ValidateRequest struct {
	Status       types.PaymentStatus `json:"status"`
	AdminComment string              `json:"admin_comment"`
}

type Service struct {
	repo         repository.Repository
	participants *participant.Service
	store        storage.Store
	notifier     Notifier
	alerter      Alerter
	fulfiller    Fulfiller
	metrics      *metrics.Business
	log          *zap.SugaredLogger
	now          func() time.Time
}

type Params struct {
	fx.In

	Repo         repository.Repository
	Participants *participant.Service
	Store        storage.Store
	Notifier     Notifier
	Alerter      Alerter
	Fulfiller    Fulfiller
	Metrics      *metrics.Business `optional:"true"`
	Log          *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{
		repo:         p.Repo,
		participants: p.Participants,
		store:        p.Store,
		notifier:     p.Notifier,
		alerter:      p.Alerter,
		fulfiller:    p.Fulfiller,
		metrics:      p.Metrics,
		log:          p.Log,
		now:          time.Now,
	}
}

// readProof enforces the size limit on what is actually read and sniffs the type from content.
func readProof(f *File) ([]byte, *mimetype.MIME, error) {
	if f == nil || f.Body == nil {
		return nil, nil, ErrFileRequired
	}
	if f.Size > MaxProofSize {
		return nil, nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, MaxProofSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read proof: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, ErrFileRequired
	}
	if len(data) > MaxProofSize {
		return nil, nil, ErrFileTooLarge
	}
	mt := mimetype.Detect(data)
	for _, allowed := range AllowedProofTypes {
		if mt.Is(allowed) {
			return data, mt, nil
		}
	}
	return nil, nil, ErrFileType
}

// Submit stores the proof and records a pending manual payment. Upload failures block the
// submission; admin alerts are best effort.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.ManualPayment, error) {
	req.PhoneNumber = participant.NormalizePhone(req.PhoneNumber)
	if req.PhoneNumber == "" {
		return nil, ErrPhoneRequired
	}
	data, mt, err := readProof(req.File)
	if err != nil {
		s.metrics.ManualPayment("invalid")
		return nil, err
	}
	if req.Method == "" {
		req.Method = types.PaymentMethodMobileMoney
	}
	if !req.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	p, err := s.participants.Get(ctx, req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.HasCompletedPayment(p) {
		return nil, ErrAlreadyPaid
	}
	lg := logctx.FromCtx(ctx, s.log).With("participant_id", p.ID)

	id := tool.GenerateUUIDV7()
	key := storage.ManualPaymentKey(p.ID, id, mt.Extension())
	proofURL, err := s.store.Upload(ctx, key, mt.String(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		lg.Errorw("proof_upload_failed", "key", key, "err", err)
		s.metrics.ManualPayment("upload_failed")
		return nil, fmt.Errorf("%w: proof upload: %v", types.ErrUpstream, err)
	}

	mp := &models.ManualPayment{
		ID:            id,
		ParticipantID: p.ID,
		Amount:        s.participants.TicketAmount(p),
		Method:        req.Method,
		PhoneNumber:   req.PhoneNumber,
		ProofURL:      proofURL,
		ProofKey:      key,
		Comment:       strings.TrimSpace(req.Comment),
		Status:        types.PaymentStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateManualPayment(ctx, mp); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			lg.Warnw("orphan_proof", "key", key, "err", derr)
		}
		return nil, fmt.Errorf("create manual payment: %w", err)
	}
	lg.Infow("manual_payment_submitted", "manual_payment_id", mp.ID, "mime", mt.String(), "size", len(data))
	s.metrics.ManualPayment("submitted")

	if s.alerter != nil {
		if err := s.alerter.SendText(notification.AdminSummary(p, mp)); err != nil {
			lg.Warnw("admin_alert_failed", "err", err)
		}
	}
	if s.notifier != nil {
		s.notifier.ManualPaymentSubmitted(ctx, p, mp)
	}
	return mp, nil
}

// Validate is the admin decision on a pending manual payment.
func (s *Service) Validate(ctx context.Context, id string, req ValidateRequest, admin string) (*models.ManualPayment, error) {
	if req.Status != types.PaymentStatusCompleted && req.Status != types.PaymentStatusRejected {
		return nil, ErrInvalidDecision
	}
	mp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mp.Status == req.Status {
		return mp, nil
	}
	if !mp.Status.CanTransition(req.Status) {
		return nil, ErrAlreadyValidated
	}
	comment := strings.TrimSpace(req.AdminComment)
	moved, err := s.repo.TransitionManualPayment(ctx, mp.ID, req.Status, comment, admin, s.now())
	if err != nil {
		return nil, fmt.Errorf("update manual payment: %w", err)
	}
	if !moved {
		return nil, ErrAlreadyValidated
	}
	lg := logctx.FromCtx(ctx, s.log).With("manual_payment_id", mp.ID, "participant_id", mp.ParticipantID)
	lg.Infow("manual_payment_validated", "status", req.Status, "by", admin)
	s.metrics.ManualPayment(string(req.Status))

	switch req.Status {
	case types.PaymentStatusCompleted:
		if s.fulfiller != nil {
			s.fulfiller.Fulfill(ctx, reconcile.Completion{
				ParticipantID: mp.ParticipantID,
				PaymentID:     mp.ID,
				Source:        reconcile.SourceManual,
				Amount:        mp.Amount,
			})
		}
	case types.PaymentStatusRejected:
		if p, err := s.participants.Get(ctx, mp.ParticipantID); err != nil {
			lg.Errorw("load_participant_failed", "err", err)
		} else if s.notifier != nil {
			s.notifier.ManualPaymentRejected(ctx, p, comment)
		}
	}
	return s.get(ctx, mp.ID)
}

func (s *Service) get(ctx context.Context, id string) (*models.ManualPayment, error) {
	mp, err := s.repo.GetManualPayment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrManualPaymentNotFound
	}
	return mp, err
}

// List returns manual payments, newest first. An empty status lists all of them.
func (s *Service) List(ctx context.Context, status types.PaymentStatus) ([]*models.ManualPayment, error) {
	if status != "" && status != types.PaymentStatusPending && !status.Terminal() {
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrInvalidInput, status)
	}
	return s.repo.ListManualPayments(ctx, status)
}
