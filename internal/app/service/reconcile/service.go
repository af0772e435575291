package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/events"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/metrics"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

var (
	ErrInvalidCallback   = fmt.Errorf("%w: cpm_trans_id and cpm_site_id are required", types.ErrInvalidInput)
	ErrSiteIDMismatch    = fmt.Errorf("%w: site id mismatch", types.ErrInvalidInput)
	ErrPaymentNotFound   = fmt.Errorf("%w: payment", types.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: payment status cannot change", types.ErrConflict)
	ErrInvalidStatus     = fmt.Errorf("%w: status must be completed, failed or rejected", types.ErrInvalidInput)
)

// Completion sources carried by the payment.completed event.
const (
	SourceGateway = "gateway"
	SourceManual  = "manual"
	SourceAdmin   = "admin"
)

type Notifier interface {
	PaymentConfirmed(ctx context.Context, p *models.Participant)
}

type EventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, evt events.PaymentCompleted) error
}

// CallbackLog records every gateway callback and its outcome.
type CallbackLog interface {
	Received(ctx context.Context, transactionID string, data []byte) *models.PaymentNotificationLog
	Finish(ctx context.Context, entry *models.PaymentNotificationLog, status models.PaymentNotificationLogStatus, paymentID string, result any)
}

// Result is what the webhook reports back.
type Result struct {
	PaymentID     string              `json:"payment_id"`
	TransactionID string              `json:"transaction_id"`
	Status        types.PaymentStatus `json:"new_status"`
	// Changed is false for re-deliveries and callbacks ignored on a terminal payment.
	Changed bool      `json:"changed"`
	Match   MatchKind `json:"match,omitempty"`
}

// Completion describes a confirmed payment, gateway or manual.
type Completion struct {
	ParticipantID string
	PaymentID     string
	Source        string
	Amount        int64
	Currency      string
}

type Service struct {
	repo      repository.Repository
	notifier  Notifier
	publisher EventPublisher
	callbacks CallbackLog
	metrics   *metrics.Business
	siteID    string
	qrPrefix  string
	log       *zap.SugaredLogger
	now       func() time.Time
}

type Params struct {
	fx.In

	Repo      repository.Repository
	Notifier  Notifier
	Publisher EventPublisher
	Callbacks CallbackLog
	Metrics   *metrics.Business `optional:"true"`
	Config    *cfgpkg.Config
	Log       *zap.SugaredLogger
}

func New(p Params) *Service {
	if p.Config.Gateway.SiteID == "" {
		p.Log.Warnw("gateway site id is not configured, every callback will be rejected")
	}
	return &Service{
		repo:      p.Repo,
		notifier:  p.Notifier,
		publisher: p.Publisher,
		callbacks: p.Callbacks,
		metrics:   p.Metrics,
		siteID:    p.Config.Gateway.SiteID,
		qrPrefix:  p.Config.Event.QRCodePrefix,
		log:       p.Log,
		now:       time.Now,
	}
}

// Reconcile applies a gateway callback to the matching payment. Callbacks that fail the field or
// site checks are only logged through zap; everything else is persisted with its outcome.
func (s *Service) Reconcile(ctx context.Context, cb Callback) (*Result, error) {
	cb.normalize()
	if err := s.check(ctx, cb); err != nil {
		return nil, err
	}

	var entry *models.PaymentNotificationLog
	if s.callbacks != nil {
		entry = s.callbacks.Received(ctx, cb.TransactionID, cb.Raw)
	}

	res, err := s.reconcile(ctx, cb)

	if s.callbacks != nil {
		if err != nil {
			s.callbacks.Finish(ctx, entry, models.PaymentNotificationLogStatusHandleFailed, "", map[string]string{"error": err.Error()})
		} else {
			s.callbacks.Finish(ctx, entry, models.PaymentNotificationLogStatusHandled, res.PaymentID, res)
		}
	}
	return res, err
}

// check rejects callbacks without the required fields or from another site. Nothing is stored.
func (s *Service) check(ctx context.Context, cb Callback) error {
	if cb.TransactionID == "" || cb.SiteID == "" {
		s.metrics.Reconcile("invalid")
		return ErrInvalidCallback
	}
	if s.siteID == "" || cb.SiteID != s.siteID {
		logctx.FromCtx(ctx, s.log).Warnw("reconcile_site_mismatch", "transaction_id", cb.TransactionID, "site_id", cb.SiteID)
		s.metrics.Reconcile("site_mismatch")
		return ErrSiteIDMismatch
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, cb Callback) (*Result, error) {
	lg := logctx.FromCtx(ctx, s.log).With("transaction_id", cb.TransactionID)

	ref, kind, err := s.lookup(ctx, cb.TransactionID)
	if err != nil {
		s.metrics.Reconcile("error")
		return nil, err
	}
	if ref == nil {
		s.metrics.Reconcile("not_found")
		return nil, fmt.Errorf("%w for transaction id %s", ErrPaymentNotFound, cb.TransactionID)
	}
	lg = lg.With("payment_id", ref.ID, "match", kind)

	pay, err := s.repo.GetPayment(ctx, ref.ID)
	if err != nil {
		s.metrics.Reconcile("error")
		return nil, fmt.Errorf("get payment: %w", err)
	}
	target := MapGatewayStatus(cb.Status)
	res := &Result{PaymentID: pay.ID, TransactionID: pay.TransactionID, Status: pay.Status, Match: kind}

	switch {
	case pay.Status == target:
		lg.Infow("reconcile_duplicate", "status", target)
		s.metrics.Reconcile("duplicate")
		if target == types.PaymentStatusCompleted {
			// Re-delivery of a success never re-notifies but still guarantees the credential.
			s.ensureQRCode(ctx, pay.ParticipantID)
		}
		return res, nil
	case !pay.Status.CanTransition(target):
		lg.Warnw("reconcile_ignored", "current", pay.Status, "received", target)
		s.metrics.Reconcile("ignored")
		return res, nil
	}

	var operator *string
	if cb.OperatorID != "" {
		operator = &cb.OperatorID
	}
	moved, err := s.repo.TransitionPayment(ctx, pay.ID, pay.Status, target, operator, s.now())
	if err != nil {
		s.metrics.Reconcile("error")
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	if !moved {
		// Lost a race with a concurrent delivery; report whatever is stored now.
		current, err := s.repo.GetPayment(ctx, pay.ID)
		if err != nil {
			s.metrics.Reconcile("error")
			return nil, fmt.Errorf("get payment: %w", err)
		}
		res.Status = current.Status
		s.metrics.Reconcile("duplicate")
		return res, nil
	}
	res.Status = target
	res.Changed = true
	lg.Infow("reconcile_transitioned", "from", pay.Status, "to", target, "operator_id", cb.OperatorID)
	s.metrics.Reconcile(string(target))

	if target == types.PaymentStatusCompleted {
		s.Fulfill(ctx, Completion{
			ParticipantID: pay.ParticipantID,
			PaymentID:     pay.ID,
			Source:        SourceGateway,
			Amount:        pay.Amount,
			Currency:      pay.Currency,
		})
	}
	return res, nil
}

// lookup runs the exact lookups in the database first and falls back to scanning every reference.
func (s *Service) lookup(ctx context.Context, id string) (*models.PaymentRef, MatchKind, error) {
	exact, err := s.repo.PaymentRefsByExactID(ctx, id)
	if err != nil {
		return nil, MatchNone, fmt.Errorf("lookup payment: %w", err)
	}
	if ref, kind := Match(exact, id); ref != nil {
		return ref, kind, nil
	}
	all, err := s.repo.PaymentRefs(ctx)
	if err != nil {
		return nil, MatchNone, fmt.Errorf("lookup payment: %w", err)
	}
	ref, kind := Match(all, id)
	if ref == nil {
		logctx.FromCtx(ctx, s.log).Warnw("reconcile_not_found", "transaction_id", id, "known_ids", len(all))
	}
	return ref, kind, nil
}

// SetStatus is the admin override of a gateway payment. Only pending payments move.
func (s *Service) SetStatus(ctx context.Context, paymentID string, status types.PaymentStatus) (*Result, error) {
	if !status.Terminal() {
		return nil, ErrInvalidStatus
	}
	pay, err := s.repo.GetPayment(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	res := &Result{PaymentID: pay.ID, TransactionID: pay.TransactionID, Status: pay.Status}
	if pay.Status == status {
		return res, nil
	}
	if !pay.Status.CanTransition(status) {
		return nil, ErrInvalidTransition
	}
	moved, err := s.repo.TransitionPayment(ctx, pay.ID, pay.Status, status, nil, s.now())
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	if !moved {
		return nil, ErrInvalidTransition
	}
	res.Status = status
	res.Changed = true
	logctx.FromCtx(ctx, s.log).Infow("payment_status_overridden", "payment_id", pay.ID, "from", pay.Status, "to", status)

	if status == types.PaymentStatusCompleted {
		s.Fulfill(ctx, Completion{
			ParticipantID: pay.ParticipantID,
			PaymentID:     pay.ID,
			Source:        SourceAdmin,
			Amount:        pay.Amount,
			Currency:      pay.Currency,
		})
	}
	return res, nil
}

// Fulfill runs the side effects of a confirmed payment: QR code when absent, confirmation
// notifications and the payment.completed event. Failures are logged and swallowed.
func (s *Service) Fulfill(ctx context.Context, c Completion) {
	lg := logctx.FromCtx(ctx, s.log).With("participant_id", c.ParticipantID, "payment_id", c.PaymentID)

	p := s.ensureQRCode(ctx, c.ParticipantID)
	if p == nil {
		return
	}
	if s.notifier != nil {
		s.notifier.PaymentConfirmed(ctx, p)
	}
	if s.publisher != nil {
		evt := events.PaymentCompleted{
			ParticipantID: c.ParticipantID,
			PaymentID:     c.PaymentID,
			Source:        c.Source,
			Amount:        c.Amount,
			Currency:      c.Currency,
			CompletedAt:   s.now(),
		}
		if p.QRCode != nil {
			evt.QRCode = *p.QRCode
		}
		if err := s.publisher.PublishPaymentCompleted(ctx, evt); err != nil {
			lg.Errorw("publish_payment_completed_failed", "err", err)
		}
	}
}

// ensureQRCode assigns a QR code unless one is stored and returns the fresh participant.
func (s *Service) ensureQRCode(ctx context.Context, participantID string) *models.Participant {
	lg := logctx.FromCtx(ctx, s.log).With("participant_id", participantID)
	assigned, err := s.repo.AssignQRCode(ctx, participantID, tool.GenerateQRCode(s.qrPrefix, participantID, s.now()))
	if err != nil {
		lg.Errorw("assign_qr_code_failed", "err", err)
	}
	if assigned {
		lg.Infow("qr_code_assigned")
	}
	p, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		lg.Errorw("load_participant_failed", "err", err)
		return nil
	}
	return p
}
