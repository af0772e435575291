package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/gateway"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

// WebhookPath is where the gateway posts its callbacks, relative to the public URL.
const WebhookPath = "/api/v1/payments/webhook"

var (
	ErrAlreadyPaid   = fmt.Errorf("%w: participant already has a completed payment", types.ErrConflict)
	ErrInvalidMethod = fmt.Errorf("%w: unknown payment method", types.ErrInvalidInput)
)

type InitiateRequest struct {
	ParticipantID string              `json:"participant_id"`
	Method        types.PaymentMethod `json:"method"`
}

type InitiateResponse struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// StatusResponse is polled by the payment page until Paid turns true.
type StatusResponse struct {
	ParticipantID string                `json:"participant_id"`
	Paid          bool                  `json:"paid"`
	ShortCode     string                `json:"short_code"`
	QRCode        *string               `json:"qr_code"`
	Payment       *models.Payment       `json:"payment"`
	ManualPayment *models.ManualPayment `json:"manual_payment"`
}

type Service struct {
	repo         repository.Repository
	participants *participant.Service
	gw           gateway.Client
	eventName    string
	currency     string
	publicURL    string
	log          *zap.SugaredLogger
	now          func() time.Time
}

type Params struct {
	fx.In

	Repo         repository.Repository
	Participants *participant.Service
	Gateway      gateway.Client
	Config       *cfgpkg.Config
	Log          *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{
		repo:         p.Repo,
		participants: p.Participants,
		gw:           p.Gateway,
		eventName:    p.Config.Event.Name,
		currency:     p.Config.Event.Currency,
		publicURL:    strings.TrimRight(p.Config.Server.PublicURL, "/"),
		log:          p.Log,
		now:          time.Now,
	}
}

// Initiate opens a gateway checkout for the participant's ticket. The local transaction id is the
// one handed to the gateway so callbacks match exactly.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if req.Method == "" {
		req.Method = types.PaymentMethodCard
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

	pay := &models.Payment{
		ID:            tool.GenerateUUIDV7(),
		ParticipantID: p.ID,
		Amount:        s.participants.TicketAmount(p),
		Currency:      s.currency,
		Method:        req.Method,
		Status:        types.PaymentStatusPending,
		TransactionID: tool.GenerateTransactionID(),
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreatePayment(ctx, pay); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	out, err := s.gw.InitPayment(ctx, gateway.InitRequest{
		TransactionID:   pay.TransactionID,
		Amount:          pay.Amount,
		Currency:        pay.Currency,
		Description:     fmt.Sprintf("%s - %s", s.eventName, p.FullName()),
		NotifyURL:       s.publicURL + WebhookPath,
		ReturnURL:       s.publicURL + "/payment/return?participant_id=" + url.QueryEscape(p.ID),
		CustomerName:    p.FirstName,
		CustomerSurname: p.LastName,
		CustomerEmail:   p.Email,
		CustomerPhone:   p.Phone,
	})
	if err != nil {
		lg.Errorw("gateway_init_failed", "transaction_id", pay.TransactionID, "err", err)
		if _, terr := s.repo.TransitionPayment(ctx, pay.ID, types.PaymentStatusPending, types.PaymentStatusFailed, nil, s.now()); terr != nil {
			lg.Errorw("mark_payment_failed", "payment_id", pay.ID, "err", terr)
		}
		return nil, fmt.Errorf("%w: payment gateway: %v", types.ErrUpstream, err)
	}
	if err := s.repo.SetPaymentGatewayRef(ctx, pay.ID, out.APIResponseID, out.PaymentURL); err != nil {
		return nil, fmt.Errorf("store gateway reference: %w", err)
	}
	lg.Infow("payment_initiated", "payment_id", pay.ID, "transaction_id", pay.TransactionID, "amount", pay.Amount)

	return &InitiateResponse{
		PaymentID:     pay.ID,
		TransactionID: pay.TransactionID,
		PaymentURL:    out.PaymentURL,
		Amount:        pay.Amount,
		Currency:      pay.Currency,
	}, nil
}

// Status reports the latest gateway and manual payment of a participant.
func (s *Service) Status(ctx context.Context, participantID string) (*StatusResponse, error) {
	p, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	res := &StatusResponse{
		ParticipantID: p.ID,
		Paid:          participant.HasCompletedPayment(p),
		ShortCode:     p.ShortCode,
		QRCode:        p.QRCode,
	}
	if len(p.Payments) > 0 {
		res.Payment = p.Payments[0]
	}
	if len(p.ManualPayments) > 0 {
		res.ManualPayment = p.ManualPayments[0]
	}
	return res, nil
}
