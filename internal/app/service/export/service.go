package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/sheets"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/types"
)

var Header = []string{
	"id", "short_code", "first_name", "last_name", "email", "phone", "is_member", "companions",
	"payment_status", "paid_via", "amount", "qr_code", "checked_in", "checked_in_at", "registered_at",
}

type SheetWriter interface {
	ReplaceRows(ctx context.Context, header []string, rows [][]string) (int, error)
}

type Service struct {
	repo   repository.Repository
	sheets SheetWriter
	log    *zap.SugaredLogger
}

type Params struct {
	fx.In

	Repo   repository.Repository
	Sheets SheetWriter `optional:"true"`
	Log    *zap.SugaredLogger
}

func New(p Params) *Service { return &Service{repo: p.Repo, sheets: p.Sheets, log: p.Log} }

// paymentSummary picks the completed payment if any, otherwise the most recent attempt.
func paymentSummary(p *models.Participant) (status, via string, amount int64) {
	for _, pay := range p.Payments {
		if pay.Status == types.PaymentStatusCompleted {
			return string(pay.Status), "gateway", pay.Amount
		}
	}
	for _, mp := range p.ManualPayments {
		if mp.Status == types.PaymentStatusCompleted {
			return string(mp.Status), "manual", mp.Amount
		}
	}
	var latest *time.Time
	status = "none"
	for _, pay := range p.Payments {
		if latest == nil || pay.CreatedAt.After(*latest) {
			latest, status, via, amount = &pay.CreatedAt, string(pay.Status), "gateway", pay.Amount
		}
	}
	for _, mp := range p.ManualPayments {
		if latest == nil || mp.CreatedAt.After(*latest) {
			latest, status, via, amount = &mp.CreatedAt, string(mp.Status), "manual", mp.Amount
		}
	}
	return status, via, amount
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func Row(p *models.Participant) []string {
	status, via, amount := paymentSummary(p)
	qr := ""
	if p.QRCode != nil {
		qr = *p.QRCode
	}
	return []string{
		p.ID, p.ShortCode, p.FirstName, p.LastName, p.Email, p.Phone,
		strconv.FormatBool(p.IsMember), strconv.Itoa(p.Companions()),
		status, via, strconv.FormatInt(amount, 10), qr,
		strconv.FormatBool(p.CheckedIn), formatTime(p.CheckedInAt), formatTime(&p.CreatedAt),
	}
}

func (s *Service) Rows(ctx context.Context) ([][]string, error) {
	all, err := s.repo.AllParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	rows := make([][]string, 0, len(all))
	for _, p := range all {
		rows = append(rows, Row(p))
	}
	return rows, nil
}

// WriteCSV writes the header and one line per participant and returns the participant count.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return 0, err
	}
	return EncodeCSV(w, rows)
}

// EncodeCSV writes Header followed by rows.
func EncodeCSV(w io.Writer, rows [][]string) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, err
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// PushSheets replaces the configured sheet with the current participant list.
func (s *Service) PushSheets(ctx context.Context) (int, error) {
	if s.sheets == nil {
		return 0, fmt.Errorf("%w: %v", types.ErrInvalidInput, sheets.ErrNotConfigured)
	}
	rows, err := s.Rows(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.sheets.ReplaceRows(ctx, Header, rows)
	if errors.Is(err, sheets.ErrNotConfigured) {
		return 0, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("sheets_exported", "rows", n)
	return len(rows), nil
}
