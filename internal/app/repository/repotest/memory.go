// Package repotest provides an in-memory repository.Repository for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/types"
)

// Memory keeps rows in maps and returns copies, so callers cannot mutate stored state behind its back.
type Memory struct {
	mu             sync.Mutex
	participants   map[string]*models.Participant
	guests         map[string]*models.Guest
	payments       map[string]*models.Payment
	manualPayments map[string]*models.ManualPayment
	checkIns       []*models.CheckIn

	PaymentNotificationLogs map[string]*models.PaymentNotificationLog
	NotificationLogs        []*models.NotificationLog

	// FailCreateParticipant, when set, is returned by the next CreateParticipant calls and consumed.
	FailCreateParticipant []error
}

var _ repository.Repository = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		participants:            map[string]*models.Participant{},
		guests:                  map[string]*models.Guest{},
		payments:                map[string]*models.Payment{},
		manualPayments:          map[string]*models.ManualPayment{},
		PaymentNotificationLogs: map[string]*models.PaymentNotificationLog{},
	}
}

func now() time.Time { return time.Now() }

// load returns a copy of the participant with its relations attached. Caller holds mu.
func (m *Memory) load(p *models.Participant) *models.Participant {
	cp := *p
	cp.Guests = nil
	cp.Payments = nil
	cp.ManualPayments = nil
	for _, g := range m.guests {
		if g.ParticipantID == p.ID {
			gc := *g
			cp.Guests = append(cp.Guests, &gc)
		}
	}
	sort.SliceStable(cp.Guests, func(i, j int) bool {
		if cp.Guests[i].IsMain != cp.Guests[j].IsMain {
			return cp.Guests[i].IsMain
		}
		return cp.Guests[i].CreatedAt.Before(cp.Guests[j].CreatedAt)
	})
	for _, pay := range m.payments {
		if pay.ParticipantID == p.ID {
			pc := *pay
			cp.Payments = append(cp.Payments, &pc)
		}
	}
	sort.SliceStable(cp.Payments, func(i, j int) bool { return cp.Payments[i].CreatedAt.After(cp.Payments[j].CreatedAt) })
	for _, mp := range m.manualPayments {
		if mp.ParticipantID == p.ID {
			mc := *mp
			cp.ManualPayments = append(cp.ManualPayments, &mc)
		}
	}
	sort.SliceStable(cp.ManualPayments, func(i, j int) bool {
		return cp.ManualPayments[i].CreatedAt.After(cp.ManualPayments[j].CreatedAt)
	})
	return &cp
}

func (m *Memory) CreateParticipant(_ context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FailCreateParticipant) > 0 {
		err := m.FailCreateParticipant[0]
		m.FailCreateParticipant = m.FailCreateParticipant[1:]
		return err
	}
	for _, existing := range m.participants {
		if existing.ShortCode == p.ShortCode {
			return repository.ErrDuplicate
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.UpdatedAt = p.CreatedAt
	cp := *p
	cp.Guests, cp.Payments, cp.ManualPayments = nil, nil, nil
	m.participants[p.ID] = &cp
	for _, g := range p.Guests {
		g.ParticipantID = p.ID
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now()
		}
		gc := *g
		m.guests[g.ID] = &gc
	}
	return nil
}

// PutParticipant stores a participant as-is, bypassing the unique checks.
func (m *Memory) PutParticipant(p *models.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Guests, cp.Payments, cp.ManualPayments = nil, nil, nil
	m.participants[p.ID] = &cp
}

func (m *Memory) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.load(p), nil
}

func (m *Memory) GetParticipantByShortCode(_ context.Context, code string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.ShortCode == code {
			return m.load(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) GetParticipantByQRCode(_ context.Context, qr string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.QRCode != nil && *p.QRCode == qr {
			return m.load(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) ShortCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.ShortCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) SetMembership(_ context.Context, id string, isMember bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsMember = isMember
	return nil
}

func (m *Memory) AssignQRCode(_ context.Context, participantID, qr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok || p.HasQRCode() {
		return false, nil
	}
	p.QRCode = lo.ToPtr(qr)
	return true, nil
}

func (m *Memory) MarkCheckedIn(_ context.Context, participantID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok || p.CheckedIn {
		return false, nil
	}
	p.CheckedIn = true
	p.CheckedInAt = lo.ToPtr(at)
	return true, nil
}

func participantField(p *models.Participant, field string) any {
	switch field {
	case "first_name":
		return p.FirstName
	case "last_name":
		return p.LastName
	case "email":
		return p.Email
	case "phone":
		return p.Phone
	case "is_member":
		return p.IsMember
	case "short_code":
		return p.ShortCode
	case "checked_in":
		return p.CheckedIn
	}
	return nil
}

func (m *Memory) ListParticipants(_ context.Context, req repository.ListParticipantsRequest) ([]*models.Participant, int64, error) {
	if err := types.ValidateFilters(req.Filters, repository.ParticipantFilterFields); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Participant
	for _, p := range m.participants {
		ok := lo.EveryBy(req.Filters, func(f *types.CommonFilter) bool {
			return f == nil || f.Match(participantField(p, f.Field))
		})
		if ok {
			out = append(out, m.load(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch req.SortBy {
		case "last_name":
			less = strings.Compare(out[i].LastName, out[j].LastName) < 0
		case "first_name":
			less = strings.Compare(out[i].FirstName, out[j].FirstName) < 0
		case "email":
			less = strings.Compare(out[i].Email, out[j].Email) < 0
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if req.Desc {
			return !less
		}
		return less
	})
	total := int64(len(out))
	if req.Offset > 0 {
		out = lo.Drop(out, req.Offset)
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, total, nil
}

func (m *Memory) AllParticipants(ctx context.Context) ([]*models.Participant, error) {
	out, _, err := m.ListParticipants(ctx, repository.ListParticipantsRequest{})
	return out, err
}

func (m *Memory) CreateGuest(_ context.Context, g *models.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[g.ParticipantID]; !ok {
		return repository.ErrNotFound
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now()
	}
	gc := *g
	m.guests[g.ID] = &gc
	return nil
}

func (m *Memory) GetGuest(_ context.Context, id string) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	gc := *g
	return &gc, nil
}

func (m *Memory) MarkGuestCheckedIn(_ context.Context, guestID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[guestID]
	if !ok || g.CheckedIn {
		return false, nil
	}
	g.CheckedIn = true
	g.CheckedInAt = lo.ToPtr(at)
	return true, nil
}

func (m *Memory) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.TransactionID == p.TransactionID {
			return repository.ErrDuplicate
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	pc := *p
	m.payments[p.ID] = &pc
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	pc := *p
	return &pc, nil
}

func (m *Memory) SetPaymentGatewayRef(_ context.Context, id, apiResponseID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PaymentURL = paymentURL
	if apiResponseID != "" {
		p.APIResponseID = lo.ToPtr(apiResponseID)
	}
	return nil
}

func (m *Memory) TransitionPayment(_ context.Context, id string, from, to types.PaymentStatus, operatorID *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if operatorID != nil {
		p.OperatorID = lo.ToPtr(*operatorID)
	}
	if to == types.PaymentStatusCompleted {
		p.CompletedAt = lo.ToPtr(at)
	}
	return true, nil
}

func (m *Memory) refs(keep func(p *models.Payment) bool) []models.PaymentRef {
	var out []models.PaymentRef
	for _, p := range m.payments {
		if keep(p) {
			out = append(out, models.PaymentRef{ID: p.ID, TransactionID: p.TransactionID, APIResponseID: p.APIResponseID, CreatedAt: p.CreatedAt})
		}
	}
	return out
}

func (m *Memory) PaymentRefsByExactID(_ context.Context, id string) ([]models.PaymentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs(func(p *models.Payment) bool {
		return p.TransactionID == id || (p.APIResponseID != nil && *p.APIResponseID == id)
	}), nil
}

func (m *Memory) PaymentRefs(_ context.Context) ([]models.PaymentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs(func(*models.Payment) bool { return true }), nil
}

func (m *Memory) CreateManualPayment(_ context.Context, mp *models.ManualPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[mp.ParticipantID]; !ok {
		return repository.ErrNotFound
	}
	if mp.CreatedAt.IsZero() {
		mp.CreatedAt = now()
	}
	mc := *mp
	m.manualPayments[mp.ID] = &mc
	return nil
}

func (m *Memory) GetManualPayment(_ context.Context, id string) (*models.ManualPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.manualPayments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	mc := *mp
	return &mc, nil
}

func (m *Memory) TransitionManualPayment(_ context.Context, id string, to types.PaymentStatus, adminComment, validatedBy string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.manualPayments[id]
	if !ok || mp.Status != types.PaymentStatusPending {
		return false, nil
	}
	mp.Status = to
	mp.AdminComment = adminComment
	mp.ValidatedBy = lo.ToPtr(validatedBy)
	mp.ValidatedAt = lo.ToPtr(at)
	return true, nil
}

func (m *Memory) ListManualPayments(_ context.Context, status types.PaymentStatus) ([]*models.ManualPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ManualPayment
	for _, mp := range m.manualPayments {
		if status == "" || mp.Status == status {
			mc := *mp
			out = append(out, &mc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateCheckIn(_ context.Context, c *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := *c
	m.checkIns = append(m.checkIns, &cc)
	return nil
}

func (m *Memory) ListCheckIns(_ context.Context, limit int) ([]*models.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CheckIn, 0, len(m.checkIns))
	for i := len(m.checkIns) - 1; i >= 0; i-- {
		cc := *m.checkIns[i]
		out = append(out, &cc)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SavePaymentNotificationLog(_ context.Context, l *models.PaymentNotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc := *l
	m.PaymentNotificationLogs[l.ID] = &lc
	return nil
}

// PaymentNotificationLog returns a copy of a stored callback log.
func (m *Memory) PaymentNotificationLog(id string) (*models.PaymentNotificationLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.PaymentNotificationLogs[id]
	if !ok {
		return nil, false
	}
	lc := *l
	return &lc, true
}

func (m *Memory) SaveNotificationLog(_ context.Context, l *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc := *l
	m.NotificationLogs = append(m.NotificationLogs, &lc)
	return nil
}

// NotificationLogCount is safe to call while workers are writing.
func (m *Memory) NotificationLogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.NotificationLogs)
}

func (m *Memory) Stats(_ context.Context) (*repository.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &repository.Stats{PaymentsByStatus: map[string]int64{}, ManualPaymentsByStatus: map[string]int64{}}
	for _, p := range m.participants {
		s.Participants++
		if p.IsMember {
			s.Members++
		}
		if p.CheckedIn {
			s.CheckedIn++
		}
	}
	for _, g := range m.guests {
		if !g.IsMain {
			s.Guests++
		}
	}
	for _, p := range m.payments {
		s.PaymentsByStatus[string(p.Status)]++
		if p.Status == types.PaymentStatusCompleted {
			s.Revenue += p.Amount
		}
	}
	for _, mp := range m.manualPayments {
		s.ManualPaymentsByStatus[string(mp.Status)]++
		if mp.Status == types.PaymentStatusCompleted {
			s.Revenue += mp.Amount
		}
	}
	return s, nil
}

func (m *Memory) Wipe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = map[string]*models.Participant{}
	m.guests = map[string]*models.Guest{}
	m.payments = map[string]*models.Payment{}
	m.manualPayments = map[string]*models.ManualPayment{}
	m.checkIns = nil
	return nil
}
