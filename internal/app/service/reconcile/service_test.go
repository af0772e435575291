package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository/repotest"
	"github.com/fatflowers/iftar/internal/app/service/notification_log"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/events"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/types"
)

const testSiteID = "105890"

type stubNotifier struct{ confirmed []*models.Participant }

func (n *stubNotifier) PaymentConfirmed(_ context.Context, p *models.Participant) {
	n.confirmed = append(n.confirmed, p)
}

type stubPublisher struct {
	events []events.PaymentCompleted
	err    error
}

func (p *stubPublisher) PublishPaymentCompleted(_ context.Context, evt events.PaymentCompleted) error {
	p.events = append(p.events, evt)
	return p.err
}

type fixture struct {
	svc      *Service
	repo     *repotest.Memory
	notifier *stubNotifier
	pub      *stubPublisher
	logs     *notification_log.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	repo := repotest.New()
	f := &fixture{
		repo:     repo,
		notifier: &stubNotifier{},
		pub:      &stubPublisher{},
		logs:     notification_log.New(repo, log),
	}
	cfg := &cfgpkg.Config{
		Gateway: cfgpkg.GatewayConfig{SiteID: testSiteID},
		Event:   cfgpkg.EventConfig{QRCodePrefix: "IFTAR-"},
	}
	f.svc = New(Params{
		Repo:      repo,
		Notifier:  f.notifier,
		Publisher: f.pub,
		Callbacks: f.logs,
		Config:    cfg,
		Log:       log,
	})
	return f
}

// seed stores a participant with one pending payment.
func (f *fixture) seed(t *testing.T, participantID, txID string) *models.Payment {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repo.CreateParticipant(ctx, &models.Participant{
		ID: participantID, FirstName: "Awa", LastName: "Sigui", Email: "awa@example.com",
		Phone: "0701234567", ShortCode: "SIG-" + participantID,
	}))
	pay := &models.Payment{
		ID:            "pay-" + participantID,
		ParticipantID: participantID,
		Amount:        5000,
		Currency:      "XOF",
		Status:        types.PaymentStatusPending,
		TransactionID: txID,
	}
	require.NoError(t, f.repo.CreatePayment(ctx, pay))
	return pay
}

func (f *fixture) callbackLogs() []*models.PaymentNotificationLog {
	f.logs.Wait()
	return lo.Values(f.repo.PaymentNotificationLogs)
}

func accepted(txID string) Callback {
	return Callback{TransactionID: txID, SiteID: testSiteID, Status: "ACCEPTED", OperatorID: "OP-1", Raw: []byte(`{"cpm_trans_id":"` + txID + `"}`)}
}

func TestReconcile_AcceptedAssignsQRCode(t *testing.T) {
	f := newFixture(t)
	pay := f.seed(t, "p1", "IFT0001")

	res, err := f.svc.Reconcile(context.Background(), accepted("IFT0001"))
	require.NoError(t, err)
	assert.Equal(t, pay.ID, res.PaymentID)
	assert.Equal(t, types.PaymentStatusCompleted, res.Status)
	assert.True(t, res.Changed)
	assert.Equal(t, MatchTransactionID, res.Match)

	stored, err := f.repo.GetPayment(context.Background(), pay.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, "OP-1", lo.FromPtr(stored.OperatorID))
	require.NotNil(t, stored.CompletedAt)

	p, err := f.repo.GetParticipant(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, p.HasQRCode())
	assert.Contains(t, *p.QRCode, "IFTAR-p1-")

	require.Len(t, f.notifier.confirmed, 1)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, SourceGateway, f.pub.events[0].Source)
	assert.Equal(t, *p.QRCode, f.pub.events[0].QRCode)

	logs := f.callbackLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.PaymentNotificationLogStatusHandled, logs[0].Status)
	assert.Equal(t, pay.ID, lo.FromPtr(logs[0].PaymentID))
}

func TestReconcile_RedeliveryKeepsQRCode(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "IFT0001")
	ctx := context.Background()

	_, err := f.svc.Reconcile(ctx, accepted("IFT0001"))
	require.NoError(t, err)
	first, _ := f.repo.GetParticipant(ctx, "p1")

	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	res, err := f.svc.Reconcile(ctx, accepted("IFT0001"))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusCompleted, res.Status)
	assert.False(t, res.Changed)

	second, _ := f.repo.GetParticipant(ctx, "p1")
	assert.Equal(t, *first.QRCode, *second.QRCode)
	assert.Len(t, f.notifier.confirmed, 1)
	assert.Len(t, f.pub.events, 1)
	assert.Len(t, f.callbackLogs(), 2)
}

func TestReconcile_SiteMismatchDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	pay := f.seed(t, "p1", "IFT0001")

	cb := accepted("IFT0001")
	cb.SiteID = "999"
	_, err := f.svc.Reconcile(context.Background(), cb)
	require.ErrorIs(t, err, ErrSiteIDMismatch)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	stored, _ := f.repo.GetPayment(context.Background(), pay.ID)
	assert.Equal(t, types.PaymentStatusPending, stored.Status)
	p, _ := f.repo.GetParticipant(context.Background(), "p1")
	assert.False(t, p.HasQRCode())
	assert.Empty(t, f.notifier.confirmed)
	assert.Empty(t, f.callbackLogs())
}

func TestReconcile_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reconcile(context.Background(), Callback{SiteID: testSiteID, Status: "ACCEPTED"})
	require.ErrorIs(t, err, ErrInvalidCallback)

	_, err = f.svc.Reconcile(context.Background(), Callback{TransactionID: "IFT1", Status: "ACCEPTED"})
	require.ErrorIs(t, err, ErrInvalidCallback)
	assert.Empty(t, f.callbackLogs())
}

// racingRepo lets a concurrent delivery complete the payment just before our own update lands.
type racingRepo struct {
	*repotest.Memory
	racedTo types.PaymentStatus
}

func (r *racingRepo) TransitionPayment(ctx context.Context, id string, from, _ types.PaymentStatus, operatorID *string, at time.Time) (bool, error) {
	if _, err := r.Memory.TransitionPayment(ctx, id, from, r.racedTo, operatorID, at); err != nil {
		return false, err
	}
	return false, nil
}

func TestReconcile_LostRaceReportsStoredStatus(t *testing.T) {
	f := newFixture(t)
	pay := f.seed(t, "p1", "IFT0001")
	f.svc.repo = &racingRepo{Memory: f.repo, racedTo: types.PaymentStatusFailed}

	res, err := f.svc.Reconcile(context.Background(), accepted("IFT0001"))
	require.NoError(t, err)
	assert.Equal(t, pay.ID, res.PaymentID)
	assert.Equal(t, types.PaymentStatusFailed, res.Status)
	assert.False(t, res.Changed)

	p, err := f.repo.GetParticipant(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, p.HasQRCode())
	assert.Empty(t, f.notifier.confirmed)
	assert.Empty(t, f.pub.events)
}

func TestReconcile_NotFoundNamesOnlyTheAttemptedID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "IFT0001")
	f.seed(t, "p2", "IFT0002")

	_, err := f.svc.Reconcile(context.Background(), accepted("UNKNOWN-42"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentNotFound))
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Contains(t, err.Error(), "UNKNOWN-42")
	assert.NotContains(t, err.Error(), "IFT0001")
	assert.NotContains(t, err.Error(), "IFT0002")
}

func TestReconcile_RefusedLeavesParticipantAlone(t *testing.T) {
	f := newFixture(t)
	pay := f.seed(t, "p1", "IFT0001")

	cb := accepted("IFT0001")
	cb.Status = "REFUSED"
	res, err := f.svc.Reconcile(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusFailed, res.Status)

	stored, _ := f.repo.GetPayment(context.Background(), pay.ID)
	assert.Equal(t, types.PaymentStatusFailed, stored.Status)
	p, _ := f.repo.GetParticipant(context.Background(), "p1")
	assert.False(t, p.HasQRCode())
	assert.Empty(t, f.notifier.confirmed)
	assert.Empty(t, f.pub.events)
}

func TestReconcile_TerminalPaymentIsNotMoved(t *testing.T) {
	f := newFixture(t)
	pay := f.seed(t, "p1", "IFT0001")
	ctx := context.Background()

	_, err := f.svc.Reconcile(ctx, accepted("IFT0001"))
	require.NoError(t, err)

	cb := accepted("IFT0001")
	cb.Status = "REFUSED"
	res, err := f.svc.Reconcile(ctx, cb)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, types.PaymentStatusCompleted, res.Status)

	stored, _ := f.repo.GetPayment(ctx, pay.ID)
	assert.Equal(t, types.PaymentStatusCompleted, stored.Status)
}

func TestReconcile_PendingStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "IFT0001")

	cb := accepted("IFT0001")
	cb.Status = "WAITING_FOR_CUSTOMER"
	res, err := f.svc.Reconcile(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPending, res.Status)
	assert.False(t, res.Changed)
}

func TestReconcile_FallbackMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "p1", "IFT0001")
	pay2 := f.seed(t, "p2", "IFT0002")
	require.NoError(t, f.repo.SetPaymentGatewayRef(ctx, pay2.ID, "API-77", "https://pay.example/77"))

	res, err := f.svc.Reconcile(ctx, accepted("API-77"))
	require.NoError(t, err)
	assert.Equal(t, pay2.ID, res.PaymentID)
	assert.Equal(t, MatchAPIResponseID, res.Match)

	res, err = f.svc.Reconcile(ctx, accepted("IFT0001-retry"))
	require.NoError(t, err)
	assert.Equal(t, "pay-p1", res.PaymentID)
	assert.Equal(t, MatchFuzzy, res.Match)
}

func TestReconcile_PublishFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "IFT0001")
	f.pub.err = errors.New("broker down")

	res, err := f.svc.Reconcile(context.Background(), accepted("IFT0001"))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusCompleted, res.Status)
	assert.Len(t, f.notifier.confirmed, 1)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pay := f.seed(t, "p1", "IFT0001")

	_, err := f.svc.SetStatus(ctx, pay.ID, types.PaymentStatusPending)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.SetStatus(ctx, "missing", types.PaymentStatusCompleted)
	require.ErrorIs(t, err, types.ErrNotFound)

	res, err := f.svc.SetStatus(ctx, pay.ID, types.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, SourceAdmin, f.pub.events[0].Source)

	res, err = f.svc.SetStatus(ctx, pay.ID, types.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	_, err = f.svc.SetStatus(ctx, pay.ID, types.PaymentStatusFailed)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, types.ErrConflict)
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback("application/json", []byte(`{"cpm_trans_id":" IFT1 ","cpm_site_id":"105890","status":"ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, "IFT1", cb.TransactionID)
	assert.Equal(t, testSiteID, cb.SiteID)
	assert.NotEmpty(t, cb.Raw)

	cb, err = ParseCallback("application/x-www-form-urlencoded", []byte("cpm_trans_id=IFT2&cpm_site_id=105890&status=REFUSED&operator_id=OP"))
	require.NoError(t, err)
	assert.Equal(t, "IFT2", cb.TransactionID)
	assert.Equal(t, "OP", cb.OperatorID)

	cb, err = ParseCallback("", []byte("cpm_trans_id=IFT3&cpm_site_id=1"))
	require.NoError(t, err)
	assert.Equal(t, "IFT3", cb.TransactionID)

	_, err = ParseCallback("text/plain", []byte("%zz"))
	require.ErrorIs(t, err, types.ErrInvalidInput)
}
