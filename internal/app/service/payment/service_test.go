package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository/repotest"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/gateway"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/types"
)

type stubGateway struct {
	reqs []gateway.InitRequest
	err  error
}

func (g *stubGateway) InitPayment(_ context.Context, req gateway.InitRequest) (*gateway.InitResponse, error) {
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.InitResponse{PaymentURL: "https://checkout.example/pay/tok", PaymentToken: "tok", APIResponseID: "API-1"}, nil
}

func newTestService(t *testing.T) (*Service, *repotest.Memory, *stubGateway) {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{
		Server: cfgpkg.ServerConfig{PublicURL: "https://iftar.example/"},
		Event:  cfgpkg.EventConfig{Name: "Iftar 2026", Currency: "XOF", RegularPrice: 5000, MemberPrice: 3000},
	}
	repo := repotest.New()
	gw := &stubGateway{}
	svc := New(Params{
		Repo:         repo,
		Participants: participant.New(repo, nil, cfg, log),
		Gateway:      gw,
		Config:       cfg,
		Log:          log,
	})
	require.NoError(t, repo.CreateParticipant(context.Background(), &models.Participant{
		ID: "p1", FirstName: "Awa", LastName: "Sigui", Email: "awa@example.com", Phone: "0701234567",
		IsMember: true, ShortCode: "SIG-1234",
		Guests: []*models.Guest{
			{ID: "g1", FirstName: "Awa", IsMain: true},
			{ID: "g2", FirstName: "Moussa"},
		},
	}))
	return svc, repo, gw
}

func TestInitiate(t *testing.T) {
	svc, repo, gw := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateRequest{ParticipantID: "p1", Method: types.PaymentMethodWave})
	require.NoError(t, err)
	assert.EqualValues(t, 6000, res.Amount)
	assert.Equal(t, "XOF", res.Currency)
	assert.Equal(t, "https://checkout.example/pay/tok", res.PaymentURL)

	require.Len(t, gw.reqs, 1)
	assert.Equal(t, res.TransactionID, gw.reqs[0].TransactionID)
	assert.Equal(t, "https://iftar.example"+WebhookPath, gw.reqs[0].NotifyURL)
	assert.Equal(t, "Sigui", gw.reqs[0].CustomerSurname)

	pay, err := repo.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusPending, pay.Status)
	assert.Equal(t, "API-1", *pay.APIResponseID)

	st, err := svc.Status(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, st.Paid)
	require.NotNil(t, st.Payment)
	assert.Equal(t, res.PaymentID, st.Payment.ID)
}

func TestInitiate_GatewayFailureMarksPaymentFailed(t *testing.T) {
	svc, repo, gw := newTestService(t)
	gw.err = errors.New("connection reset")

	_, err := svc.Initiate(context.Background(), InitiateRequest{ParticipantID: "p1"})
	require.ErrorIs(t, err, types.ErrUpstream)

	p, err := repo.GetParticipant(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, p.Payments, 1)
	assert.Equal(t, types.PaymentStatusFailed, p.Payments[0].Status)
	assert.Equal(t, types.PaymentMethodCard, p.Payments[0].Method)
}

func TestInitiate_Rejections(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, InitiateRequest{ParticipantID: "p1", Method: "bitcoin"})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = svc.Initiate(ctx, InitiateRequest{ParticipantID: "nobody"})
	require.ErrorIs(t, err, participant.ErrParticipantNotFound)

	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		ID: "pay-done", ParticipantID: "p1", Status: types.PaymentStatusCompleted, TransactionID: "IFT-DONE",
	}))
	_, err = svc.Initiate(ctx, InitiateRequest{ParticipantID: "p1"})
	require.ErrorIs(t, err, ErrAlreadyPaid)

	st, err := svc.Status(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, st.Paid)
}
