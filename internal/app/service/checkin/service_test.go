package checkin

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository/repotest"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/models"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/types"
)

func newTestService(t *testing.T, paid bool) (*Service, *repotest.Memory) {
	t.Helper()
	log := zap.NewNop().Sugar()
	repo := repotest.New()
	ctx := context.Background()
	require.NoError(t, repo.CreateParticipant(ctx, &models.Participant{
		ID: "p1", FirstName: "Awa", LastName: "Sigui", ShortCode: "SIG-1234", QRCode: lo.ToPtr("IFTAR-p1-1"),
		Guests: []*models.Guest{
			{ID: "g-main", FirstName: "Awa", IsMain: true},
			{ID: "g-2", FirstName: "Moussa"},
		},
	}))
	if paid {
		require.NoError(t, repo.CreateManualPayment(ctx, &models.ManualPayment{
			ID: "mp1", ParticipantID: "p1", Status: types.PaymentStatusCompleted,
		}))
	}
	svc := New(Params{
		Repo:         repo,
		Participants: participant.New(repo, nil, &cfgpkg.Config{}, log),
		Log:          log,
	})
	return svc, repo
}

func TestByQRCode(t *testing.T) {
	svc, repo := newTestService(t, true)
	ctx := context.Background()

	res, err := svc.ByQRCode(ctx, " IFTAR-p1-1 ", "door-1")
	require.NoError(t, err)
	assert.True(t, res.Participant.CheckedIn)
	assert.NotNil(t, res.Participant.CheckedInAt)
	assert.Equal(t, types.CheckInMethodQRScan, res.CheckIn.Method)
	assert.Equal(t, "door-1", res.CheckIn.Operator)

	main, err := repo.GetGuest(ctx, "g-main")
	require.NoError(t, err)
	assert.True(t, main.CheckedIn)
	other, _ := repo.GetGuest(ctx, "g-2")
	assert.False(t, other.CheckedIn)

	_, err = svc.ByShortCode(ctx, "sig-1234", "door-1")
	require.ErrorIs(t, err, ErrAlreadyCheckedIn)
	require.ErrorIs(t, err, types.ErrConflict)

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestByShortCodeAndSelf(t *testing.T) {
	svc, _ := newTestService(t, true)
	res, err := svc.ByShortCode(context.Background(), " sig-1234", "")
	require.NoError(t, err)
	assert.Equal(t, types.CheckInMethodSMSCode, res.CheckIn.Method)

	svc, _ = newTestService(t, true)
	res, err = svc.Self(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, types.CheckInMethodSelf, res.CheckIn.Method)
}

func TestCheckIn_RequiresCompletedPayment(t *testing.T) {
	svc, repo := newTestService(t, false)
	ctx := context.Background()
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		ID: "pay1", ParticipantID: "p1", Status: types.PaymentStatusPending, TransactionID: "IFT1",
	}))

	_, err := svc.Self(ctx, "p1")
	require.ErrorIs(t, err, ErrNotPaid)
	_, err = svc.Guest(ctx, "g-2", "door")
	require.ErrorIs(t, err, ErrNotPaid)

	_, err = svc.ByQRCode(ctx, "unknown", "door")
	require.ErrorIs(t, err, participant.ErrParticipantNotFound)
}

func TestGuest(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	res, err := svc.Guest(ctx, "g-2", "door-2")
	require.NoError(t, err)
	assert.Equal(t, types.CheckInMethodGuest, res.CheckIn.Method)
	assert.Equal(t, "g-2", *res.CheckIn.GuestID)
	assert.False(t, res.Participant.CheckedIn)

	_, err = svc.Guest(ctx, "g-2", "door-2")
	require.ErrorIs(t, err, ErrGuestAlreadyCheckedIn)

	_, err = svc.Guest(ctx, "nope", "door-2")
	require.ErrorIs(t, err, participant.ErrGuestNotFound)
}
