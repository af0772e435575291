//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/db"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/types"
)

// Run with: APP_TEST_DATABASE_DSN=postgres://... go test -tags integration ./internal/app/repository/
func newPostgresRepo(t *testing.T) Repository {
	t.Helper()
	dsn := os.Getenv("APP_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_DATABASE_DSN is not set")
	}
	log := zap.NewNop().Sugar()
	gdb, err := db.NewDB(log, &cfgpkg.Config{Env: cfgpkg.EnvProd, Database: cfgpkg.DBConfig{DSN: dsn}})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(log, gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := NewGorm(gdb)
	require.NoError(t, repo.Wipe(context.Background()))
	return repo
}

func seedParticipant(t *testing.T, repo Repository, shortCode string) *models.Participant {
	t.Helper()
	p := &models.Participant{
		ID: uuid.NewString(), FirstName: "Awa", LastName: "Sigui",
		Email: "awa@example.com", Phone: "0701234567", ShortCode: shortCode,
	}
	require.NoError(t, repo.CreateParticipant(context.Background(), p))
	return p
}

func TestGorm_DuplicateShortCode(t *testing.T) {
	repo := newPostgresRepo(t)
	seedParticipant(t, repo, "SIG-1234")

	err := repo.CreateParticipant(context.Background(), &models.Participant{
		ID: uuid.NewString(), FirstName: "Ali", LastName: "Sidibe",
		Email: "ali@example.com", Phone: "0708080808", ShortCode: "SIG-1234",
	})
	require.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.ShortCodeExists(context.Background(), "SIG-1234")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGorm_AssignQRCodeOnce(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	p := seedParticipant(t, repo, "SIG-2000")

	ok, err := repo.AssignQRCode(ctx, p.ID, "IFTAR-first")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AssignQRCode(ctx, p.ID, "IFTAR-second")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "IFTAR-first", *stored.QRCode)
}

func TestGorm_TransitionPaymentIsConditional(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	p := seedParticipant(t, repo, "SIG-3000")
	pay := &models.Payment{
		ID: uuid.NewString(), ParticipantID: p.ID, Amount: 5000, Currency: "XOF",
		Method: types.PaymentMethodCard, Status: types.PaymentStatusPending, TransactionID: "IFT-" + p.ID[:8],
	}
	require.NoError(t, repo.CreatePayment(ctx, pay))

	op := "OM-1"
	moved, err := repo.TransitionPayment(ctx, pay.ID, types.PaymentStatusPending, types.PaymentStatusCompleted, &op, time.Now())
	require.NoError(t, err)
	assert.True(t, moved)

	// a second delivery still believing the payment is pending does not match the row
	moved, err = repo.TransitionPayment(ctx, pay.ID, types.PaymentStatusPending, types.PaymentStatusFailed, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, moved)

	stored, err := repo.GetPayment(ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestGorm_MarkCheckedInOnce(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	p := seedParticipant(t, repo, "SIG-4000")

	ok, err := repo.MarkCheckedIn(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkCheckedIn(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
