package notification_log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/repository/repotest"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/logctx"
)

func TestReceivedThenFinish(t *testing.T) {
	repo := repotest.New()
	svc := New(repo, zap.NewNop().Sugar())
	ctx := logctx.WithTraceID(context.Background(), "trace-1")

	entry := svc.Received(ctx, "IFT1", []byte(`{"cpm_trans_id":"IFT1"}`))
	stored, ok := repo.PaymentNotificationLog(entry.ID)
	require.True(t, ok)
	require.Equal(t, models.PaymentNotificationLogStatusReceived, stored.Status)
	require.Equal(t, "trace-1", stored.TraceID)
	require.JSONEq(t, `{"cpm_trans_id":"IFT1"}`, string(stored.Data))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	svc.Finish(cctx, entry, models.PaymentNotificationLogStatusHandled, "pay-1", map[string]string{"new_status": "completed"})
	svc.Wait()

	stored, _ = repo.PaymentNotificationLog(entry.ID)
	require.Equal(t, models.PaymentNotificationLogStatusHandled, stored.Status)
	require.Equal(t, "pay-1", *stored.PaymentID)
	require.JSONEq(t, `{"new_status":"completed"}`, string(*stored.Result))
}

func TestReceived_NonJSONBody(t *testing.T) {
	repo := repotest.New()
	svc := New(repo, zap.NewNop().Sugar())
	entry := svc.Received(context.Background(), "IFT1", []byte("cpm_trans_id=IFT1&cpm_site_id=1"))
	require.JSONEq(t, `"cpm_trans_id=IFT1&cpm_site_id=1"`, string(entry.Data))
}
