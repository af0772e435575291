package notification_log

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/tool"
)

// Service records gateway callbacks in payment_notification_log.
type Service struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

func New(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// Received persists the raw callback before it is processed.
func (s *Service) Received(ctx context.Context, transactionID string, data []byte) *models.PaymentNotificationLog {
	entry := &models.PaymentNotificationLog{
		ID:            tool.GenerateUUIDV7(),
		TraceID:       logctx.TraceID(ctx),
		TransactionID: transactionID,
		Status:        models.PaymentNotificationLogStatusReceived,
	}
	if json.Valid(data) {
		entry.Data = datatypes.JSON(data)
	} else {
		raw, _ := json.Marshal(string(data))
		entry.Data = datatypes.JSON(raw)
	}
	if err := s.repo.SavePaymentNotificationLog(ctx, entry); err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
	}
	return entry
}

// Finish asynchronously stores the outcome of a callback. Nil entries are ignored.
func (s *Service) Finish(ctx context.Context, entry *models.PaymentNotificationLog, status models.PaymentNotificationLogStatus, paymentID string, result any) {
	if entry == nil {
		return
	}
	entry.Status = status
	if paymentID != "" {
		entry.PaymentID = &paymentID
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			j := datatypes.JSON(raw)
			entry.Result = &j
		}
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.SavePaymentNotificationLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

// Wait blocks until pending writes are done.
func (s *Service) Wait() { s.wg.Wait() }

func registerFlush(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			s.Wait()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerFlush),
)
