package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/app/api/server"
	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/checkin"
	"github.com/fatflowers/iftar/internal/app/service/export"
	"github.com/fatflowers/iftar/internal/app/service/manualpayment"
	"github.com/fatflowers/iftar/internal/app/service/notification"
	notificationlog "github.com/fatflowers/iftar/internal/app/service/notification_log"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/payment"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/app/service/statistics"
	"github.com/fatflowers/iftar/internal/platform/db"
	"github.com/fatflowers/iftar/internal/platform/events"
	"github.com/fatflowers/iftar/internal/platform/gateway"
	"github.com/fatflowers/iftar/internal/platform/queue"
	"github.com/fatflowers/iftar/internal/platform/sheets"
	"github.com/fatflowers/iftar/internal/platform/storage"
	"github.com/fatflowers/iftar/internal/platform/telegram"
	"github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logger"
	"github.com/fatflowers/iftar/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Platform is everything talking to the outside world: database, object storage, Redis, AMQP,
// payment gateway, Telegram and Google Sheets.
var Platform = fx.Options(
	db.Module,
	repository.Module,
	storage.Module,
	queue.Module,
	events.Module,
	gateway.Module,
	telegram.Module,
	sheets.Module,
)

var Services = fx.Options(
	notificationlog.Module,
	notification.Module,
	participant.Module,
	payment.Module,
	reconcile.Module,
	manualpayment.Module,
	checkin.Module,
	auth.Module,
	statistics.Module,
	export.Module,
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	Platform,
	Services,
	server.Module,
)
