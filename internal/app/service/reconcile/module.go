package reconcile

import (
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/app/service/notification"
	"github.com/fatflowers/iftar/internal/app/service/notification_log"
	"github.com/fatflowers/iftar/internal/platform/events"
)

var Module = fx.Options(
	fx.Provide(
		func(d *notification.Dispatcher) Notifier { return d },
		func(p *events.Publisher) EventPublisher { return p },
		func(l *notification_log.Service) CallbackLog { return l },
		New,
	),
)
