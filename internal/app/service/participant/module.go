package participant

import (
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/app/service/notification"
)

var Module = fx.Options(
	fx.Provide(
		func(d *notification.Dispatcher) Notifier { return d },
		NewFromParams,
	),
)
