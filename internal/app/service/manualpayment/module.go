package manualpayment

import (
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/app/service/notification"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/platform/telegram"
)

var Module = fx.Options(
	fx.Provide(
		func(d *notification.Dispatcher) Notifier { return d },
		func(n *telegram.Notifier) Alerter { return n },
		func(r *reconcile.Service) Fulfiller { return r },
		New,
	),
)
