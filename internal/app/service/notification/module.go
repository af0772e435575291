package notification

import (
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/platform/notify"
)

var Module = fx.Options(
	fx.Provide(notify.NewEmailSender, notify.NewSMSSender, New),
	fx.Invoke(registerWorker),
)
