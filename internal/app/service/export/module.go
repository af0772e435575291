package export

import (
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/platform/sheets"
)

var Module = fx.Options(
	fx.Provide(
		func(c *sheets.Client) SheetWriter { return c },
		New,
	),
)
