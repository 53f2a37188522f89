// Package commands provides command infrastructure and Fx modules.
package commands

import (
	"go.uber.org/fx"
)

// Module provides command-related dependencies: the command manager
// and the join/leave/play voice commands it dispatches to.
var Module = fx.Module("commands",
	fx.Provide(
		NewCommandManager,
		fx.Annotate(
			NewJoinCommand,
			fx.As(new(Command)),
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewLeaveCommand,
			fx.As(new(Command)),
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewPlayCommand,
			fx.As(new(Command)),
			fx.ResultTags(`group:"commands"`),
		),
	),
)
