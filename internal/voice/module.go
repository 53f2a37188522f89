package voice

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the voice session coordinator and registers the
// shutdown hook that leaves every still-joined guild, per spec.md
// §4.4/§8's guaranteed-cleanup-on-stop requirement.
var Module = fx.Module("voice",
	fx.Provide(NewManager),
	fx.Invoke(registerLifecycleHooks),
)

func registerLifecycleHooks(lc fx.Lifecycle, m *Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			for _, sess := range m.ActiveSessions() {
				if err := m.Leave(ctx, sess.GuildID); err != nil {
					logger.Warn("voice: failed to leave guild on shutdown",
						zap.String("guild_id", sess.GuildID.String()), zap.Error(err))
				}
			}
			return nil
		},
	})
}
