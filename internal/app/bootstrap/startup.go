// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/planhub/internal/app/plans/chat"
	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"github.com/dalemusser/planhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the plan and chat services and starts the idle feed reaper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	t := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium),
		zap.Duration("long", t.Long))

	svc := deps.Services
	svc.Membership = membership.New(deps.Plans, logger.Named("membership"),
		membership.WithEligibilityEnforced(appCfg.EnforceJoinEligibility))
	svc.Chat = chat.New(deps.Plans, logger.Named("chat"),
		chat.WithMaxMessageLength(appCfg.MaxMessageLength))

	svc.Audit = auditlog.New(deps.Audit, logger.Named("audit"), appCfg.AuditLog)

	if appCfg.ChatSendLimit > 0 {
		svc.SendLimiter = ratelimit.New(appCfg.ChatSendLimit, time.Minute)
	}
	if appCfg.SignInLimit > 0 {
		svc.SignInLimiter = ratelimit.New(appCfg.SignInLimit, time.Minute)
	}

	if appCfg.FeedReapInterval > 0 {
		svc.Reaper = workers.NewFeedReaper(svc.Chat, logger, appCfg.FeedReapInterval, appCfg.FeedIdleTimeout)
		svc.Reaper.Start()
	}
	return nil
}
