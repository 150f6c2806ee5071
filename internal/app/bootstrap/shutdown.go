// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the background workers, ends every live feed, then
// disconnects MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := deps.Services; svc != nil {
		if svc.Reaper != nil {
			svc.Reaper.Stop()
		}
		for _, l := range []*ratelimit.Limiter{svc.SendLimiter, svc.SignInLimiter} {
			if l != nil {
				l.Stop()
			}
		}
		if svc.Chat != nil {
			logger.Info("closing chat feeds", zap.Int("open_feeds", svc.Chat.OpenFeeds()))
			svc.Chat.CloseAll()
		}
	}

	if deps.PlanHubMongoClient != nil {
		logger.Info("disconnecting PlanHub MongoDB client")
		if err := deps.PlanHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
