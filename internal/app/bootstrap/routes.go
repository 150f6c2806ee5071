// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	chatfeature "github.com/dalemusser/planhub/internal/app/features/chat"
	errorsfeature "github.com/dalemusser/planhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/planhub/internal/app/features/health"
	imagesfeature "github.com/dalemusser/planhub/internal/app/features/images"
	plansfeature "github.com/dalemusser/planhub/internal/app/features/plans"
	sessionfeature "github.com/dalemusser/planhub/internal/app/features/session"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is populated.
//
// PlanHub is a JSON API: session, plans (with their audit activity), plan
// chat (with its websocket feed), images and health.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	return newRouter(sessionMgr, deps, appCfg, logger), nil
}

func newRouter(sessionMgr *auth.SessionManager, deps DBDeps, appCfg AppConfig, logger *zap.Logger) chi.Router {
	svc := deps.Services
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	// Global auth middleware: loads the user snapshot into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.PlanHubMongoClient, svc.Chat, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Sign-in shim
	sessionHandler := sessionfeature.NewHandler(sessionMgr, logger)
	sessionHandler.Audit = svc.Audit
	r.Mount("/session", sessionfeature.Routes(sessionHandler, svc.SignInLimiter))

	// Plans and their chat
	plansHandler := plansfeature.NewHandler(svc.Membership, errLog, logger)
	plansHandler.Audit = svc.Audit
	r.Mount("/plans", plansfeature.Routes(plansHandler, sessionMgr))

	chatHandler := chatfeature.NewHandler(svc.Chat, svc.Membership, errLog, logger)
	chatHandler.Audit = svc.Audit
	r.Mount("/plans/{id}/messages", chatfeature.Routes(chatHandler, sessionMgr, svc.SendLimiter))

	// Images
	imagesHandler := imagesfeature.NewHandler(deps.Images, appCfg.MaxImageBytes, errLog, logger)
	r.Mount("/images", imagesfeature.Routes(imagesHandler, sessionMgr))

	return r
}
