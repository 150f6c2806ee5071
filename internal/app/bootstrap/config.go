// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for PlanHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: PLANHUB_MONGO_URI, PLANHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Document store: 'mongo' or 'memory'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "planhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "watch_poll_interval", Default: "2s", Desc: "Live feed polling period when change streams are unavailable"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "planhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_ttl", Default: "720h", Desc: "Session cookie lifetime"},

	// Plans and chat
	{Name: "enforce_join_eligibility", Default: false, Desc: "Reject joins outside the plan's age range or gender filter"},
	{Name: "max_message_length", Default: 2000, Desc: "Longest chat message, in characters"},
	{Name: "max_image_bytes", Default: 5 << 20, Desc: "Largest accepted image upload, in bytes"},

	// Request rate limits, per minute (0 disables)
	{Name: "chat_send_limit", Default: 30, Desc: "Chat messages one user may send per minute (0 disables)"},
	{Name: "sign_in_limit", Default: 10, Desc: "Sign-in attempts per client IP per minute (0 disables)"},

	// Audit trail: "all" (store + log), "db", "log" or "off"
	{Name: "audit_log", Default: "all", Desc: "Where plan and session audit events go: all, db, log or off"},

	// Idle feed reaper
	{Name: "feed_idle_timeout", Default: "5m", Desc: "Close chat feeds whose snapshot sat unread this long"},
	{Name: "feed_reap_interval", Default: "1m", Desc: "How often idle chat feeds are swept (0 disables)"},

	// Store call timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-plan reads and array updates"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for plan writes and list queries"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for image transfers"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, PLANHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PLANHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:      strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:          appValues.String("mongo_uri"),
		MongoDatabase:     appValues.String("mongo_database"),
		MongoMaxPoolSize:  uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize:  uint64(appValues.Int("mongo_min_pool_size")),
		WatchPollInterval: appValues.Duration("watch_poll_interval", 2*time.Second),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionTTL:    appValues.Duration("session_ttl", 30*24*time.Hour),

		EnforceJoinEligibility: appValues.Bool("enforce_join_eligibility"),
		MaxMessageLength:       appValues.Int("max_message_length"),
		MaxImageBytes:          int64(appValues.Int("max_image_bytes")),

		ChatSendLimit: appValues.Int("chat_send_limit"),
		SignInLimit:   appValues.Int("sign_in_limit"),

		AuditLog: strings.ToLower(strings.TrimSpace(appValues.String("audit_log"))),

		FeedIdleTimeout:  appValues.Duration("feed_idle_timeout", 5*time.Minute),
		FeedReapInterval: appValues.Duration("feed_reap_interval", time.Minute),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is only checked when the mongo backend is selected.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required")
		}
	case BackendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("memory store selected in prod; plans are lost on restart")
		}
	default:
		return fmt.Errorf("unknown store_backend %q (want %q or %q)", appCfg.StoreBackend, BackendMongo, BackendMemory)
	}

	if appCfg.MaxMessageLength <= 0 {
		return fmt.Errorf("max_message_length must be positive")
	}
	if appCfg.MaxImageBytes <= 0 {
		return fmt.Errorf("max_image_bytes must be positive")
	}
	if appCfg.FeedIdleTimeout <= 0 {
		return fmt.Errorf("feed_idle_timeout must be positive")
	}
	if appCfg.ChatSendLimit < 0 || appCfg.SignInLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	if !auditlog.ValidMode(appCfg.AuditLog) {
		return fmt.Errorf("unknown audit_log %q (want all, db, log or off)", appCfg.AuditLog)
	}
	if appCfg.FeedReapInterval < 0 {
		return fmt.Errorf("feed_reap_interval cannot be negative")
	}
	return nil
}
