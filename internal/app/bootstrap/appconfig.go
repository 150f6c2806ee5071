// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig is where everything specific to PlanHub lives: the document
// store backend, session signing, chat limits and worker intervals.
type AppConfig struct {
	// Store backend: "mongo" or "memory"
	StoreBackend string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool
	MongoMinPoolSize uint64 // Minimum connections to keep warm

	// Polling period for live feeds when change streams are unavailable
	WatchPollInterval time.Duration

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: planhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionTTL    time.Duration // Cookie lifetime

	// Plans and chat
	EnforceJoinEligibility bool  // Reject joins that fail the plan's age/gender hints
	MaxMessageLength       int   // Longest chat message body, in characters
	MaxImageBytes          int64 // Largest accepted image upload

	// Per-minute request limits; 0 disables
	ChatSendLimit int // Messages per user
	SignInLimit   int // Sign-in attempts per client IP

	// Audit trail destination: all, db, log or off
	AuditLog string

	// Idle feed reaper
	FeedIdleTimeout  time.Duration // How long a snapshot may sit unread before the feed is closed
	FeedReapInterval time.Duration // How often the reaper sweeps

	// Store call timeouts used by handlers
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)
