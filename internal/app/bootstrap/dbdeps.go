// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/planhub/internal/app/plans/chat"
	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/store/audit"
	imagestore "github.com/dalemusser/planhub/internal/app/store/images"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/dalemusser/planhub/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// The Mongo fields are nil on the memory backend. Plans and Images are
// always set. Services is filled in by Startup; WAFFLE passes DBDeps by
// value, so it is a pointer shared by every hook.
type DBDeps struct {
	PlanHubMongoClient   *mongo.Client
	PlanHubMongoDatabase *mongo.Database

	Plans  docstore.Store
	Images imagestore.Store
	Audit  audit.Recorder

	Services *Services
}

// Services are the long-lived components built on top of the stores.
type Services struct {
	Membership *membership.Manager
	Chat       *chat.Synchronizer
	Reaper     *workers.FeedReaper
	Audit      *auditlog.Logger

	// Nil when the matching limit is disabled.
	SendLimiter   *ratelimit.Limiter
	SignInLimiter *ratelimit.Limiter
}
