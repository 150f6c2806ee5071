// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/planhub/internal/app/store/audit"
	imagestore "github.com/dalemusser/planhub/internal/app/store/images"
	"github.com/dalemusser/planhub/internal/app/store/memdocs"
	planstore "github.com/dalemusser/planhub/internal/app/store/plans"
	"github.com/dalemusser/planhub/internal/app/system/indexes"
	"github.com/dalemusser/planhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the configured backend and builds the stores on it.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{Services: &Services{}}

	if appCfg.StoreBackend == BackendMemory {
		logger.Info("using in-memory plan store")
		deps.Plans = memdocs.New()
		deps.Images = imagestore.NewMemory()
		deps.Audit = audit.NewMemory()
		return deps, nil
	}

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(appCfg.MongoDatabase)

	images, err := imagestore.NewGridFS(db)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))

	deps.PlanHubMongoClient = client
	deps.PlanHubMongoDatabase = db
	deps.Plans = planstore.New(db,
		planstore.WithLogger(logger),
		planstore.WithPollInterval(appCfg.WatchPollInterval))
	deps.Images = images
	deps.Audit = audit.New(db)
	return deps, nil
}

// EnsureSchema creates the plans collection with its validator, and the
// plan and audit indexes.
// Nothing to do on the memory backend.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.PlanHubMongoDatabase == nil {
		return nil
	}
	if err := validators.EnsureAll(ctx, deps.PlanHubMongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.PlanHubMongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
