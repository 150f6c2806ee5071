// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("plans", PlansSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 59 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 115 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func userSnapshotSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"id", "name"},
		"properties": bson.M{
			"id":        nonBlank,
			"name":      bson.M{"bsonType": "string"},
			"photo_url": bson.M{"bsonType": "string"},
			"age":       bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			"gender":    bson.M{"bsonType": "string"},
		},
	}
}

// PlansSchema is the validator for the plans collection. The per-element
// id uniqueness of participants and messages is enforced by the update
// filters, not by the schema.
func PlansSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "description", "creator", "participants", "version", "created_at"},
			"properties": bson.M{
				"title":       nonBlank,
				"title_ci":    nonBlank,
				"description": nonBlank,
				"image_url":   bson.M{"bsonType": "string"},
				"location": bson.M{
					"bsonType": "object",
					"required": bson.A{"name"},
					"properties": bson.M{
						"name": nonBlank,
						"lat":  bson.M{"bsonType": "double", "minimum": -90, "maximum": 90},
						"lng":  bson.M{"bsonType": "double", "minimum": -180, "maximum": 180},
					},
				},
				"schedule": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"date":       bson.M{"bsonType": bson.A{"date", "null"}},
						"time_label": bson.M{"bsonType": "string"},
					},
				},
				"tags": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"age_range": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"min": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"max": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
					},
				},
				"gender_filter": bson.M{"enum": bson.A{"", models.GenderAny, models.GenderFemale, models.GenderMale, models.GenderNonbinary}},
				"creator":       userSnapshotSchema(),
				"participants":  bson.M{"bsonType": "array", "items": userSnapshotSchema()},
				"messages": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"id", "author_id", "body", "sent_at"},
						"properties": bson.M{
							"id":        nonBlank,
							"author_id": nonBlank,
							"body":      nonBlank,
							"sent_at":   bson.M{"bsonType": "date"},
						},
					},
				},
				"version":    bson.M{"bsonType": "long", "minimum": 1},
				"created_at": bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
