// internal/app/store/plans/planstore.go
package planstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection is the name of the plans collection.
const Collection = "plans"

// DefaultPollInterval is used when change streams are unavailable.
const DefaultPollInterval = 2 * time.Second

// Store is the MongoDB docstore.Store. Participant and message arrays are
// mutated with single-document update operators guarded by the element id,
// so MongoDB's per-document atomicity is the only lock.
type Store struct {
	c            *mongo.Collection
	log          *zap.Logger
	pollInterval time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for subscription diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPollInterval sets the polling period used when the deployment does
// not support change streams (standalone servers).
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{
		c:            db.Collection(Collection),
		log:          zap.NewNop(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Plan, error) {
	var p models.Plan
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Plan{}, docstore.ErrNotFound
		}
		return models.Plan{}, err
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p models.Plan) (models.Plan, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Participants == nil {
		p.Participants = []models.UserSnapshot{}
	}
	if p.Messages == nil {
		p.Messages = []models.GroupMessage{}
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Plan{}, err
	}
	return p, nil
}

// Update applies only the fields named in the patch.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, patch models.PlanPatch) error {
	if patch.IsEmpty() {
		return s.ensureExists(ctx, id)
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for _, f := range patch.Fields() {
		v, _ := patch.Get(f)
		set[string(f)] = v
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Delete removes the plan, transcript included.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// ArrayUnion pushes elem only when no entry with the same id exists. The id
// guard lives in the filter, so the check and the push are one atomic write.
func (s *Store) ArrayUnion(ctx context.Context, id primitive.ObjectID, field docstore.Field, elem docstore.Element) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("planstore: unknown array field %q", field)
	}
	filter := bson.M{"_id": id}
	filter[string(field)+".id"] = bson.M{"$ne": elem.ElementID()}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{string(field): elem},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// Either the plan is gone or the id is already present.
		return false, s.ensureExists(ctx, id)
	}
	return true, nil
}

// ArrayRemove pulls every entry whose id equals key.
func (s *Store) ArrayRemove(ctx context.Context, id primitive.ObjectID, field docstore.Field, key string) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("planstore: unknown array field %q", field)
	}
	filter := bson.M{"_id": id}
	filter[string(field)+".id"] = key
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$pull": bson.M{string(field): bson.M{"id": key}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, s.ensureExists(ctx, id)
	}
	return true, nil
}

// ArrayClear empties the array. Clearing an empty array is not a change.
func (s *Store) ArrayClear(ctx context.Context, id primitive.ObjectID, field docstore.Field) error {
	if !field.Valid() {
		return fmt.Errorf("planstore: unknown array field %q", field)
	}
	filter := bson.M{"_id": id}
	filter[string(field)+".0"] = bson.M{"$exists": true}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{string(field): bson.A{}, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.ensureExists(ctx, id)
	}
	return nil
}

// ListForUser returns plans the user created or joined, newest first. The
// transcript is not loaded.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.Plan, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"creator.id": userID},
		bson.M{"participants.id": userID},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"messages": 0})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var plans []models.Plan
	if err := cur.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Store) ensureExists(ctx context.Context, id primitive.ObjectID) error {
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	return err
}

var _ docstore.Store = (*Store)(nil)
