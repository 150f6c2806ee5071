// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the Mongo collection holding audit events.
const Collection = "audit_events"

// Event categories
const (
	CategorySession = "session"
	CategoryPlan    = "plan"
	CategoryChat    = "chat"
)

// Session event types
const (
	EventSignIn            = "sign_in"
	EventSignOut           = "sign_out"
	EventSignInRateLimited = "sign_in_rate_limited"
)

// Plan event types
const (
	EventPlanCreated = "plan_created"
	EventPlanUpdated = "plan_updated"
	EventPlanDeleted = "plan_deleted"
	EventPlanJoined  = "plan_joined"
	EventPlanLeft    = "plan_left"
)

// Chat event types
const (
	EventMessagesCleared = "messages_cleared"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time           `bson:"timestamp" json:"timestamp"`
	PlanID    *primitive.ObjectID `bson:"plan_id,omitempty" json:"plan_id,omitempty"`

	// Event classification
	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// Who performed the action; identity ids are opaque strings.
	ActorID   string `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName string `bson:"actor_name,omitempty" json:"actor_name,omitempty"`

	// Context
	IP        string `bson:"ip" json:"-"`
	UserAgent string `bson:"user_agent,omitempty" json:"-"`

	// Outcome
	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	PlanID    *primitive.ObjectID
	ActorID   string
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
}

// DefaultLimit applies when a filter sets no limit.
const DefaultLimit = 100

// Recorder stores and queries audit events.
type Recorder interface {
	Log(ctx context.Context, event Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
}

// Store manages audit event records in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// prepare fills the id and timestamp of a new event.
func prepare(event Event) Event {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	_, err := s.c.InsertOne(ctx, prepare(event))
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.PlanID != nil {
		query["plan_id"] = *filter.PlanID
	}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}

	// Time range
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}
