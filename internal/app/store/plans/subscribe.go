package planstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type changeEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  *models.Plan `bson:"fullDocument"`
}

// Subscribe opens a change stream on one plan document and delivers full
// snapshots. The stream is opened before the initial read so no change
// between the two is lost. On deployments without change streams it falls
// back to polling the document's version.
func (s *Store) Subscribe(ctx context.Context, id primitive.ObjectID) (docstore.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}},
	}
	stream, err := s.c.Watch(subCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil && !isChangeStreamUnsupported(err) {
		cancel()
		return nil, err
	}

	initial, getErr := s.Get(subCtx, id)
	if getErr != nil {
		if stream != nil {
			_ = stream.Close(context.Background())
		}
		cancel()
		return nil, getErr
	}

	sink := docstore.NewSink(cancel)
	sink.Push(initial)

	if stream == nil {
		s.log.Info("change streams unavailable; polling plan",
			zap.String("plan_id", id.Hex()),
			zap.Duration("interval", s.pollInterval))
		go s.poll(subCtx, id, sink, initial.Version)
		return sink, nil
	}

	go s.watch(subCtx, stream, sink, initial.Version)
	return sink, nil
}

func (s *Store) watch(ctx context.Context, stream *mongo.ChangeStream, sink *docstore.Sink, lastVersion int64) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.log.Warn("planstore: decode change event failed", zap.Error(err))
			continue
		}
		switch ev.OperationType {
		case "delete", "drop", "invalidate":
			sink.Fail(docstore.ErrNotFound)
			return
		case "insert", "update", "replace":
			// The lookup can miss when the document was deleted right
			// after the change; the delete event follows.
			if ev.FullDocument == nil || ev.FullDocument.Version <= lastVersion {
				continue
			}
			lastVersion = ev.FullDocument.Version
			if !sink.Push(*ev.FullDocument) {
				return
			}
		}
	}

	if ctx.Err() != nil {
		sink.Close()
		return
	}
	err := stream.Err()
	if err == nil {
		err = errors.New("planstore: change stream ended")
	}
	s.log.Warn("planstore: change stream ended", zap.Error(err))
	sink.Fail(err)
}

func (s *Store) poll(ctx context.Context, id primitive.ObjectID, sink *docstore.Sink, lastVersion int64) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sink.Close()
			return
		case <-sink.Done():
			return
		case <-ticker.C:
		}

		p, err := s.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				sink.Close()
				return
			}
			sink.Fail(err)
			return
		}
		if p.Version <= lastVersion {
			continue
		}
		lastVersion = p.Version
		if !sink.Push(p) {
			return
		}
	}
}

// isChangeStreamUnsupported reports whether err means the server cannot
// open change streams (standalone mongod, some DocumentDB versions).
func isChangeStreamUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 40573, 136, 115:
			return true
		}
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "only supported on replica sets") ||
		(strings.Contains(s, "changestream") && strings.Contains(s, "not supported"))
}
