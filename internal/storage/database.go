package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// MongoSink upserts records into a MongoDB collection keyed by link.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to the upload endpoint and verifies it with a ping.
func NewMongoSink(ctx context.Context, cfg config.UploadConfig, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "mongo_sink", "collection", cfg.Collection),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

// Append replaces any earlier document for the same link, so re-running a
// query refreshes papers instead of duplicating them.
func (s *MongoSink) Append(rec types.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"link": rec.Link},
		bson.M{"$set": rec},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("upsert %s: %w", rec.Link, err)}
	}

	s.count++
	s.logger.Debug("record upserted", "index", rec.Index, "total", s.count)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// MultiSink fans out to a primary sink and any number of secondary ones.
// Only the primary's errors are returned; a secondary that fails is logged
// and counted, and still sees every later record.
type MultiSink struct {
	primary     Sink
	secondaries []Sink
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewMultiSink creates a fan-out sink. metrics may be nil.
func NewMultiSink(primary Sink, secondaries []Sink, metrics *observability.Metrics, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		primary:     primary,
		secondaries: secondaries,
		metrics:     metrics,
		logger:      logger.With("component", "multi_sink"),
	}
}

// Name returns the primary's name followed by the secondaries', joined by '+'.
func (s *MultiSink) Name() string {
	names := []string{s.primary.Name()}
	for _, sink := range s.secondaries {
		names = append(names, sink.Name())
	}
	return strings.Join(names, "+")
}

func (s *MultiSink) Append(rec types.Record) error {
	err := s.primary.Append(rec)
	for _, sink := range s.secondaries {
		if serr := sink.Append(rec); serr != nil {
			if s.metrics != nil {
				s.metrics.UploadErrors.Add(1)
			}
			s.logger.Warn("secondary sink append failed, local table unaffected",
				"sink", sink.Name(), "index", rec.Index, "error", serr)
		}
	}
	return err
}

func (s *MultiSink) Close() error {
	err := s.primary.Close()
	for _, sink := range s.secondaries {
		if cerr := sink.Close(); cerr != nil {
			s.logger.Warn("secondary sink close failed", "sink", sink.Name(), "error", cerr)
		}
	}
	return err
}
