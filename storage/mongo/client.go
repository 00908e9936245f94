package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/joelmoran101/chartstore/storage"
)

const (
	// DefaultDatabase is the database used when none is configured
	DefaultDatabase = "plotly_db"

	// DefaultCollection is the collection holding both records and charts
	DefaultCollection = "plotly_data"

	// atlasURIPrefix marks a MongoDB Atlas (SRV) connection string. Atlas
	// deployments get more generous timeouts and an explicit pool size.
	atlasURIPrefix = "mongodb+srv://"

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// Local deployment timeouts
	localServerSelectionTimeout = 5 * time.Second
	localConnectTimeout         = 10 * time.Second
	localOperationTimeout       = 20 * time.Second

	// Atlas deployment timeouts
	atlasServerSelectionTimeout = 10 * time.Second
	atlasConnectTimeout         = 20 * time.Second
	atlasOperationTimeout       = 30 * time.Second
	atlasMaxPoolSize            = 50
)

// Config holds configuration for the MongoDB storage backend.
type Config struct {
	// URI is the MongoDB connection string (required),
	// e.g. "mongodb://localhost:27017" or "mongodb+srv://cluster.example.net"
	URI string

	// Database is the database name (default "plotly_db")
	Database string

	// Collection is the collection holding both records and charts
	// (default "plotly_data")
	Collection string

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a MongoDB-backed implementation of all storage interfaces.
// Records and charts live in one collection; the unique item_id index is
// what resolves sequence generation races.
type Store struct {
	client     *mongodrv.Client
	collection *mongodrv.Collection
	logger     *slog.Logger
}

// Compile-time interface check to ensure Store implements all storage interfaces
var _ storage.Store = (*Store)(nil)

// New creates a new MongoDB-backed storage instance.
// Returns an error if the connection cannot be established or the unique
// item_id index cannot be created.
func New(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}

	database := cfg.Database
	if database == "" {
		database = DefaultDatabase
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// DefaultDocumentM keeps nested documents as maps so the shared mapper
	// sees the same shapes the memory backend produces.
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	if isAtlasURI(cfg.URI) {
		opts = opts.
			SetServerSelectionTimeout(atlasServerSelectionTimeout).
			SetConnectTimeout(atlasConnectTimeout).
			SetTimeout(atlasOperationTimeout).
			SetMaxPoolSize(atlasMaxPoolSize).
			SetRetryWrites(true)
		logger.Info("Using MongoDB Atlas connection profile")
	} else {
		opts = opts.
			SetServerSelectionTimeout(localServerSelectionTimeout).
			SetConnectTimeout(localConnectTimeout).
			SetTimeout(localOperationTimeout)
	}

	client, err := mongodrv.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger,
	}

	idxCtx, idxCancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer idxCancel()

	if err := s.ensureIndexes(idxCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Connected to MongoDB storage",
		"database", database,
		"collection", collection)

	return s, nil
}

// ensureIndexes creates the unique item_id index the sequence generator
// relies on to reject the loser of concurrent inserts.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongodrv.IndexModel{
		Keys:    bson.D{{Key: storage.FieldItemID, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique %s index: %w", storage.FieldItemID, err)
	}
	return nil
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Ping verifies the MongoDB connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrNotConnected, err)
	}
	return nil
}

// Close disconnects the MongoDB client
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb client: %w", err)
	}
	s.logger.Info("MongoDB storage connection closed")
	return nil
}

func isAtlasURI(uri string) bool {
	return strings.HasPrefix(uri, atlasURIPrefix)
}
