package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	reactionsCollection = "reactions"
	usersCollection     = "users"
)

var (
	ErrNotConnected   = errors.New("mongo client not initialized")
	ErrDuplicateVideo = errors.New("video with this identifier already exists")
	ErrVideoNotFound  = errors.New("video not found")
)

// Client wraps the MongoDB client and the collections the tools work on.
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	videos      *mongo.Collection
	reactions   *mongo.Collection
	users       *mongo.Collection
	connectErr  error
}

// NewClient creates a new database client. Connection problems surface from Connect.
func NewClient(connectionString, databaseName, videosCollection string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return &Client{connectErr: err}
	}

	database := mongoClient.Database(databaseName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		videos:      database.Collection(videosCollection),
		reactions:   database.Collection(reactionsCollection),
		users:       database.Collection(usersCollection),
	}
}

// Connect verifies the connection to MongoDB.
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		if c.connectErr != nil {
			return fmt.Errorf("%w: %v", ErrNotConnected, c.connectErr)
		}
		return ErrNotConnected
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the tools rely on: one video per
// archive identifier and one reaction per user and video.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if c.videos == nil {
		return ErrNotConnected
	}

	_, err := c.videos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identifier", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("identifier_unique"),
	})
	if err != nil {
		return fmt.Errorf("create videos identifier index: %w", err)
	}

	_, err = c.reactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "videoId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_video_unique"),
	})
	if err != nil {
		return fmt.Errorf("create reactions index: %w", err)
	}
	return nil
}
