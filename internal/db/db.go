// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index key documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db holds the users, chats and messages collections
	db *mongo.Database
}

// New connects to MongoDB and returns a Client bound to the named database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	c := &Client{client: client}
	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if database == "" {
		database = DefaultDatabase
	}
	// Lazy-loaded: actual DB not created until first write
	c.db = client.Database(database)
	return c, nil
}

// Ping checks the primary is reachable within five seconds.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ChatsCollection returns the chats collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS =====
	// email is unique; google_id is unique only when present (sparse)
	usersIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, usersIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// ===== CHATS =====
	// Used by ListChats (owner, newest first) and the ownership lookups
	chatsIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}
	if _, err := c.ChatsCollection().Indexes().CreateOne(ctx, chatsIndex); err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}

	// ===== MESSAGES =====
	// Compound key order matters, hence bson.D rather than a map.
	// Used by history (ascending), recent messages (descending) and cascade delete.
	messagesIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateOne(ctx, messagesIndex); err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}

	return nil
}
