package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	// Set via NewMessagesStore() and used in all methods below
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// SaveMessage inserts a message document and returns the saved record.
// A zero CreatedAt is set to now; UpdatedAt defaults to CreatedAt.
func (m *MessagesStore) SaveMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	// InsertOne adds the message document to MongoDB collection
	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Extract MongoDB's auto-generated _id; it is what clients dedupe on
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// SaveMessages inserts several messages at once (seeding) and fills their IDs.
func (m *MessagesStore) SaveMessages(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]any, len(msgs))
	for i, msg := range msgs {
		if msg.UpdatedAt.IsZero() {
			msg.UpdatedAt = msg.CreatedAt
		}
		docs[i] = msg
	}

	result, err := m.coll.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	// InsertedIDs preserves input order for ordered inserts
	for i, id := range result.InsertedIDs {
		msgs[i].ID = id.(bson.ObjectID)
	}
	return nil
}

// GetMessage returns a single message by id.
func (m *MessagesStore) GetMessage(ctx context.Context, id bson.ObjectID) (*Message, error) {
	var msg Message
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListByChat returns every message of a chat ordered oldest→newest.
func (m *MessagesStore) ListByChat(ctx context.Context, chatID bson.ObjectID) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return m.find(ctx, bson.M{"chat_id": chatID}, opts)
}

// RecentByChat returns the newest limit messages of a chat, ordered oldest→newest.
func (m *MessagesStore) RecentByChat(ctx context.Context, chatID bson.ObjectID, limit int64) ([]*Message, error) {
	// Sort newest first so the limit keeps the most recent messages
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	messages, err := m.find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}

	// Reverse back to chronological order for the client
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateContent replaces the content of a message and bumps updated_at.
func (m *MessagesStore) UpdateContent(ctx context.Context, id bson.ObjectID, content string, at time.Time) (*Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "updated_at": at}},
		opts,
	).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// DeleteByChat removes every message of a chat and reports how many went.
func (m *MessagesStore) DeleteByChat(ctx context.Context, chatID bson.ObjectID) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MessagesStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Message, error) {
	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	// Ensure cursor is closed when done (cleanup)
	defer cursor.Close(ctx)

	// non-nil so an empty chat encodes as [] rather than null
	messages := []*Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*Message{}
	}
	return messages, nil
}
