package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore provides chat database operations. Every lookup that takes a
// userID is scoped to that owner, so a chat owned by someone else is simply
// not found.
type ChatsStore struct {
	// coll is reference to "chats" collection in MongoDB
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// CreateChat inserts chat and fills in its generated ID. Zero timestamps are
// set to now.
func (s *ChatsStore) CreateChat(ctx context.Context, chat *Chat) (*Chat, error) {
	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}
	// store an empty array rather than null so $push always has a target
	if chat.MessageIDs == nil {
		chat.MessageIDs = []bson.ObjectID{}
	}

	result, err := s.coll.InsertOne(ctx, chat)
	if err != nil {
		return nil, err
	}
	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// GetChatForUser returns the chat if it exists and belongs to userID.
func (s *ChatsStore) GetChatForUser(ctx context.Context, chatID, userID bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := s.coll.FindOne(ctx, bson.M{"_id": chatID, "user_id": userID}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ListChatsByUser returns every chat of userID, newest first.
func (s *ChatsStore) ListChatsByUser(ctx context.Context, userID bson.ObjectID) ([]*Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chats := []*Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CountChatsByUser returns how many chats userID owns.
func (s *ChatsStore) CountChatsByUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"user_id": userID})
}

// UpdateChatNames sets the provided names (nil means unchanged) and returns
// the updated chat.
func (s *ChatsStore) UpdateChatNames(ctx context.Context, chatID, userID bson.ObjectID, firstName, lastName *string) (*Chat, error) {
	set := bson.M{"updated_at": time.Now()}
	if firstName != nil {
		set["first_name"] = *firstName
	}
	if lastName != nil {
		set["last_name"] = *lastName
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var chat Chat
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{"$set": set},
		opts,
	).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// AppendMessages pushes message ids onto the chat's list in one atomic update.
// A missing chat is not an error: the auto-reply may land after deletion.
func (s *ChatsStore) AppendMessages(ctx context.Context, chatID bson.ObjectID, msgIDs ...bson.ObjectID) error {
	if len(msgIDs) == 0 {
		return nil
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": msgIDs}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

// DeleteChat removes the chat if owned by userID. Messages are not touched;
// callers delete them first.
func (s *ChatsStore) DeleteChat(ctx context.Context, chatID, userID bson.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": chatID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
