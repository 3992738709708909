// Package service implements the chat and message lifecycle: ownership
// checks, validation, seeding, realtime fan-out and the delayed auto-reply.
package service

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Realtime event names pushed to chat rooms.
const (
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
)

// ChatStore is the subset of data.ChatsStore the services use.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *data.Chat) (*data.Chat, error)
	GetChatForUser(ctx context.Context, chatID, userID bson.ObjectID) (*data.Chat, error)
	ListChatsByUser(ctx context.Context, userID bson.ObjectID) ([]*data.Chat, error)
	CountChatsByUser(ctx context.Context, userID bson.ObjectID) (int64, error)
	UpdateChatNames(ctx context.Context, chatID, userID bson.ObjectID, firstName, lastName *string) (*data.Chat, error)
	AppendMessages(ctx context.Context, chatID bson.ObjectID, msgIDs ...bson.ObjectID) error
	DeleteChat(ctx context.Context, chatID, userID bson.ObjectID) error
}

// MessageStore is the subset of data.MessagesStore the services use.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *data.Message) (*data.Message, error)
	SaveMessages(ctx context.Context, msgs []*data.Message) error
	GetMessage(ctx context.Context, id bson.ObjectID) (*data.Message, error)
	ListByChat(ctx context.Context, chatID bson.ObjectID) ([]*data.Message, error)
	RecentByChat(ctx context.Context, chatID bson.ObjectID, limit int64) ([]*data.Message, error)
	UpdateContent(ctx context.Context, id bson.ObjectID, content string, at time.Time) (*data.Message, error)
	DeleteByChat(ctx context.Context, chatID bson.ObjectID) (int64, error)
}

// Broadcaster pushes an event to every connection joined to a chat room.
// Implementations must not block on slow connections.
type Broadcaster interface {
	Broadcast(chatID, event string, msg *data.Message)
}

// parseID turns a path id into an ObjectID. Malformed ids cannot name an
// existing document, so they are reported as not found.
func parseID(id, what string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, apperr.NotFoundf(what + " not found")
	}
	return oid, nil
}

// internal wraps an unexpected store error.
func internal(op string, err error) error {
	return apperr.Wrap(apperr.Internal, op, err)
}
