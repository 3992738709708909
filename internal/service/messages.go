package service

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ReplyScheduler schedules the delayed system reply for a chat.
type ReplyScheduler interface {
	Schedule(chatID bson.ObjectID) TaskKey
}

// MessageService creates, lists and edits messages.
type MessageService struct {
	chats   ChatStore
	msgs    MessageStore
	bc      Broadcaster
	replies ReplyScheduler
	now     func() time.Time
}

// NewMessageService wires a MessageService. replies may be nil to disable
// auto-replies.
func NewMessageService(chats ChatStore, msgs MessageStore, bc Broadcaster, replies ReplyScheduler) *MessageService {
	return &MessageService{chats: chats, msgs: msgs, bc: bc, replies: replies, now: time.Now}
}

// ListMessages returns the chat's messages oldest first.
func (s *MessageService) ListMessages(ctx context.Context, chatID string, userID bson.ObjectID) ([]*data.Message, error) {
	cid, err := parseID(chatID, "Chat")
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, cid, userID); err != nil {
		return nil, err
	}

	msgs, err := s.msgs.ListByChat(ctx, cid)
	if err != nil {
		return nil, internal("list messages", err)
	}
	return msgs, nil
}

// SendMessage stores a user message, pushes it to the chat room and schedules
// the auto-reply. The returned message is what the HTTP caller receives.
func (s *MessageService) SendMessage(ctx context.Context, chatID string, userID bson.ObjectID, content string) (*data.Message, error) {
	text, ok := normalize.Text(content)
	if !ok {
		return nil, apperr.Invalid("Message content is required")
	}
	cid, err := parseID(chatID, "Chat")
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, cid, userID); err != nil {
		return nil, err
	}

	now := s.now()
	msg, err := s.msgs.SaveMessage(ctx, &data.Message{
		ChatID:    cid,
		Sender:    data.SenderUser,
		Content:   text,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, internal("save message", err)
	}
	if err := s.chats.AppendMessages(ctx, cid, msg.ID); err != nil {
		return nil, internal("append message to chat", err)
	}

	if s.bc != nil {
		s.bc.Broadcast(cid.Hex(), EventNewMessage, msg)
	}
	if s.replies != nil {
		s.replies.Schedule(cid)
	}
	return msg, nil
}

// EditMessage replaces the content of a user message.
func (s *MessageService) EditMessage(ctx context.Context, messageID string, userID bson.ObjectID, content string) (*data.Message, error) {
	text, ok := normalize.Text(content)
	if !ok {
		return nil, apperr.Invalid("Message content is required")
	}
	mid, err := parseID(messageID, "Message")
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.GetMessage(ctx, mid)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFoundf("Message not found")
		}
		return nil, internal("get message", err)
	}
	if err := s.checkOwner(ctx, msg.ChatID, userID); err != nil {
		return nil, err
	}
	if !msg.Editable() {
		return nil, apperr.New(apperr.Forbidden, "Can only edit user messages")
	}

	updated, err := s.msgs.UpdateContent(ctx, mid, text, s.now())
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFoundf("Message not found")
		}
		return nil, internal("update message", err)
	}

	if s.bc != nil {
		s.bc.Broadcast(updated.ChatID.Hex(), EventMessageUpdated, updated)
	}
	return updated, nil
}

func (s *MessageService) checkOwner(ctx context.Context, chatID, userID bson.ObjectID) error {
	if _, err := s.chats.GetChatForUser(ctx, chatID, userID); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperr.NotFoundf("Chat not found")
		}
		return internal("get chat", err)
	}
	return nil
}
