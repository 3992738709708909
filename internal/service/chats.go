package service

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/apperr"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/normalize"
	"github.com/PaulBabatuyi/quotechat/internal/seed"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RecentMessagesPerChat is how many messages ListChats attaches to each chat.
const RecentMessagesPerChat = 50

// ChatService manages a user's chats.
type ChatService struct {
	chats    ChatStore
	msgs     MessageStore
	defaults []seed.Chat
	now      func() time.Time

	// seedLocks serializes seeding per user; users hash onto a fixed stripe
	seedLocks [seedLockStripes]sync.Mutex
}

const seedLockStripes = 64

// NewChatService returns a ChatService that seeds new users with defaults.
func NewChatService(chats ChatStore, msgs MessageStore, defaults []seed.Chat) *ChatService {
	return &ChatService{chats: chats, msgs: msgs, defaults: defaults, now: time.Now}
}

// ListChats seeds the user if they have no chats, then returns all their
// chats newest first, each with its most recent messages in ascending order.
func (s *ChatService) ListChats(ctx context.Context, userID bson.ObjectID) ([]*data.ChatWithMessages, error) {
	if _, err := s.EnsureSeeded(ctx, userID); err != nil {
		return nil, err
	}

	chats, err := s.chats.ListChatsByUser(ctx, userID)
	if err != nil {
		return nil, internal("list chats", err)
	}

	out := make([]*data.ChatWithMessages, 0, len(chats))
	for _, c := range chats {
		msgs, err := s.msgs.RecentByChat(ctx, c.ID, RecentMessagesPerChat)
		if err != nil {
			return nil, internal("recent messages", err)
		}
		out = append(out, data.NewChatWithMessages(c, msgs))
	}
	return out, nil
}

// CreateChat adds a contact for userID.
func (s *ChatService) CreateChat(ctx context.Context, userID bson.ObjectID, firstName, lastName string) (*data.ChatWithMessages, error) {
	first, okFirst := normalize.Text(firstName)
	last, okLast := normalize.Text(lastName)
	if !okFirst || !okLast {
		return nil, apperr.Invalid("First name and last name are required")
	}

	chat, err := s.chats.CreateChat(ctx, &data.Chat{UserID: userID, FirstName: first, LastName: last})
	if err != nil {
		return nil, internal("create chat", err)
	}
	return data.NewChatWithMessages(chat, nil), nil
}

// UpdateChat renames a chat. Nil names are left unchanged.
func (s *ChatService) UpdateChat(ctx context.Context, chatID string, userID bson.ObjectID, firstName, lastName *string) (*data.ChatWithMessages, error) {
	cid, err := parseID(chatID, "Chat")
	if err != nil {
		return nil, err
	}

	// ownership first so a foreign chat is 404 regardless of the payload
	if _, err := s.ownedChat(ctx, cid, userID); err != nil {
		return nil, err
	}

	first, ok := normalize.OptionalText(firstName)
	if !ok {
		return nil, apperr.Invalid("First name cannot be empty")
	}
	last, ok := normalize.OptionalText(lastName)
	if !ok {
		return nil, apperr.Invalid("Last name cannot be empty")
	}

	chat, err := s.chats.UpdateChatNames(ctx, cid, userID, first, last)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFoundf("Chat not found")
		}
		return nil, internal("update chat", err)
	}

	msgs, err := s.msgs.RecentByChat(ctx, cid, RecentMessagesPerChat)
	if err != nil {
		return nil, internal("recent messages", err)
	}
	return data.NewChatWithMessages(chat, msgs), nil
}

// DeleteChat removes a chat and all of its messages. Messages go first so a
// failure never leaves messages pointing at a deleted chat.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string, userID bson.ObjectID) error {
	cid, err := parseID(chatID, "Chat")
	if err != nil {
		return err
	}
	if _, err := s.ownedChat(ctx, cid, userID); err != nil {
		return err
	}

	n, err := s.msgs.DeleteByChat(ctx, cid)
	if err != nil {
		return internal("delete chat messages", err)
	}

	if err := s.chats.DeleteChat(ctx, cid, userID); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return apperr.NotFoundf("Chat not found")
		}
		return internal("delete chat", err)
	}
	log.Printf("chat %s deleted with %d messages", cid.Hex(), n)
	return nil
}

// EnsureSeeded creates the default chats when the user has none. It reports
// whether it seeded. Concurrent calls for the same user seed at most once.
func (s *ChatService) EnsureSeeded(ctx context.Context, userID bson.ObjectID) (bool, error) {
	lock := s.seedLock(userID)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.chats.CountChatsByUser(ctx, userID)
	if err != nil {
		return false, internal("count chats", err)
	}
	if n > 0 {
		return false, nil
	}

	if err := s.seed(ctx, userID); err != nil {
		return false, internal("seed chats", err)
	}
	log.Printf("seeded %d default chats for user %s", len(s.defaults), userID.Hex())
	return true, nil
}

// seedLock returns the stripe guarding userID.
func (s *ChatService) seedLock(userID bson.ObjectID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return &s.seedLocks[h.Sum32()%seedLockStripes]
}

func (s *ChatService) seed(ctx context.Context, userID bson.ObjectID) error {
	base := s.now()
	for i, def := range s.defaults {
		// distinct created_at values keep the newest-first listing stable
		chat, err := s.chats.CreateChat(ctx, &data.Chat{
			UserID:    userID,
			FirstName: def.FirstName,
			LastName:  def.LastName,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			return err
		}

		msgs := make([]*data.Message, 0, len(def.Messages))
		for _, m := range def.Messages {
			at := base.Add(-m.Ago)
			msgs = append(msgs, &data.Message{
				ChatID:    chat.ID,
				Sender:    data.Sender(m.Sender),
				Content:   m.Content,
				CreatedAt: at,
				UpdatedAt: at,
			})
		}
		if err := s.msgs.SaveMessages(ctx, msgs); err != nil {
			return err
		}

		ids := make([]bson.ObjectID, len(msgs))
		for j, m := range msgs {
			ids[j] = m.ID
		}
		if err := s.chats.AppendMessages(ctx, chat.ID, ids...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChatService) ownedChat(ctx context.Context, chatID, userID bson.ObjectID) (*data.Chat, error) {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperr.NotFoundf("Chat not found")
		}
		return nil, internal("get chat", err)
	}
	return chat, nil
}
