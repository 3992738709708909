package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memStore is an in-memory ChatStore and MessageStore.
type memStore struct {
	mu    sync.Mutex
	chats map[bson.ObjectID]*data.Chat
	msgs  map[bson.ObjectID]*data.Message

	// failSave makes SaveMessage return an error
	failSave bool
	// creates counts CreateChat calls
	creates int
}

func newMemStore() *memStore {
	return &memStore{
		chats: make(map[bson.ObjectID]*data.Chat),
		msgs:  make(map[bson.ObjectID]*data.Message),
	}
}

func (m *memStore) CreateChat(ctx context.Context, c *data.Chat) (*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	cp := *c
	cp.ID = bson.NewObjectID()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.chats[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetChatForUser(ctx context.Context, chatID, userID bson.ObjectID) (*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, data.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *memStore) ListChatsByUser(ctx context.Context, userID bson.ObjectID) ([]*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*data.Chat{}
	for _, c := range m.chats {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CountChatsByUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.chats {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateChatNames(ctx context.Context, chatID, userID bson.ObjectID, firstName, lastName *string) (*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, data.ErrNotFound
	}
	if firstName != nil {
		c.FirstName = *firstName
	}
	if lastName != nil {
		c.LastName = *lastName
	}
	c.UpdatedAt = time.Now()
	out := *c
	return &out, nil
}

func (m *memStore) AppendMessages(ctx context.Context, chatID bson.ObjectID, ids ...bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[chatID]; ok {
		c.MessageIDs = append(c.MessageIDs, ids...)
	}
	return nil
}

func (m *memStore) DeleteChat(ctx context.Context, chatID, userID bson.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return data.ErrNotFound
	}
	delete(m.chats, chatID)
	return nil
}

func (m *memStore) SaveMessage(ctx context.Context, msg *data.Message) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return nil, errors.New("store unavailable")
	}
	cp := *msg
	cp.ID = bson.NewObjectID()
	m.msgs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) SaveMessages(ctx context.Context, msgs []*data.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		msg.ID = bson.NewObjectID()
		cp := *msg
		m.msgs[cp.ID] = &cp
	}
	return nil
}

func (m *memStore) GetMessage(ctx context.Context, id bson.ObjectID) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	out := *msg
	return &out, nil
}

func (m *memStore) ListByChat(ctx context.Context, chatID bson.ObjectID) ([]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*data.Message{}
	for _, msg := range m.msgs {
		if msg.ChatID == chatID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) RecentByChat(ctx context.Context, chatID bson.ObjectID, limit int64) ([]*data.Message, error) {
	all, _ := m.ListByChat(ctx, chatID)
	if int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return all, nil
}

func (m *memStore) UpdateContent(ctx context.Context, id bson.ObjectID, content string, at time.Time) (*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	msg.Content = content
	msg.UpdatedAt = at
	out := *msg
	return &out, nil
}

func (m *memStore) DeleteByChat(ctx context.Context, chatID bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, msg := range m.msgs {
		if msg.ChatID == chatID {
			delete(m.msgs, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) messageCount(chatID bson.ObjectID) int {
	msgs, _ := m.ListByChat(context.Background(), chatID)
	return len(msgs)
}

// event is one recorded broadcast.
type event struct {
	chatID string
	name   string
	msg    *data.Message
}

// recorder is a Broadcaster that keeps what it was asked to send.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Broadcast(chatID, name string, msg *data.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{chatID: chatID, name: name, msg: msg})
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

// scheduled records Schedule calls without firing anything.
type scheduled struct {
	mu    sync.Mutex
	chats []bson.ObjectID
}

func (s *scheduled) Schedule(chatID bson.ObjectID) TaskKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, chatID)
	return TaskKey{ChatID: chatID.Hex(), At: time.Now(), Seq: uint64(len(s.chats))}
}

// fixedQuote is a QuoteSource returning the same text every time.
type fixedQuote string

func (q fixedQuote) Quote(ctx context.Context) string { return string(q) }

// panicQuote is a QuoteSource that panics.
type panicQuote struct{}

func (panicQuote) Quote(ctx context.Context) string { panic("quote source exploded") }
