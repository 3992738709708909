package main

import (
	"context"
	"sync"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/auth"
	"github.com/PaulBabatuyi/quotechat/internal/data"
	"github.com/PaulBabatuyi/quotechat/internal/normalize"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUsers provides the subset of UsersStore used by the auth handlers.
type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*data.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*data.User{}} }

func (f *fakeUsers) CreateUser(ctx context.Context, email, hashedPassword string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = normalize.Email(email)
	if _, ok := f.byEmail[email]; ok {
		return nil, data.ErrDuplicate
	}
	u := &data.User{ID: bson.NewObjectID(), Email: email, Password: hashedPassword, CreatedAt: time.Now()}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[normalize.Email(email)]
	if !ok {
		return nil, data.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, data.ErrNotFound
}

// fakeChats records calls and returns canned results.
type fakeChats struct {
	mu     sync.Mutex
	err    error
	seeded []bson.ObjectID

	updateFirst, updateLast *string
	deleted                 []string
}

func (f *fakeChats) ListChats(ctx context.Context, userID bson.ObjectID) ([]*data.ChatWithMessages, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &data.Chat{ID: bson.NewObjectID(), UserID: userID, FirstName: "Ivan", LastName: "Petrov"}
	return []*data.ChatWithMessages{data.NewChatWithMessages(c, nil)}, nil
}

func (f *fakeChats) CreateChat(ctx context.Context, userID bson.ObjectID, firstName, lastName string) (*data.ChatWithMessages, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &data.Chat{ID: bson.NewObjectID(), UserID: userID, FirstName: firstName, LastName: lastName}
	return data.NewChatWithMessages(c, nil), nil
}

func (f *fakeChats) UpdateChat(ctx context.Context, chatID string, userID bson.ObjectID, firstName, lastName *string) (*data.ChatWithMessages, error) {
	f.mu.Lock()
	f.updateFirst, f.updateLast = firstName, lastName
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &data.Chat{ID: bson.NewObjectID(), UserID: userID, FirstName: "Ivan", LastName: "Petrov"}
	if firstName != nil {
		c.FirstName = *firstName
	}
	if lastName != nil {
		c.LastName = *lastName
	}
	return data.NewChatWithMessages(c, nil), nil
}

func (f *fakeChats) DeleteChat(ctx context.Context, chatID string, userID bson.ObjectID) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chatID)
	return nil
}

func (f *fakeChats) EnsureSeeded(ctx context.Context, userID bson.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = append(f.seeded, userID)
	return true, nil
}

// fakeMsgs stands in for MessageService. SendMessage broadcasts through hub
// like the real service does.
type fakeMsgs struct {
	hub *RoomHub
	err error

	mu   sync.Mutex
	sent []string
}

func (f *fakeMsgs) ListMessages(ctx context.Context, chatID string, userID bson.ObjectID) ([]*data.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*data.Message{}, nil
}

func (f *fakeMsgs) SendMessage(ctx context.Context, chatID string, userID bson.ObjectID, content string) (*data.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()

	now := time.Now()
	msg := &data.Message{ID: bson.NewObjectID(), Sender: data.SenderUser, Content: content, CreatedAt: now, UpdatedAt: now}
	if cid, err := bson.ObjectIDFromHex(chatID); err == nil {
		msg.ChatID = cid
	}
	if f.hub != nil {
		f.hub.Broadcast(chatID, "new_message", msg)
	}
	return msg, nil
}

func (f *fakeMsgs) EditMessage(ctx context.Context, messageID string, userID bson.ObjectID, content string) (*data.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &data.Message{ID: bson.NewObjectID(), Sender: data.SenderUser, Content: content, CreatedAt: now.Add(-time.Minute), UpdatedAt: now}, nil
}

type testEnv struct {
	srv   *Server
	users *fakeUsers
	chats *fakeChats
	msgs  *fakeMsgs
	hub   *RoomHub
	jwt   *auth.JWTManager
}

func newTestEnv() *testEnv {
	hub := NewRoomHub()
	env := &testEnv{
		users: newFakeUsers(),
		chats: &fakeChats{},
		msgs:  &fakeMsgs{hub: hub},
		hub:   hub,
		jwt:   auth.NewJWTManager("test-secret", time.Hour),
	}
	env.srv = newServer(env.users, env.chats, env.msgs, env.jwt, hub, nil, []string{"http://localhost:5173"})
	return env
}

// token issues a token for a fresh user id.
func (e *testEnv) token() (string, bson.ObjectID) {
	id := bson.NewObjectID()
	tok, _, err := e.jwt.GenerateToken(id, "tester@example.com")
	if err != nil {
		panic(err)
	}
	return tok, id
}
