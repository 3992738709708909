package data

import (
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned on a unique index violation.
	ErrDuplicate = errors.New("duplicate key")
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool { return s == SenderUser || s == SenderSystem }

// EditThreshold is how far updated_at must trail created_at before a message
// counts as edited. The creation write sets both nearly simultaneously.
const EditThreshold = time.Second

// User maps to users collection (id, email, password hash, timestamps)
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password,omitempty" json:"-"`
	GoogleID  string        `bson:"google_id,omitempty" json:"googleId,omitempty"`
	Name      string        `bson:"name,omitempty" json:"name,omitempty"`
	Avatar    string        `bson:"avatar,omitempty" json:"avatar,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Chat maps to chats collection. MessageIDs only ever grows.
type Chat struct {
	ID         bson.ObjectID   `bson:"_id,omitempty" json:"_id"`
	UserID     bson.ObjectID   `bson:"user_id" json:"userId"`
	FirstName  string          `bson:"first_name" json:"firstName"`
	LastName   string          `bson:"last_name" json:"lastName"`
	MessageIDs []bson.ObjectID `bson:"messages" json:"-"`
	CreatedAt  time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `bson:"updated_at" json:"updatedAt"`
}

// DisplayName is "first last".
func (c *Chat) DisplayName() string { return c.FirstName + " " + c.LastName }

// ChatWithMessages is the API shape of a chat: the chat document with its
// messages resolved instead of the raw id list.
type ChatWithMessages struct {
	Chat
	FullName string     `json:"fullName"`
	Messages []*Message `json:"messages"`
}

// NewChatWithMessages attaches msgs to c. A nil slice is rendered as [].
func NewChatWithMessages(c *Chat, msgs []*Message) *ChatWithMessages {
	if msgs == nil {
		msgs = []*Message{}
	}
	return &ChatWithMessages{Chat: *c, FullName: c.DisplayName(), Messages: msgs}
}

// Message maps to messages collection.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	ChatID    bson.ObjectID `bson:"chat_id" json:"chatId"`
	Sender    Sender        `bson:"sender" json:"sender"`
	Content   string        `bson:"content" json:"content"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Edited reports whether the message was changed after it was created.
func (m *Message) Edited() bool {
	return m.UpdatedAt.Sub(m.CreatedAt) > EditThreshold
}

// Editable reports whether the message may be edited at all.
func (m *Message) Editable() bool { return m.Sender == SenderUser }

// MarshalJSON adds the derived "edited" flag.
func (m *Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		*plain
		Edited bool `json:"edited"`
	}{plain: (*plain)(m), Edited: m.Edited()})
}
