package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultReplyDelay is how long after a user message the bot answers.
const DefaultReplyDelay = 3 * time.Second

// replyTimeout bounds one auto-reply (quote fetch + two writes).
const replyTimeout = 15 * time.Second

// QuoteSource returns the text of an auto-reply. It must not fail.
type QuoteSource interface {
	Quote(ctx context.Context) string
}

// TaskKey identifies one scheduled auto-reply: the chat, the time it was
// accepted and a sequence number to tell apart sends in the same instant.
type TaskKey struct {
	ChatID string
	At     time.Time
	Seq    uint64
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s@%s#%d", k.ChatID, k.At.Format(time.RFC3339Nano), k.Seq)
}

// AutoReplier runs the delayed system replies. Every task is kept in a
// registry until it fires so it can be cancelled, though nothing in the
// request path cancels today: a reply fires even if its chat was deleted.
type AutoReplier struct {
	delay  time.Duration
	quotes QuoteSource
	chats  ChatStore
	msgs   MessageStore
	bc     Broadcaster
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	tasks  map[TaskKey]*time.Timer
	closed bool // set by Drain; no new tasks afterwards
	wg     sync.WaitGroup
}

// NewAutoReplier returns a scheduler firing delay after each Schedule call.
func NewAutoReplier(delay time.Duration, quotes QuoteSource, chats ChatStore, msgs MessageStore, bc Broadcaster) *AutoReplier {
	if delay <= 0 {
		delay = DefaultReplyDelay
	}
	return &AutoReplier{
		delay:  delay,
		quotes: quotes,
		chats:  chats,
		msgs:   msgs,
		bc:     bc,
		now:    time.Now,
		tasks:  make(map[TaskKey]*time.Timer),
	}
}

// Delay is the configured reply delay.
func (a *AutoReplier) Delay() time.Duration { return a.delay }

// Schedule registers a reply for chatID and returns its key. After Drain has
// started nothing is scheduled and the returned key has a zero Seq.
func (a *AutoReplier) Schedule(chatID bson.ObjectID) TaskKey {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		log.Printf("auto-reply for chat %s skipped: shutting down", chatID.Hex())
		return TaskKey{ChatID: chatID.Hex(), At: a.now()}
	}

	a.seq++
	key := TaskKey{ChatID: chatID.Hex(), At: a.now(), Seq: a.seq}

	a.wg.Add(1)
	a.tasks[key] = time.AfterFunc(a.delay, func() {
		defer a.wg.Done()
		if !a.take(key) {
			return
		}
		a.fire(key, chatID)
	})
	return key
}

// Cancel stops a pending reply. It reports false when the reply already
// fired or was never scheduled.
func (a *AutoReplier) Cancel(key TaskKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tasks[key]
	if !ok {
		return false
	}
	delete(a.tasks, key)
	if t.Stop() {
		a.wg.Done()
	}
	return true
}

// CancelChat cancels every pending reply for chatID and returns how many.
func (a *AutoReplier) CancelChat(chatID string) int {
	a.mu.Lock()
	var keys []TaskKey
	for k := range a.tasks {
		if k.ChatID == chatID {
			keys = append(keys, k)
		}
	}
	a.mu.Unlock()

	n := 0
	for _, k := range keys {
		if a.Cancel(k) {
			n++
		}
	}
	return n
}

// Pending returns the number of replies waiting to fire for chatID.
func (a *AutoReplier) Pending(chatID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for k := range a.tasks {
		if k.ChatID == chatID {
			n++
		}
	}
	return n
}

// Drain stops accepting new replies and blocks until every scheduled reply
// has fired or ctx is done.
func (a *AutoReplier) Drain(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// take removes key from the registry; false means it was cancelled meanwhile.
func (a *AutoReplier) take(key TaskKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tasks[key]; !ok {
		return false
	}
	delete(a.tasks, key)
	return true
}

// fire produces the reply. Failures are logged and never propagate.
func (a *AutoReplier) fire(key TaskKey, chatID bson.ObjectID) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("auto-reply %s panicked: %v", key, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	now := a.now()
	msg, err := a.msgs.SaveMessage(ctx, &data.Message{
		ChatID:    chatID,
		Sender:    data.SenderSystem,
		Content:   a.quotes.Quote(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		log.Printf("auto-reply %s: save failed: %v", key, err)
		return
	}
	if err := a.chats.AppendMessages(ctx, chatID, msg.ID); err != nil {
		log.Printf("auto-reply %s: append to chat failed: %v", key, err)
	}
	if a.bc != nil {
		a.bc.Broadcast(key.ChatID, EventNewMessage, msg)
	}
}
