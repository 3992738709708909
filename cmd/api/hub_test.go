package main

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/PaulBabatuyi/quotechat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeSubscriber struct {
	id   string
	fail bool

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSubscriber) Send(frame []byte) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSubscriber) last(t *testing.T) (string, map[string]any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatalf("subscriber %s received nothing", f.id)
	}
	var fr struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(f.frames[len(f.frames)-1], &fr); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return fr.Event, fr.Data
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestRoomHub_JoinAndBroadcast(t *testing.T) {
	hub := NewRoomHub()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	outsider := &fakeSubscriber{id: "c"}

	hub.Join("chat1", a)
	hub.Join("chat1", b)
	hub.Join("chat1", b) // joining twice is a no-op
	hub.Join("chat2", outsider)

	if n := hub.Members("chat1"); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}

	msg := &data.Message{ID: bson.NewObjectID(), Sender: data.SenderUser, Content: "hello"}
	hub.Broadcast("chat1", "new_message", msg)

	event, payload := a.last(t)
	if event != "new_message" || payload["content"] != "hello" || payload["_id"] != msg.ID.Hex() {
		t.Fatalf("unexpected frame: %s %v", event, payload)
	}
	if b.count() != 1 {
		t.Fatalf("b should receive exactly once, got %d", b.count())
	}
	if outsider.count() != 0 {
		t.Fatalf("member of another room received the event")
	}

	hub.Leave("chat1", "a")
	hub.Broadcast("chat1", "message_updated", msg)
	if a.count() != 1 {
		t.Fatalf("a should not receive after leaving")
	}
	if event, _ := b.last(t); event != "message_updated" {
		t.Fatalf("b got %s", event)
	}
}

func TestRoomHub_BroadcastToEmptyRoom(t *testing.T) {
	hub := NewRoomHub()
	if n := hub.BroadcastFrame("nobody", []byte(`{}`)); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestRoomHub_DropsFailedConnections(t *testing.T) {
	hub := NewRoomHub()
	ok := &fakeSubscriber{id: "ok"}
	bad := &fakeSubscriber{id: "bad", fail: true}

	hub.Join("r1", ok)
	hub.Join("r1", bad)
	hub.Join("r2", bad)

	if n := hub.BroadcastFrame("r1", []byte(`{"event":"x"}`)); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	// the failing connection is removed from every room
	if hub.Members("r1") != 1 || hub.Members("r2") != 0 {
		t.Fatalf("broken connection not pruned: r1=%d r2=%d", hub.Members("r1"), hub.Members("r2"))
	}
	if !bad.isClosed() {
		t.Fatalf("broken connection should be closed so the client reconnects")
	}
	if ok.isClosed() {
		t.Fatalf("healthy connection was closed")
	}
}

func TestRoomHub_LeaveAll(t *testing.T) {
	hub := NewRoomHub()
	s := &fakeSubscriber{id: "s"}
	hub.Join("r1", s)
	hub.Join("r2", s)

	if n := hub.LeaveAll("s"); n != 2 {
		t.Fatalf("expected to leave 2 rooms, got %d", n)
	}
	if hub.Members("r1") != 0 || hub.Members("r2") != 0 {
		t.Fatalf("rooms not emptied")
	}
}
