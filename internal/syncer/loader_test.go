package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
	"github.com/tbaldin/wirechat/internal/chat"
	"github.com/tbaldin/wirechat/internal/rest"
)

func newTestLoader(t *testing.T, handler http.HandlerFunc) (*Loader, *chat.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := chat.NewStore(bus.New(), zap.NewNop(), 5*time.Second)
	store.SetLocalUser(1)
	rc := rest.NewClient(srv.URL, nil, zap.NewNop())
	return NewLoader(rc, store, zap.NewNop()), store
}

func TestOfflineLoadIngestsAndAcks(t *testing.T) {
	var acked []int64
	l, store := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/messages/offline":
			w.Write([]byte(`{"code":200,"message":"success","data":[
				{"id":5,"fromUserId":2,"toUserId":1,"content":"while you were out","createTime":1000},
				{"id":6,"fromUserId":2,"toUserId":1,"content":"still here","createTime":2000}
			]}`))
		case "/messages/offline/mark-read":
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &acked)
			w.Write([]byte(`{"code":200,"message":"success","data":null}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	if err := l.LoadOfflineMessages(context.Background()); err != nil {
		t.Fatalf("offline load: %v", err)
	}
	msgs := store.Messages(chat.PrivateConversationID(1, 2))
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if len(acked) != 2 || acked[0] != 5 || acked[1] != 6 {
		t.Fatalf("acked = %v", acked)
	}
	// the thread was never active, so both count as unread
	if got := store.SortedConversations()[0].UnreadCount; got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
}

func TestOfflineLoadEmptySkipsAck(t *testing.T) {
	var ackCalled bool
	l, _ := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/messages/offline/mark-read" {
			ackCalled = true
		}
		w.Write([]byte(`{"code":200,"message":"success","data":[]}`))
	})

	if err := l.LoadOfflineMessages(context.Background()); err != nil {
		t.Fatalf("offline load: %v", err)
	}
	if ackCalled {
		t.Fatal("no ack expected for an empty batch")
	}
}

func TestHistoryBackfillKeepsUnreadUntouched(t *testing.T) {
	l, store := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"message":"success","data":[
			{"id":1,"fromUserId":2,"toUserId":1,"content":"old","createTime":1000},
			{"id":2,"fromUserId":1,"toUserId":2,"content":"mine","createTime":2000}
		]}`))
	})

	if err := l.LoadChatHistory(context.Background(), 2); err != nil {
		t.Fatalf("history: %v", err)
	}
	convID := chat.PrivateConversationID(1, 2)
	msgs := store.Messages(convID)
	if len(msgs) != 2 || msgs[0].ID != "1" || msgs[1].ID != "2" {
		t.Fatalf("history not in order: %+v", msgs)
	}
	if got := store.SortedConversations()[0].UnreadCount; got != 0 {
		t.Fatalf("backfill bumped unread to %d", got)
	}
}

func TestGroupBackfill(t *testing.T) {
	l, store := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("groupId"); got != "9" {
			t.Errorf("groupId = %q", got)
		}
		w.Write([]byte(`{"code":200,"message":"success","data":[
			{"id":3,"fromUserId":2,"groupId":9,"content":"group history","createTime":1000}
		]}`))
	})

	if err := l.LoadGroupMessages(context.Background(), 9); err != nil {
		t.Fatalf("group history: %v", err)
	}
	if got := len(store.Messages(chat.GroupConversationID(9))); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}
}

func TestDirectoriesLoaded(t *testing.T) {
	l, store := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contacts":
			w.Write([]byte(`{"code":200,"message":"success","data":[
				{"id":2,"username":"bob","nickname":"Bob","status":"online"}
			]}`))
		case "/group/user-groups":
			w.Write([]byte(`{"code":200,"message":"success","data":[
				{"id":9,"name":"team","ownerId":2,"memberIds":[1,2]}
			]}`))
		default:
			w.Write([]byte(`{"code":200,"message":"success","data":[]}`))
		}
	})

	if err := l.LoadContacts(context.Background()); err != nil {
		t.Fatalf("contacts: %v", err)
	}
	if err := l.LoadUserGroups(context.Background()); err != nil {
		t.Fatalf("groups: %v", err)
	}

	contacts := store.Contacts()
	if len(contacts) != 1 || contacts[0].Username != "bob" || !contacts[0].Online {
		t.Fatalf("contacts = %+v", contacts)
	}
	groups := store.Groups()
	if len(groups) != 1 || groups[0].Name != "team" {
		t.Fatalf("groups = %+v", groups)
	}
	// group directory seeds an empty conversation shell
	if got := len(store.Messages(chat.GroupConversationID(9))); got != 0 {
		t.Fatalf("unexpected messages in fresh group: %d", got)
	}
}
