package expert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/model/chat"
	"github.com/zhouzirui/dadmind/backend/internal/model/expert"
	expertservice "github.com/zhouzirui/dadmind/backend/internal/service/expert"
)

type received struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := expertservice.NewService(expert.NewMemoryStore(expert.Seed()), 10*time.Millisecond)
	r := chi.NewRouter()
	New(svc, zerolog.Nop()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestListExperts(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/experts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Experts []expert.Expert `json:"experts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Experts) != 1 || body.Experts[0].ID != "expert1" {
		t.Fatalf("unexpected experts %+v", body.Experts)
	}
}

func TestWebSocketConversation(t *testing.T) {
	srv := newServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/experts/expert1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readMessage(t, conn)
	if first.Type != "conversation" || first.ConversationID == "" {
		t.Fatalf("unexpected first message %+v", first)
	}

	if err := conn.WriteJSON(inboundMessage{Type: "message", Text: "Xin chào"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var senders []chat.Sender
	for len(senders) < 2 {
		msg := readMessage(t, conn)
		if msg.Type != "message" {
			t.Fatalf("unexpected message type %q", msg.Type)
		}
		var m chat.Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		senders = append(senders, m.Sender)
	}
	if senders[0] != chat.SenderUser || senders[1] != chat.SenderExpert {
		t.Fatalf("unexpected senders %v", senders)
	}

	if err := conn.WriteJSON(inboundMessage{Type: "message", Text: " "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for empty text, got %q", msg.Type)
	}
}

func TestWebSocketUnknownExpert(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/experts/nobody/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
