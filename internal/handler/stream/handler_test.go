package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/model/user"
	chatservice "github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

type fragmentCompleter []string

func (f fragmentCompleter) StreamingEnabled() bool { return true }

func (f fragmentCompleter) GenerateReply(context.Context, []*schema.Message, string) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(f, ""), nil), nil
}

func (f fragmentCompleter) StreamReply(context.Context, []*schema.Message, string) (*schema.StreamReader[*schema.Message], error) {
	chunks := make([]*schema.Message, 0, len(f))
	for _, frag := range f {
		chunks = append(chunks, schema.AssistantMessage(frag, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func setup(completer conversation.Completer) (*chi.Mux, *chatservice.Registry) {
	registry := chatservice.NewRegistry(storage.NewMemory())
	h := New(registry, conversation.New(completer), zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, registry
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("bad event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamRelaysReply(t *testing.T) {
	r, registry := setup(fragmentCompleter{"Hi", " there"})
	store := registry.Store(context.Background(), user.GuestID)
	id := store.ActiveID()

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+id+"/stream?message="+url.QueryEscape("Hello"), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	last := events[len(events)-1]
	if last.Event != "message" || !last.Finished || last.Message == nil || last.Message.Text != "Hi there" {
		t.Fatalf("unexpected final event %+v", last)
	}

	session, _ := store.Session(context.Background(), id)
	if got := session.Messages[len(session.Messages)-1].Text; got != "Hi there" {
		t.Fatalf("expected stored reply, got %q", got)
	}
}

func TestStreamErrors(t *testing.T) {
	cases := []struct {
		name      string
		completer conversation.Completer
		message   string
		session   string
		status    int
	}{
		{"empty message", fragmentCompleter{"x"}, "", "", http.StatusBadRequest},
		{"not configured", nil, "Hello", "", http.StatusServiceUnavailable},
		{"unknown session", fragmentCompleter{"x"}, "Hello", "missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, registry := setup(tc.completer)
			id := tc.session
			if id == "" {
				id = registry.Store(context.Background(), user.GuestID).ActiveID()
			}

			req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+id+"/stream?message="+url.QueryEscape(tc.message), nil)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
		})
	}
}
