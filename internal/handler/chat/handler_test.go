package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/middleware"
	"github.com/zhouzirui/dadmind/backend/internal/model/user"
	chatservice "github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/service/document"
	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Registry, *conversation.Pipeline) {
	t.Helper()
	registry := chatservice.NewRegistry(storage.NewMemory())
	pipeline := conversation.New(nil)
	ingester, err := document.NewIngester(context.Background(), 100)
	if err != nil {
		t.Fatalf("NewIngester err: %v", err)
	}

	handler := New(registry, pipeline, ingester, 1<<20, zerolog.Nop())
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, registry, pipeline
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeList(t *testing.T, resp *httptest.ResponseRecorder) sessionList {
	t.Helper()
	var list sessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return list
}

func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListCreatesWelcomeSession(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, httptest.NewRequest(http.MethodGet, "/chat/sessions", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	list := decodeList(t, resp)
	if len(list.Sessions) != 1 || list.ActiveID != list.Sessions[0].ID {
		t.Fatalf("expected one active session, got %+v", list)
	}
	if len(list.Sessions[0].Messages) != 1 {
		t.Fatalf("expected welcome message, got %d messages", len(list.Sessions[0].Messages))
	}
}

type unreadableKV struct{ storage.KV }

func (unreadableKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("redis: connection refused")
}

func TestListReportsOfflineStorage(t *testing.T) {
	backing := storage.NewMemory()
	if err := backing.Set(context.Background(), "dadmind:guest:chatSessions", `[{"id":"kept"}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	registry := chatservice.NewRegistry(unreadableKV{KV: backing})
	ingester, err := document.NewIngester(context.Background(), 100)
	if err != nil {
		t.Fatalf("NewIngester err: %v", err)
	}
	r := chi.NewRouter()
	New(registry, conversation.New(nil), ingester, 1<<20, zerolog.Nop()).RegisterRoutes(r)

	list := decodeList(t, do(r, httptest.NewRequest(http.MethodGet, "/chat/sessions", nil)))
	if !list.Offline || len(list.Sessions) != 1 {
		t.Fatalf("expected one offline session, got %+v", list)
	}
	do(r, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))

	raw, _, _ := backing.Get(context.Background(), "dadmind:guest:chatSessions")
	if raw != `[{"id":"kept"}]` {
		t.Fatalf("stored sessions were overwritten: %s", raw)
	}
}

func TestCreateAndDeleteSession(t *testing.T) {
	r, _, _ := setupRouter(t)
	first := decodeList(t, do(r, httptest.NewRequest(http.MethodGet, "/chat/sessions", nil))).ActiveID

	resp := do(r, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var created sessionView
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = do(r, httptest.NewRequest(http.MethodDelete, "/chat/sessions/"+created.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	list := decodeList(t, resp)
	if list.ActiveID != first || len(list.Sessions) != 1 {
		t.Fatalf("expected %s to be promoted, got %+v", first, list)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, httptest.NewRequest(http.MethodGet, "/chat/sessions/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	resp = do(r, httptest.NewRequest(http.MethodDelete, "/chat/sessions/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	r, registry, _ := setupRouter(t)
	guest := registry.Store(context.Background(), user.GuestID).ActiveID()

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+guest, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user.User{ID: "u-1"}))
	if resp := do(r, req); resp.Code != http.StatusNotFound {
		t.Fatalf("expected another owner's session to be hidden, got %d", resp.Code)
	}
}

func TestAttachDocument(t *testing.T) {
	r, registry, pipeline := setupRouter(t)
	id := registry.Store(context.Background(), user.GuestID).ActiveID()

	resp := do(r, uploadRequest(t, "/chat/sessions/"+id+"/attachment", "notes.txt", strings.Repeat("a", 150)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var out attachResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Document.Truncated || out.Document.Chars != 100 {
		t.Fatalf("expected truncation to 100 chars, got %+v", out.Document)
	}
	// 上传提示加一条截断提示
	if len(out.Notices) != 2 || !out.Notices[1].System {
		t.Fatalf("expected upload and truncation notices, got %+v", out.Notices)
	}

	attached, ok := pipeline.Attachment(id)
	if !ok || attached.FileName != "notes.txt" || len(attached.Content) != 100 {
		t.Fatalf("expected attachment to be bound, got %+v", attached)
	}

	resp = do(r, httptest.NewRequest(http.MethodDelete, "/chat/sessions/"+id+"/attachment", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if _, ok := pipeline.Attachment(id); ok {
		t.Fatal("expected attachment to be removed")
	}
}

func TestAttachRejectsUnsupportedType(t *testing.T) {
	r, registry, _ := setupRouter(t)
	store := registry.Store(context.Background(), user.GuestID)
	id := store.ActiveID()

	resp := do(r, uploadRequest(t, "/chat/sessions/"+id+"/attachment", "photo.png", "x"))
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
	session, _ := store.Session(context.Background(), id)
	if len(session.Messages) != 1 {
		t.Fatalf("expected session to be untouched, got %d messages", len(session.Messages))
	}
}
