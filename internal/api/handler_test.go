//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cfpd-planning/intake-assistant/internal/assistant"
	"github.com/cfpd-planning/intake-assistant/internal/config"
	"github.com/cfpd-planning/intake-assistant/internal/domain"
	"github.com/cfpd-planning/intake-assistant/internal/identity"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

// memRepo is an in-memory Repository for handler tests.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]*domain.Session)}
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func (m *memRepo) GetSession(_ context.Context, userID, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, nil
	}
	cp := *sess
	cp.Messages = append([]domain.Message(nil), sess.Messages...)
	return &cp, nil
}

func (m *memRepo) SaveSession(_ context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	cp.Messages = append([]domain.Message(nil), sess.Messages...)
	m.sessions[sessionKey(sess.UserID, sess.SessionID)] = &cp
	return nil
}

func (m *memRepo) DeleteSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(userID, sessionID))
	return nil
}

func (m *memRepo) CleanupExpiredSessions(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

// fakeCompleter returns canned replies in order.
type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, _ []domain.Message, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	to, subject, body string
}

func (r *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{to, subject, body})
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:          "8080",
		DBPath:        "test.db",
		SessionSecret: "secret",
		SessionTTL:    12 * time.Hour,
		OpenAI:        config.OpenAIConfig{APIKey: "key", Model: "gpt-4o-mini"},
		Mail: config.MailConfig{
			Host:              "smtp.example.com",
			Port:              465,
			From:              "noreply@example.com",
			UseSSL:            true,
			PlanningRecipient: "planning@example.com",
		},
		RateLimit: config.RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute},
	}
}

func newTestHandler(llm assistant.Completer, repo *memRepo, mail *recordingMailer) *Handler {
	ctrl := assistant.NewController(llm, nil)
	return NewHandler(repo, ctrl, mail, testConfig())
}

// serveWithIdentity runs the handler behind the identity middleware so
// context values are populated the same way as in production.
func serveWithIdentity(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	identity.Middleware("secret", true)(h).ServeHTTP(w, req)
	return w
}

func TestHandleChat(t *testing.T) {
	repo := newMemRepo()
	mail := &recordingMailer{}
	llm := &fakeCompleter{replies: []string{"What timeframe?"}}
	h := newTestHandler(llm, repo, mail)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"I need data"}`))
	w := serveWithIdentity(h.HandleChat, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "What timeframe?" {
		t.Errorf("reply = %q", resp.Reply)
	}

	if len(repo.sessions) != 1 {
		t.Errorf("expected 1 stored session, got %d", len(repo.sessions))
	}
}

func TestHandleChatBlankMessage(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeCompleter{replies: []string{"should not be called"}}
	h := newTestHandler(llm, repo, &recordingMailer{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"   "}`))
	w := serveWithIdentity(h.HandleChat, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != assistant.EmptyMessageReply {
		t.Errorf("reply = %q, want %q", resp.Reply, assistant.EmptyMessageReply)
	}
	if llm.calls != 0 {
		t.Errorf("blank input should not reach the model, got %d calls", llm.calls)
	}
	if len(repo.sessions) != 0 {
		t.Errorf("blank input should not create a session")
	}
}

func TestHandleChatInvalidBody(t *testing.T) {
	h := newTestHandler(&fakeCompleter{replies: []string{"x"}}, newMemRepo(), &recordingMailer{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("not json"))
	w := serveWithIdentity(h.HandleChat, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	repo := newMemRepo()
	llm := &fakeCompleter{replies: []string{"ok"}}
	h := newTestHandler(llm, repo, &recordingMailer{})
	h.rateLimiter = NewRateLimiter(1, time.Minute)

	// Pin the anonymous cookie so both requests share one identity.
	first := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"one"}`))
	w1 := serveWithIdentity(h.HandleChat, first)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w1.Code)
	}
	cookie := w1.Result().Cookies()[0]

	second := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"two"}`))
	second.AddCookie(cookie)
	w2 := serveWithIdentity(h.HandleChat, second)
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w2.Code)
	}
}

func TestHandleReset(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(&fakeCompleter{replies: []string{"x"}}, repo, &recordingMailer{})

	// Seed a session then reset it with the same identity cookie.
	chatReq := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	w1 := serveWithIdentity(h.HandleChat, chatReq)
	if len(repo.sessions) != 1 {
		t.Fatalf("expected seeded session")
	}
	cookie := w1.Result().Cookies()[0]

	resetReq := httptest.NewRequest(http.MethodPost, "/api/reset", nil)
	resetReq.AddCookie(cookie)
	w2 := serveWithIdentity(h.HandleReset, resetReq)

	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d", w2.Code)
	}
	var resp chatResponse
	if err := json.NewDecoder(w2.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != assistant.ResetReply {
		t.Errorf("reply = %q, want %q", resp.Reply, assistant.ResetReply)
	}
	if len(repo.sessions) != 0 {
		t.Errorf("session should be deleted after reset")
	}
}

func TestHandleSubmit(t *testing.T) {
	repo := newMemRepo()
	mail := &recordingMailer{}
	llm := &fakeCompleter{replies: []string{
		"<final>Provide Station 6 response times for 2024.</final>" +
			"<subject>Station 6 Response Times</subject>" +
			"<body>Response times for Station 6, 2024.</body>",
	}}
	h := newTestHandler(llm, repo, mail)

	form := strings.NewReader("email=requester%40example.com")
	req := httptest.NewRequest(http.MethodPost, "/api/submit", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serveWithIdentity(h.HandleSubmit, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body = %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/confirmation" {
		t.Errorf("redirect location = %q", loc)
	}

	if len(mail.sent) != 2 {
		t.Fatalf("expected planning + acknowledgment emails, got %d", len(mail.sent))
	}

	planning := mail.sent[0]
	if planning.to != "planning@example.com" {
		t.Errorf("planning recipient = %q", planning.to)
	}
	if planning.subject != "Station 6 Response Times" {
		t.Errorf("planning subject = %q", planning.subject)
	}
	if !strings.Contains(planning.body, "Submitted by: requester@example.com") {
		t.Errorf("planning body missing requester line: %q", planning.body)
	}

	ack := mail.sent[1]
	if ack.to != "requester@example.com" {
		t.Errorf("ack recipient = %q", ack.to)
	}
	if ack.subject != "Your Request Was Submitted" {
		t.Errorf("ack subject = %q", ack.subject)
	}

	if len(repo.sessions) != 0 {
		t.Errorf("session should be cleared after submission")
	}
}

func TestHandleSubmitWithoutEmail(t *testing.T) {
	repo := newMemRepo()
	mail := &recordingMailer{}
	llm := &fakeCompleter{replies: []string{
		"<final>Provide the report.</final><subject>Report</subject><body>Body.</body>",
	}}
	h := newTestHandler(llm, repo, mail)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serveWithIdentity(h.HandleSubmit, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected only the planning email, got %d", len(mail.sent))
	}
	if !strings.Contains(mail.sent[0].body, "Submitted by: Unknown") {
		t.Errorf("planning body missing Unknown requester line: %q", mail.sent[0].body)
	}
}
