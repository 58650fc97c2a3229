package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/api"
	"github.com/faqhub/faqhub/internal/knowledge"
	"github.com/faqhub/faqhub/internal/resolution"
	"github.com/faqhub/faqhub/internal/retrieval"
	"github.com/faqhub/faqhub/internal/testutil"
)

// testServer wires the full handler stack against in-memory fakes.
type testServer struct {
	handler http.Handler
	store   *testutil.MemStore
	fp      *testutil.MockFingerprinter
	gen     *testutil.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := testutil.NewMemStore()
	fp := testutil.NewMockFingerprinter(8)
	gen := &testutil.MockGenerator{Response: "generated answer"}
	logger := testutil.DiscardLogger()

	ret, err := retrieval.NewService(store, fp, gen, retrieval.Config{}, logger)
	if err != nil {
		t.Fatalf("retrieval.NewService() error = %v", err)
	}
	res, err := resolution.NewService(store, fp, logger)
	if err != nil {
		t.Fatalf("resolution.NewService() error = %v", err)
	}

	srv, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Retrieval:  ret,
		Resolution: res,
		RateRPS:    1000, // effectively unlimited for handler tests
		RateBurst:  1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testServer{handler: srv.Handler(), store: store, fp: fp, gen: gen}
}

// do performs a JSON request against the test server.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	got := decode[map[string]string](t, rec)
	if got["status"] != "ok" {
		t.Errorf("GET /health body = %v", got)
	}
}

func TestReadyWithoutPool(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ready status = %d, want 200", rec.Code)
	}
}

func TestChatHit(t *testing.T) {
	ts := newTestServer(t)
	vec, _ := ts.fp.Fingerprint(context.Background(), "known question")
	if _, err := ts.store.InsertEntry(context.Background(), "known question", "stored answer", vec, knowledge.SourceAdmin); err != nil {
		t.Fatalf("InsertEntry() error = %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{
		"question": "known question",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/chat status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decode[retrieval.Answer](t, rec)
	if !got.Matched {
		t.Error("chat response Matched = false, want true")
	}
	if got.Text != "generated answer" {
		t.Errorf("chat response Text = %q", got.Text)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("pending_id")) {
		t.Errorf("hit response carries a pending_id: %s", rec.Body.String())
	}
}

func TestChatMiss(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{
		"question":   "unknown question",
		"session_id": "s9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/chat status = %d", rec.Code)
	}

	got := decode[retrieval.Answer](t, rec)
	if got.Matched {
		t.Error("chat response Matched = true on empty knowledge base")
	}
	if got.Text != retrieval.MissMessage {
		t.Errorf("chat response Text = %q, want miss message", got.Text)
	}
	if got.PendingID == uuid.Nil {
		t.Error("chat response has no pending_id on a miss")
	}
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec2.Code)
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.fp.Fail(fmt.Errorf("%w: embed backend down", knowledge.ErrUpstreamUnavailable))

	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "anything"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("upstream failure status = %d, want 502", rec.Code)
	}
}

func TestKBCRUD(t *testing.T) {
	ts := newTestServer(t)

	// Create
	rec := ts.do(t, http.MethodPost, "/api/v1/kb", map[string]string{
		"question": "What is the SLA?",
		"answer":   "99.9% uptime.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/kb status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[knowledge.Entry](t, rec)
	if created.ID == uuid.Nil {
		t.Fatal("created entry has no ID")
	}

	// Get
	rec = ts.do(t, http.MethodGet, "/api/v1/kb/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET entry status = %d", rec.Code)
	}

	// List
	rec = ts.do(t, http.MethodGet, "/api/v1/kb", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/kb status = %d", rec.Code)
	}
	list := decode[map[string][]knowledge.Entry](t, rec)
	if len(list["entries"]) != 1 {
		t.Errorf("listed %d entries, want 1", len(list["entries"]))
	}

	// Edit
	rec = ts.do(t, http.MethodPatch, "/api/v1/kb/"+created.ID.String(), map[string]string{
		"answer": "99.95% uptime.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH entry status = %d", rec.Code)
	}
	edited := decode[knowledge.Entry](t, rec)
	if edited.Answer != "99.95% uptime." {
		t.Errorf("edited answer = %q", edited.Answer)
	}

	// Delete
	rec = ts.do(t, http.MethodDelete, "/api/v1/kb/"+created.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE entry status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/v1/kb/"+created.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted entry status = %d, want 404", rec.Code)
	}
}

// TestEntryWireFormat pins the JSON field names of the admin responses:
// snake_case keys matching the chat endpoint, and no fingerprint vector.
func TestEntryWireFormat(t *testing.T) {
	ts := newTestServer(t)
	vec, _ := ts.fp.Fingerprint(context.Background(), "wire question")
	if _, err := ts.store.InsertEntry(context.Background(), "wire question", "wire answer", vec, knowledge.SourceAdmin); err != nil {
		t.Fatalf("InsertEntry() error = %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/kb", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/kb status = %d", rec.Code)
	}

	payload := decode[map[string][]map[string]any](t, rec)
	entries := payload["entries"]
	if len(entries) != 1 {
		t.Fatalf("listed %d entries, want 1", len(entries))
	}

	want := map[string]bool{
		"id": true, "question": true, "answer": true, "source": true,
		"likes": true, "review_requests": true,
		"created_at": true, "updated_at": true,
	}
	for key := range want {
		if _, ok := entries[0][key]; !ok {
			t.Errorf("entry response is missing %q", key)
		}
	}
	for key := range entries[0] {
		if !want[key] {
			t.Errorf("entry response has unexpected field %q", key)
		}
	}
}

func TestPendingWireFormat(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{
		"question":   "queued question",
		"session_id": "s1",
	})

	rec := ts.do(t, http.MethodGet, "/api/v1/pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/pending status = %d", rec.Code)
	}

	payload := decode[map[string][]map[string]any](t, rec)
	pending := payload["pending"]
	if len(pending) != 1 {
		t.Fatalf("listed %d pending questions, want 1", len(pending))
	}

	want := map[string]bool{
		"id": true, "question": true, "session_id": true,
		"status": true, "asked_at": true,
	}
	for key := range want {
		if _, ok := pending[0][key]; !ok {
			t.Errorf("pending response is missing %q", key)
		}
	}
	for key := range pending[0] {
		if !want[key] {
			t.Errorf("pending response has unexpected field %q", key)
		}
	}
}

func TestKBErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/kb/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/kb/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/kb", map[string]string{"question": "", "answer": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty entry status = %d, want 400", rec.Code)
	}
}

func TestFeedback(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/kb", map[string]string{"question": "q", "answer": "a"})
	created := decode[knowledge.Entry](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/v1/kb/"+created.ID.String()+"/feedback",
		map[string]string{"kind": "like"})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/kb/"+created.ID.String()+"/feedback",
		map[string]string{"kind": "applause"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, want 400", rec.Code)
	}
}

func TestPendingWorkflow(t *testing.T) {
	ts := newTestServer(t)

	// Create a pending question via a chat miss.
	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "open question"})
	miss := decode[retrieval.Answer](t, rec)

	// It shows up in the queue.
	rec = ts.do(t, http.MethodGet, "/api/v1/pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/pending status = %d", rec.Code)
	}
	list := decode[map[string][]knowledge.PendingQuestion](t, rec)
	if len(list["pending"]) != 1 {
		t.Fatalf("queue has %d rows, want 1", len(list["pending"]))
	}

	// Promote it.
	rec = ts.do(t, http.MethodPost, "/api/v1/pending/"+miss.PendingID.String()+"/promote",
		map[string]string{"answer": "now answered"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("promote status = %d, body %s", rec.Code, rec.Body.String())
	}
	entry := decode[knowledge.Entry](t, rec)
	if entry.Source != knowledge.SourceAdminFromPending {
		t.Errorf("promoted source = %q", entry.Source)
	}

	// Promoting again conflicts with the consumed row.
	rec = ts.do(t, http.MethodPost, "/api/v1/pending/"+miss.PendingID.String()+"/promote",
		map[string]string{"answer": "again"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second promote status = %d, want 404", rec.Code)
	}

	// Dismissing the answered row conflicts.
	rec = ts.do(t, http.MethodPost, "/api/v1/pending/"+miss.PendingID.String()+"/dismiss", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("dismiss answered status = %d, want 409", rec.Code)
	}

	// Asking the same question again now hits.
	rec = ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "open question"})
	answer := decode[retrieval.Answer](t, rec)
	if !answer.Matched {
		t.Error("question does not hit after promotion")
	}
}

func TestPendingDismiss(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "dismiss me"})
	miss := decode[retrieval.Answer](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/v1/pending/"+miss.PendingID.String()+"/dismiss", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d", rec.Code)
	}

	// Queue defaults to open questions only.
	rec = ts.do(t, http.MethodGet, "/api/v1/pending", nil)
	list := decode[map[string][]knowledge.PendingQuestion](t, rec)
	if len(list["pending"]) != 0 {
		t.Errorf("open queue has %d rows after dismissal, want 0", len(list["pending"]))
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/pending?status=all", nil)
	list = decode[map[string][]knowledge.PendingQuestion](t, rec)
	if len(list["pending"]) != 1 {
		t.Errorf("full queue has %d rows, want 1", len(list["pending"]))
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/kb", nil)
	got := rec.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRateLimit(t *testing.T) {
	store := testutil.NewMemStore()
	fp := testutil.NewMockFingerprinter(8)
	gen := &testutil.MockGenerator{}
	logger := testutil.DiscardLogger()

	ret, _ := retrieval.NewService(store, fp, gen, retrieval.Config{}, logger)
	res, _ := resolution.NewService(store, fp, logger)

	srv, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Retrieval:  ret,
		Resolution: res,
		RateRPS:    0.001,
		RateBurst:  2,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/kb", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("status after exhausting burst = %d, want 429", lastCode)
	}

	// Health probes bypass the limiter.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health probe status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	store := testutil.NewMemStore()
	fp := testutil.NewMockFingerprinter(8)
	gen := &testutil.MockGenerator{}
	logger := testutil.DiscardLogger()

	ret, _ := retrieval.NewService(store, fp, gen, retrieval.Config{}, logger)
	res, _ := resolution.NewService(store, fp, logger)

	srv, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Retrieval:   ret,
		Resolution:  res,
		CORSOrigins: []string{"http://localhost:5173"},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	// Unknown origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin for unknown origin = %q, want empty", got)
	}
}
