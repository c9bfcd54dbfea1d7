package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chris/dashbridge/internal/bridge"
	"github.com/chris/dashbridge/internal/db"
	"github.com/chris/dashbridge/internal/grafana"
)

type fakeBridge struct {
	got      []bridge.Payload
	err      error
	updated  string
	messages map[string]db.Message
	limit    int
}

func (f *fakeBridge) HandleMessage(ctx context.Context, p bridge.Payload) (*bridge.Reply, error) {
	f.got = append(f.got, p)
	if f.err != nil {
		return nil, f.err
	}
	return &bridge.Reply{
		ID:          "m1",
		Status:      "success",
		Message:     "Response generated successfully",
		LLMResponse: &bridge.LLMResponse{Response: "hi", ModelUsed: "gpt", Timestamp: time.Unix(0, 0)},
	}, nil
}

func (f *fakeBridge) Messages(limit int) (map[string]db.Message, error) {
	f.limit = limit
	return f.messages, f.err
}

func (f *fakeBridge) Conversation(id string, limit int) ([]db.Message, error) {
	f.limit = limit
	if id != "discord:42" {
		return nil, nil
	}
	return []db.Message{{ID: "m1", ConversationID: id}}, nil
}

func (f *fakeBridge) Dashboard(ctx context.Context, uid string) ([]byte, error) {
	if uid != "abc" {
		return nil, fmt.Errorf("dashboard with UID %s: %w", uid, grafana.ErrNotFound)
	}
	return []byte(`{"dashboard":{"uid":"abc"}}`), nil
}

func (f *fakeBridge) UpdateDashboard(ctx context.Context, uid string, payload []byte) ([]byte, error) {
	f.updated = string(payload)
	return []byte(`{"status":"success"}`), nil
}

func newTestServer(t *testing.T, b *fakeBridge, opts Options) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(b, opts).Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestPostMessage(t *testing.T) {
	b := &fakeBridge{}
	h := newTestServer(t, b, Options{})

	rec := do(h, http.MethodPost, "/api/messages",
		`{"text":"why?","dashboard":{"dashboardId":"abc","panelId":3,"dashboardTitle":"Demo"},"timestamp":"2026-03-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if len(b.got) != 1 || b.got[0].Dashboard.PanelID != "3" || b.got[0].Text != "why?" {
		t.Errorf("unexpected payload %+v", b.got)
	}
	var reply bridge.Reply
	json.Unmarshal(rec.Body.Bytes(), &reply)
	if reply.LLMResponse == nil || reply.LLMResponse.Response != "hi" {
		t.Errorf("unexpected reply %s", rec.Body)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard CORS, got %q", got)
	}
}

func TestPostMessage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing text", `{"dashboard":{"dashboardId":"abc"}}`, nil, http.StatusUnprocessableEntity},
		{"missing dashboard id", `{"text":"q","dashboard":{}}`, nil, http.StatusUnprocessableEntity},
		{"malformed", `{"text":`, nil, http.StatusUnprocessableEntity},
		{"not found", `{"text":"q","dashboard":{"dashboardId":"x"}}`, fmt.Errorf("dashboard with UID x: %w", grafana.ErrNotFound), http.StatusNotFound},
		{"bridge failure", `{"text":"q","dashboard":{"dashboardId":"abc"}}`, errors.New("getting LLM response: 401"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeBridge{err: tt.err}, Options{})
			rec := do(h, http.MethodPost, "/api/messages", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
			if detail(t, rec) == "" {
				t.Error("expected detail in error body")
			}
		})
	}
}

func TestListMessages(t *testing.T) {
	b := &fakeBridge{messages: map[string]db.Message{"m1": {ID: "m1", Text: "one"}}}
	h := newTestServer(t, b, Options{})

	rec := do(h, http.MethodGet, "/api/messages?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if b.limit != 5 {
		t.Errorf("expected limit 5, got %d", b.limit)
	}
	var got map[string]db.Message
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["m1"].Text != "one" {
		t.Errorf("unexpected body %s", rec.Body)
	}

	if rec := do(h, http.MethodGet, "/api/messages?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestConversation(t *testing.T) {
	b := &fakeBridge{}
	h := newTestServer(t, b, Options{})

	rec := do(h, http.MethodGet, "/api/conversations/discord:42", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"conversation_id":"discord:42"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body)
	}
	if b.limit != 50 {
		t.Errorf("expected default limit 50, got %d", b.limit)
	}
	if rec := do(h, http.MethodGet, "/api/conversations/none", ""); rec.Body.String() != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body)
	}
}

func TestDashboards(t *testing.T) {
	b := &fakeBridge{}
	h := newTestServer(t, b, Options{})

	if rec := do(h, http.MethodGet, "/api/dashboards/abc", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"uid":"abc"`) {
		t.Errorf("unexpected get: %d %s", rec.Code, rec.Body)
	}
	rec := do(h, http.MethodGet, "/api/dashboards/gone", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(detail(t, rec), "gone") {
		t.Errorf("expected uid in detail, got %q", detail(t, rec))
	}

	if rec := do(h, http.MethodPost, "/api/dashboards/abc", `{"title":"New"}`); rec.Code != http.StatusOK {
		t.Errorf("expected 200 on update, got %d", rec.Code)
	}
	if b.updated != `{"title":"New"}` {
		t.Errorf("expected body passed through, got %q", b.updated)
	}
	if rec := do(h, http.MethodPost, "/api/dashboards/abc", `"nope"`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-object, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "dashbridge_test_total", Help: "test"}))
	h := newTestServer(t, &fakeBridge{}, Options{Registry: reg})

	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	rec := do(h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dashbridge_test_total") {
		t.Errorf("unexpected metrics response %d", rec.Code)
	}

	noMetrics := newTestServer(t, &fakeBridge{}, Options{})
	if rec := do(noMetrics, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without registry, got %d", rec.Code)
	}
}

func TestCORSAllowList(t *testing.T) {
	h := newTestServer(t, &fakeBridge{}, Options{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials allowed for explicit origins")
	}
}
