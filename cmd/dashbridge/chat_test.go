package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chris/dashbridge/internal/bridge"
)

type echoHandler struct {
	got []bridge.Payload
	err error
}

func (e *echoHandler) HandleMessage(ctx context.Context, p bridge.Payload) (*bridge.Reply, error) {
	e.got = append(e.got, p)
	if e.err != nil {
		return nil, e.err
	}
	return &bridge.Reply{LLMResponse: &bridge.LLMResponse{Response: "re: " + p.Text}}, nil
}

func TestChatLoop_Interactive(t *testing.T) {
	h := &echoHandler{}
	var out bytes.Buffer

	err := chatLoop(context.Background(), h, "abc", "cli:1", strings.NewReader("first\n\nsecond\nexit\nignored\n"), &out, false)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(h.got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(h.got))
	}
	if h.got[1].Dashboard.DashboardID != "abc" || h.got[1].ConversationID != "cli:1" {
		t.Errorf("unexpected payload %+v", h.got[1])
	}
	if !strings.Contains(out.String(), "re: first") || !strings.Contains(out.String(), "dashbridge> ") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestChatLoop_PipeAnswersOnce(t *testing.T) {
	h := &echoHandler{}
	var out bytes.Buffer

	chatLoop(context.Background(), h, "abc", "cli:1", strings.NewReader("one\ntwo\n"), &out, true)
	if len(h.got) != 1 {
		t.Errorf("expected a single exchange, got %d", len(h.got))
	}
	if strings.Contains(out.String(), "dashbridge> ") {
		t.Error("expected no prompt in pipe mode")
	}
}

func TestChatLoop_Error(t *testing.T) {
	var out bytes.Buffer
	chatLoop(context.Background(), &echoHandler{err: errors.New("grafana down")}, "abc", "c", strings.NewReader("q\n"), &out, true)
	if !strings.Contains(out.String(), "error: grafana down") {
		t.Errorf("expected error line, got %q", out.String())
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"serve"}, {"chat"}, {"service", "install"}, {"service", "logs"}} {
		if _, _, err := root.Find(path); err != nil {
			t.Errorf("expected command %v: %v", path, err)
		}
	}
}
