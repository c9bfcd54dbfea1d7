package llm

import (
	"strings"
	"testing"
)

func TestTrimMessages_UnderBudget(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	got := TrimMessages(msgs, 100000)
	if len(got) != 2 {
		t.Errorf("expected 2 messages unchanged, got %d", len(got))
	}
}

func TestTrimMessages_Empty(t *testing.T) {
	got := TrimMessages(nil, 100)
	if len(got) != 0 {
		t.Errorf("expected 0 messages, got %d", len(got))
	}
}

func TestTrimMessages_DropsOldestFirst(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
		{Role: "assistant", Content: "second answer"},
		{Role: "user", Content: "third question"},
		{Role: "assistant", Content: "third answer"},
	}

	// Budget enough for ~2 groups only (the last 2 messages).
	// Each message is roughly 4 (overhead) + content tokens.
	// Use a budget that forces at least the first pair to be dropped.
	budget := EstimateMessagesTokens(msgs[2:])
	got := TrimMessages(msgs, budget)

	if len(got) < 2 {
		t.Fatalf("expected at least 2 messages, got %d", len(got))
	}
	// The oldest messages should have been dropped.
	if got[0].Content == "first question" {
		t.Error("expected oldest messages to be trimmed, but 'first question' is still present")
	}
	// The newest messages should be preserved.
	last := got[len(got)-1]
	if last.Content != "third answer" {
		t.Errorf("expected last message to be 'third answer', got %q", last.Content)
	}
}

func TestTrimMessages_KeepsToolCallPairsTogether(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "old question"},
		{Role: "assistant", Content: "old answer"},
		// A tool-call exchange that should stay as a unit.
		{Role: "user", Content: "which panels are on dashboard abc?"},
		{
			Role:      "assistant",
			ToolCalls: []ToolCall{{ID: "call_1", Name: "get_dashboard", Arguments: `{"uid":"abc"}`}},
		},
		{Role: "tool", Content: `{"panels":[{"title":"CPU"}]}`, ToolCallID: "call_1", Name: "get_dashboard"},
		{Role: "assistant", Content: "Dashboard abc has one panel: CPU."},
	}

	// Budget: enough for the tool exchange + final answer but not the old pair.
	budget := EstimateMessagesTokens(msgs[2:])
	got := TrimMessages(msgs, budget)

	// Verify the old pair was dropped.
	for _, m := range got {
		if m.Content == "old question" || m.Content == "old answer" {
			t.Errorf("expected old messages to be trimmed, found %q", m.Content)
		}
	}

	// Verify tool call and result stayed together.
	hasToolCall := false
	hasToolResult := false
	for _, m := range got {
		if len(m.ToolCalls) > 0 && m.ToolCalls[0].ID == "call_1" {
			hasToolCall = true
		}
		if m.ToolCallID == "call_1" {
			hasToolResult = true
		}
	}
	if hasToolCall != hasToolResult {
		t.Error("tool call and tool result were split — they must stay together")
	}
}

func TestTrimMessages_MultipleToolResults(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "do two things"},
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				{ID: "call_a", Name: "search_dashboards", Arguments: `{}`},
				{ID: "call_b", Name: "list_datasources", Arguments: `{}`},
			},
		},
		{Role: "tool", Content: `[]`, ToolCallID: "call_a"},
		{Role: "tool", Content: `{"count":1}`, ToolCallID: "call_b"},
		{Role: "assistant", Content: "Done."},
	}

	// The tool-call group (assistant + 2 results) must stay together.
	groups := groupMessages(msgs)
	// Expected: [user "do two things"] [assistant+call_a+call_b] [assistant "Done."]
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[1].messages) != 3 {
		t.Errorf("tool-call group should have 3 messages (assistant + 2 results), got %d", len(groups[1].messages))
	}
}

func TestTrimMessages_AlwaysKeepsLastGroup(t *testing.T) {
	// Even if the last group alone exceeds the budget, we still keep it
	// (the caller should handle the truly-too-large case).
	msgs := []Message{
		{Role: "user", Content: strings.Repeat("x", 10000)},
	}
	got := TrimMessages(msgs, 1)
	if len(got) != 1 {
		t.Errorf("expected last group to be preserved even over budget, got %d messages", len(got))
	}
}

func TestGroupMessages(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{
			Role:      "assistant",
			ToolCalls: []ToolCall{{ID: "c1", Name: "list_datasources", Arguments: `{}`}},
		},
		{Role: "tool", Content: `{}`, ToolCallID: "c1"},
		{Role: "assistant", Content: "a2"},
	}

	groups := groupMessages(msgs)

	// user "q1" | assistant "a1" | user "q2" | assistant+toolresult | assistant "a2"
	if len(groups) != 5 {
		t.Fatalf("expected 5 groups, got %d", len(groups))
	}
	if len(groups[3].messages) != 2 {
		t.Errorf("tool-call group should have 2 messages, got %d", len(groups[3].messages))
	}
}

func TestTrimMessages_KeepsLeadingSystemMessage(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: "old question"},
		{Role: "assistant", Content: "old answer"},
		{Role: "user", Content: "new question"},
	}

	budget := EstimateMessageTokens(msgs[0]) + EstimateMessageTokens(msgs[3])
	got := TrimMessages(msgs, budget)

	if len(got) != 2 {
		t.Fatalf("expected 2 messages (system + newest), got %d", len(got))
	}
	if got[0].Role != "system" {
		t.Errorf("expected system message first, got %q", got[0].Role)
	}
	if got[1].Content != "new question" {
		t.Errorf("expected newest message kept, got %q", got[1].Content)
	}
}

func TestTrimMessages_OnlySystem(t *testing.T) {
	msgs := []Message{{Role: "system", Content: "sys"}}
	got := TrimMessages(msgs, 0)
	if len(got) != 1 {
		t.Errorf("expected system-only history unchanged, got %d messages", len(got))
	}
}

func TestTrimBefore_KeepsActiveTurn(t *testing.T) {
	big := strings.Repeat("x", 40000)
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "old question"},
		{Role: RoleAssistant, Content: "old answer"},
		{Role: RoleUser, Content: "current question"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "get_dashboard", Arguments: "{}"}}},
		{Role: RoleTool, ToolCallID: "c1", Content: big},
	}

	got := TrimBefore(msgs, 3, 1000)

	if len(got) != 4 {
		t.Fatalf("expected system + active turn (4 messages), got %d", len(got))
	}
	if got[0].Role != RoleSystem {
		t.Errorf("expected system first, got %s", got[0].Role)
	}
	if got[1].Content != "current question" {
		t.Errorf("expected current question kept, got %q", got[1].Content)
	}
	if got[3].Content != big {
		t.Error("expected tool result kept in full")
	}
}

func TestTrimBefore_HistoryStartsWithUser(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: strings.Repeat("a", 4000)},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: RoleUser, Content: "second question"},
		{Role: RoleAssistant, Content: "second answer"},
		{Role: RoleUser, Content: "third question"},
	}
	budget := EstimateMessagesTokens(msgs[1:])

	got := TrimBefore(msgs, 4, budget)

	if got[0].Content != "second question" {
		t.Errorf("expected history to restart at a user message, got %s %q", got[0].Role, got[0].Content)
	}
	if got[len(got)-1].Content != "third question" {
		t.Errorf("expected active question last, got %q", got[len(got)-1].Content)
	}
}

func TestTrimBefore_UnderBudget(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	}
	if got := TrimBefore(msgs, 2, 100000); len(got) != 3 {
		t.Errorf("expected 3 messages unchanged, got %d", len(got))
	}
}
