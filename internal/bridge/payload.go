package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// PanelID accepts either a JSON string or number.
type PanelID string

func (p *PanelID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PanelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("panelId must be a string or number: %w", err)
	}
	*p = PanelID(n.String())
	return nil
}

type DashboardInfo struct {
	DashboardID    string  `json:"dashboardId" binding:"required"`
	PanelID        PanelID `json:"panelId"`
	DashboardTitle string  `json:"dashboardTitle"`
}

// Payload is a chat request from the dashboard panel.
type Payload struct {
	Text      string        `json:"text" binding:"required"`
	Dashboard DashboardInfo `json:"dashboard" binding:"required"`
	Timestamp string        `json:"timestamp"`
	// ConversationID groups requests that share a transcript. Requests
	// without one share the dashboard's conversation.
	ConversationID string `json:"conversationId,omitempty"`
}

type LLMResponse struct {
	Response  string    `json:"response"`
	ModelUsed string    `json:"model_used"`
	Timestamp time.Time `json:"timestamp"`
}

type Reply struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	LLMResponse *LLMResponse `json:"llm_response,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}
