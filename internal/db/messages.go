package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const (
	StatusReceived = "received"
	StatusSuccess  = "success"
	StatusError    = "error"
)

// Message is one chat request and, once answered, its reply.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Text            string    `json:"text"`
	DashboardUID    string    `json:"dashboard_uid"`
	PanelID         string    `json:"panel_id,omitempty"`
	DashboardTitle  string    `json:"dashboard_title,omitempty"`
	ClientTimestamp string    `json:"client_timestamp,omitempty"`
	Status          string    `json:"status"`
	Reply           string    `json:"reply,omitempty"`
	Model           string    `json:"model,omitempty"`
	Error           string    `json:"error,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
}

const messageColumns = `id, conversation_id, text, dashboard_uid, COALESCE(panel_id,''), COALESCE(dashboard_title,''),
	COALESCE(client_timestamp,''), status, COALESCE(reply,''), COALESCE(model,''), COALESCE(error,''), received_at`

// SaveMessage inserts a newly received message.
func (d *DB) SaveMessage(m Message) error {
	if m.Status == "" {
		m.Status = StatusReceived
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now()
	}
	_, err := d.conn.Exec(
		`INSERT INTO messages (id, conversation_id, text, dashboard_uid, panel_id, dashboard_title, client_timestamp, status, reply, model, error, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Text, m.DashboardUID, nullStr(m.PanelID), nullStr(m.DashboardTitle),
		nullStr(m.ClientTimestamp), m.Status, nullStr(m.Reply), nullStr(m.Model), nullStr(m.Error),
		m.ReceivedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// CompleteMessage records the outcome of a message.
func (d *DB) CompleteMessage(id, reply, model string) error {
	return d.updateMessage(id, map[string]any{"status": StatusSuccess, "reply": reply, "model": nullStr(model)})
}

// FailMessage records a processing error for a message.
func (d *DB) FailMessage(id, errText string) error {
	return d.updateMessage(id, map[string]any{"status": StatusError, "error": errText})
}

// GetMessage returns the message with id, or nil if there is none.
func (d *DB) GetMessage(id string) (*Message, error) {
	msgs, err := d.scanMessages("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// ListMessages returns the most recent messages, newest first.
func (d *DB) ListMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	return d.scanMessages("SELECT "+messageColumns+" FROM messages ORDER BY received_at DESC LIMIT ?", limit)
}

// ListConversation returns a conversation's messages, oldest first.
func (d *DB) ListConversation(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT * FROM (SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?
		ORDER BY received_at DESC LIMIT ?) ORDER BY received_at ASC`
	return d.scanMessages(q, conversationID, limit)
}

// PruneMessages deletes messages received before cutoff.
func (d *DB) PruneMessages(cutoff time.Time) (int64, error) {
	res, err := d.conn.Exec("DELETE FROM messages WHERE received_at < ?", cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("pruning messages: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) scanMessages(query string, args ...any) ([]Message, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		var received string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Text, &m.DashboardUID, &m.PanelID, &m.DashboardTitle,
			&m.ClientTimestamp, &m.Status, &m.Reply, &m.Model, &m.Error, &received); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.ReceivedAt, _ = time.Parse(time.RFC3339Nano, received)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

var messageUpdatable = map[string]bool{"status": true, "reply": true, "model": true, "error": true}

func (d *DB) updateMessage(id string, fields map[string]any) error {
	var setClauses []string
	var args []any
	for col, val := range fields {
		if !messageUpdatable[col] {
			return fmt.Errorf("disallowed column %q for messages", col)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = datetime('now')")
	args = append(args, id)
	res, err := d.conn.Exec("UPDATE messages SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("message %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
