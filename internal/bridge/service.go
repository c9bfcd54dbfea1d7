// Package bridge answers dashboard chat requests, either through a pooled
// tool-calling session or with a single model call over the dashboard JSON.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/chris/dashbridge/internal/agent"
	"github.com/chris/dashbridge/internal/db"
	"github.com/chris/dashbridge/internal/grafana"
	"github.com/chris/dashbridge/internal/llm"
	"github.com/chris/dashbridge/internal/metrics"
)

const (
	ModeMCP    = "mcp"
	ModeDirect = "direct"
)

var ErrEmptyReply = errors.New("no response from the model")

type Dashboards interface {
	GetDashboard(ctx context.Context, uid string) ([]byte, error)
	UpdateDashboard(ctx context.Context, uid string, payload []byte) ([]byte, error)
}

type Store interface {
	SaveMessage(m db.Message) error
	CompleteMessage(id, reply, model string) error
	FailMessage(id, errText string) error
	ListMessages(limit int) ([]db.Message, error)
	ListConversation(conversationID string, limit int) ([]db.Message, error)
}

type Sessions interface {
	Acquire(ctx context.Context, id string) (*agent.Session, func(), error)
}

type Options struct {
	UseMCP bool
	// Model is used for direct mode; MCP sessions carry their own.
	Model string
}

type Service struct {
	client     llm.Client
	dashboards Dashboards
	store      Store
	sessions   Sessions
	metrics    *metrics.Provider
	opts       Options

	now   func() time.Time
	newID func() string
}

func NewService(client llm.Client, dashboards Dashboards, store Store, sessions Sessions, m *metrics.Provider, opts Options) *Service {
	return &Service{
		client:     client,
		dashboards: dashboards,
		store:      store,
		sessions:   sessions,
		metrics:    m,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) mode() string {
	if s.opts.UseMCP {
		return ModeMCP
	}
	return ModeDirect
}

// HandleMessage answers one chat request and records it in the message log.
func (s *Service) HandleMessage(ctx context.Context, p Payload) (*Reply, error) {
	start := s.now()
	id := s.newID()
	uid := p.Dashboard.DashboardID

	msg := db.Message{
		ID:              id,
		ConversationID:  conversationID(p),
		Text:            p.Text,
		DashboardUID:    uid,
		PanelID:         string(p.Dashboard.PanelID),
		DashboardTitle:  p.Dashboard.DashboardTitle,
		ClientTimestamp: p.Timestamp,
		ReceivedAt:      start,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		log.Printf("bridge: %v", err)
	}

	var (
		text, model string
		err         error
	)
	if s.opts.UseMCP {
		text, model, err = s.viaSession(ctx, msg)
	} else {
		text, model, err = s.direct(ctx, msg)
	}
	s.metrics.Query(s.mode(), err, s.now().Sub(start))

	if err != nil {
		if ferr := s.store.FailMessage(id, err.Error()); ferr != nil {
			log.Printf("bridge: %v", ferr)
		}
		return nil, err
	}
	if cerr := s.store.CompleteMessage(id, text, model); cerr != nil {
		log.Printf("bridge: %v", cerr)
	}

	now := s.now()
	log.Printf("bridge: answered %s on dashboard %s in %s", id, uid, now.Sub(start).Round(time.Millisecond))
	return &Reply{
		ID:      id,
		Status:  "success",
		Message: "Response generated successfully",
		LLMResponse: &LLMResponse{
			Response:  text,
			ModelUsed: model,
			Timestamp: now,
		},
		ReceivedAt: now,
	}, nil
}

func (s *Service) viaSession(ctx context.Context, msg db.Message) (string, string, error) {
	doc, _ := sjson.Set(`{}`, "dashboard.uid", msg.DashboardUID)
	prompt := BuildPrompt(msg.Text, grafana.Summarize([]byte(doc)))

	session, release, err := s.sessions.Acquire(ctx, msg.ConversationID)
	if err != nil {
		return "", "", fmt.Errorf("opening session: %w", err)
	}
	defer release()

	return session.ProcessQuery(ctx, prompt), session.Model(), nil
}

func (s *Service) direct(ctx context.Context, msg db.Message) (string, string, error) {
	doc, err := s.dashboards.GetDashboard(ctx, msg.DashboardUID)
	if err != nil {
		return "", "", err
	}
	prompt := BuildPrompt(msg.Text, grafana.Summarize(doc))

	resp, err := s.client.Chat(ctx, s.opts.Model, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", "", fmt.Errorf("getting LLM response: %w", err)
	}
	if resp.NoChoices {
		return "", "", ErrEmptyReply
	}

	model := resp.Model
	if model == "" {
		model = s.opts.Model
	}
	if model == "" {
		model = s.client.DefaultModel()
	}
	return resp.Content, model, nil
}

// Messages returns up to limit of the most recent logged requests keyed by id.
func (s *Service) Messages(limit int) (map[string]db.Message, error) {
	msgs, err := s.store.ListMessages(limit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]db.Message, len(msgs))
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

// Conversation returns the latest exchanges of a conversation, oldest first.
func (s *Service) Conversation(id string, limit int) ([]db.Message, error) {
	return s.store.ListConversation(id, limit)
}

func (s *Service) Dashboard(ctx context.Context, uid string) ([]byte, error) {
	return s.dashboards.GetDashboard(ctx, uid)
}

func (s *Service) UpdateDashboard(ctx context.Context, uid string, payload []byte) ([]byte, error) {
	return s.dashboards.UpdateDashboard(ctx, uid, payload)
}

func conversationID(p Payload) string {
	if p.ConversationID != "" {
		return p.ConversationID
	}
	return "dashboard:" + p.Dashboard.DashboardID
}
