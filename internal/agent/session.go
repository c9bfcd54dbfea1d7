package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chris/dashbridge/internal/llm"
	"github.com/chris/dashbridge/internal/mcpclient"
)

const (
	DefaultMaxRounds = 10

	NotAvailableMessage = "No tools available to process the query or session not initialized"
	NoResponseMessage   = "No response from the model"
	MaxRoundsMessage    = "I hit the maximum number of tool calls. Here's what I have so far."
)

var errSessionClosed = errors.New("session closed")

type ToolCallMode string

const (
	// ToolCallsAll executes every tool call of an assistant message in order.
	ToolCallsAll ToolCallMode = "all"
	// ToolCallsFirst executes only the first call; the others are dropped from
	// the recorded assistant message.
	ToolCallsFirst ToolCallMode = "first"
)

// ToolProvider is the tool-provider connection a Session drives.
type ToolProvider interface {
	Connect(ctx context.Context, cfg mcpclient.Config) error
	Tools() []mcpclient.Tool
	CallTool(ctx context.Context, name string, args map[string]any) mcpclient.Result
	Close() error
}

// Observer receives loop events, e.g. for metrics.
type Observer interface {
	ModelRound(model string, err error)
	ToolCall(tool string, failed bool, elapsed time.Duration)
}

type Options struct {
	Model        string
	SystemPrompt string
	// MaxRounds caps model calls per query; 0 means no cap.
	MaxRounds    int
	ToolCallMode ToolCallMode
	// MaxContextTokens enables history trimming when > 0.
	MaxContextTokens int
	Observer         Observer
}

// Session is one conversation: a transcript, a model and a tool provider.
// Queries on a Session run one at a time.
type Session struct {
	client llm.Client
	tools  ToolProvider
	opts   Options

	runMu sync.Mutex

	mu         sync.Mutex
	transcript []llm.Message
	closed     bool
}

func NewSession(client llm.Client, tools ToolProvider, opts Options) *Session {
	if opts.ToolCallMode == "" {
		opts.ToolCallMode = ToolCallsAll
	}
	s := &Session{client: client, tools: tools, opts: opts}
	if opts.SystemPrompt != "" {
		s.transcript = append(s.transcript, llm.Message{Role: llm.RoleSystem, Content: opts.SystemPrompt})
	}
	return s
}

// Connect (re)connects the session's tool provider.
func (s *Session) Connect(ctx context.Context, cfg mcpclient.Config) error {
	if err := s.tools.Connect(ctx, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
	return nil
}

// Model returns the model identifier the session submits to.
func (s *Session) Model() string {
	if s.opts.Model != "" {
		return s.opts.Model
	}
	return s.client.DefaultModel()
}

// ProcessQuery drives one user query to a final answer. It never fails:
// errors are logged and returned as text.
func (s *Session) ProcessQuery(ctx context.Context, text string) string {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	catalog := s.tools.Tools()
	if len(catalog) == 0 || s.isClosed() {
		return NotAvailableMessage
	}

	active := s.append(llm.Message{Role: llm.RoleUser, Content: text})
	tools := FunctionTools(catalog)

	for round := 0; s.opts.MaxRounds <= 0 || round < s.opts.MaxRounds; round++ {
		if s.isClosed() {
			return errorText(errSessionClosed)
		}

		resp, err := s.client.Chat(ctx, s.opts.Model, s.window(active, tools), tools)
		if s.opts.Observer != nil {
			s.opts.Observer.ModelRound(s.Model(), err)
		}
		if err != nil {
			return errorText(err)
		}
		if resp.NoChoices {
			log.Printf("agent: model returned no choices on round %d", round+1)
			return NoResponseMessage
		}

		calls := resp.ToolCalls
		if len(calls) > 1 && s.opts.ToolCallMode == ToolCallsFirst {
			log.Printf("agent: dropping %d extra tool calls", len(calls)-1)
			calls = calls[:1]
		}

		s.append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})
		if len(calls) == 0 {
			return resp.Content
		}

		for _, tc := range calls {
			res := s.execute(ctx, tc)
			s.append(llm.Message{
				Role:       llm.RoleTool,
				Content:    res.Content(),
				ToolCallID: tc.ID,
				Name:       tc.Name,
				IsError:    res.Failed(),
			})
		}
	}

	log.Printf("agent: stopped after %d rounds", s.opts.MaxRounds)
	return MaxRoundsMessage
}

func (s *Session) execute(ctx context.Context, tc llm.ToolCall) mcpclient.Result {
	start := time.Now()

	args := map[string]any{}
	var res mcpclient.Result
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			res = mcpclient.Result{Tool: tc.Name, Err: &mcpclient.ToolExecutionError{
				Tool: tc.Name,
				Err:  fmt.Errorf("invalid arguments: %w", err),
			}}
		}
	}
	if res.Err == nil {
		res = s.tools.CallTool(ctx, tc.Name, args)
	}

	elapsed := time.Since(start)
	if s.opts.Observer != nil {
		s.opts.Observer.ToolCall(tc.Name, res.Failed(), elapsed)
	}
	log.Printf("tool %s → %s", tc.Name, truncate(res.Content(), 200))
	return res
}

// window is the transcript snapshot submitted to the model. Only history
// before the active query's user message is trimmed.
func (s *Session) window(active int, tools []llm.FunctionTool) []llm.Message {
	snapshot := s.Transcript()
	if s.opts.MaxContextTokens <= 0 {
		return snapshot
	}
	budget := s.opts.MaxContextTokens - llm.EstimateToolsTokens(tools)
	if budget < 1000 {
		budget = 1000 // floor so we always have room for at least the current turn
	}
	trimmed := llm.TrimBefore(snapshot, active, budget)
	if len(trimmed) < len(snapshot) {
		log.Printf("context trimmed: %d → %d messages", len(snapshot), len(trimmed))
	}
	return trimmed
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// append adds m to the transcript and returns its index.
func (s *Session) append(m llm.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
	return len(s.transcript) - 1
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears down the tool provider. It may be called while a query is in
// flight; the transcript keeps whatever was appended so far.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.tools.Close()
}

func errorText(err error) string {
	msg := fmt.Sprintf("Error processing query: %v", err)
	log.Print(msg)
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
