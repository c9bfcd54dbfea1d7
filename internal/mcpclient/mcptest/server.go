// Package mcptest provides an in-process MCP tool provider for tests.
package mcptest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chris/dashbridge/internal/mcpclient"
)

type DashboardArgs struct {
	UID string `json:"uid" jsonschema:"the dashboard UID"`
}

// Server is a Grafana-flavoured MCP server reachable over in-memory
// transports. Every Transport call creates a fresh server session.
type Server struct {
	server *mcp.Server

	mu       sync.Mutex
	sessions []*mcp.ServerSession
	calls    []string
	fail     error
}

// NewServer registers get_dashboard, which returns {"title":"Demo"} for any
// UID except "missing", and list_datasources.
func NewServer() *Server {
	s := &Server{server: mcp.NewServer(&mcp.Implementation{Name: "grafana-test", Version: "0.0.1"}, nil)}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_dashboard",
		Description: "Get a dashboard by UID",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in DashboardArgs) (*mcp.CallToolResult, any, error) {
		s.record("get_dashboard")
		if in.UID == "missing" {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("dashboard %s not found", in.UID)}},
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: `{"title":"Demo"}`}},
		}, nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_datasources",
		Description: "List configured datasources",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		s.record("list_datasources")
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: `[{"name":"prometheus"}]`}},
		}, nil, nil
	})

	return s
}

func (s *Server) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

// FailConnects makes subsequent Transport calls return err.
func (s *Server) FailConnects(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Transport satisfies mcpclient.TransportFactory.
func (s *Server) Transport(ctx context.Context, _ mcpclient.Config) (mcp.Transport, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := s.server.Connect(ctx, serverT, nil)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, ss)
	s.mu.Unlock()
	return clientT, nil
}

// Sessions returns every server session created so far, oldest first.
func (s *Server) Sessions() []*mcp.ServerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*mcp.ServerSession(nil), s.sessions...)
}

// Calls returns the names of the tools invoked so far.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

var ErrRefused = errors.New("connection refused")
