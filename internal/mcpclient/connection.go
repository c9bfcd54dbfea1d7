// Package mcpclient manages a single connection to an MCP tool provider.
package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const clientName = "dashbridge"

// Config holds the tool provider launch parameters.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
}

// TransportFactory builds the transport for a connection attempt.
type TransportFactory func(ctx context.Context, cfg Config) (mcp.Transport, error)

type Connection struct {
	client       *mcp.Client
	newTransport TransportFactory

	connectMu sync.Mutex // serializes Connect/Close

	mu              sync.Mutex
	session         *mcp.ClientSession
	tools           []Tool
	index           map[string]struct{}
	protocolVersion string
}

// New returns a closed connection that launches providers as subprocesses.
func New() *Connection {
	return NewWithTransport(CommandTransport)
}

func NewWithTransport(f TransportFactory) *Connection {
	return &Connection{
		client:       mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1.0.0"}, nil),
		newTransport: f,
	}
}

// CommandTransport launches cfg.Command with cfg.Args and speaks MCP over its
// stdin/stdout. Env entries are added on top of the current environment.
func CommandTransport(_ context.Context, cfg Config) (mcp.Transport, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("command is empty")
	}
	// #nosec G204 -- command comes from operator configuration
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+cfg.Env[k])
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

// Connect starts the provider, performs the handshake and loads the full tool
// catalog. An open connection is closed first. On failure the connection is
// left closed.
func (c *Connection) Connect(ctx context.Context, cfg Config) (err error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if err := c.closeLocked(); err != nil {
		log.Printf("mcp: closing previous session: %v", err)
	}

	transport, err := c.newTransport(ctx, cfg)
	if err != nil {
		return &ConnectionError{Op: "transport", Err: err}
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return &ConnectionError{Op: "initialize", Err: err}
	}
	defer func() {
		if err != nil {
			_ = session.Close()
		}
	}()

	var version string
	if init := session.InitializeResult(); init != nil {
		version = init.ProtocolVersion
	}

	var tools []Tool
	index := make(map[string]struct{})
	for t, terr := range session.Tools(ctx, nil) {
		if terr != nil {
			return &ConnectionError{Op: "list tools", Err: terr}
		}
		tool := toTool(t)
		if _, dup := index[tool.Name]; dup {
			continue
		}
		index[tool.Name] = struct{}{}
		tools = append(tools, tool)
	}

	c.mu.Lock()
	c.session = session
	c.tools = tools
	c.index = index
	c.protocolVersion = version
	c.mu.Unlock()

	log.Printf("mcp: connected to %s with protocol version %s (%d tools)", describe(cfg), version, len(tools))
	return nil
}

// CallTool runs a tool on the open connection. Failures are reported in the
// returned Result, never as a Go error.
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]any) Result {
	c.mu.Lock()
	session := c.session
	_, known := c.index[name]
	c.mu.Unlock()

	if session == nil {
		return failed(name, ErrNotConnected)
	}
	if !known {
		return failed(name, fmt.Errorf("%w: %s", ErrUnknownTool, name))
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		log.Printf("mcp: error executing tool %s: %v", name, err)
		return failed(name, err)
	}
	if res.IsError {
		msg := textOf(res)
		if msg == "" {
			msg = "provider reported an error"
		}
		return Result{Tool: name, Output: res, Err: &ToolExecutionError{Tool: name, Err: errors.New(msg)}}
	}

	r := Result{Tool: name, Output: res}
	log.Printf("mcp: tool %s returned %s", name, humanize.Bytes(uint64(len(r.Content()))))
	return r
}

// Close releases the session and its process. It is safe to call repeatedly
// and while a call is in flight.
func (c *Connection) Close() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.tools = nil
	c.index = nil
	c.protocolVersion = ""
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// Tools returns a copy of the current catalog; nil when closed.
func (c *Connection) Tools() []Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tools == nil {
		return nil
	}
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Connection) ProtocolVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocolVersion
}

func failed(name string, err error) Result {
	return Result{Tool: name, Err: &ToolExecutionError{Tool: name, Err: err}}
}

func describe(cfg Config) string {
	if cfg.Command == "" {
		return "tool provider"
	}
	return cfg.Command
}
