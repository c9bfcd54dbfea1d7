package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/chris/dashbridge/config"
	"github.com/chris/dashbridge/internal/agent"
	"github.com/chris/dashbridge/internal/bridge"
	"github.com/chris/dashbridge/internal/db"
	"github.com/chris/dashbridge/internal/grafana"
	"github.com/chris/dashbridge/internal/llm"
	"github.com/chris/dashbridge/internal/mcpclient"
	"github.com/chris/dashbridge/internal/metrics"
)

// app holds the wired components shared by serve and chat.
type app struct {
	cfg      *config.Config
	db       *db.DB
	pool     *agent.Pool
	metrics  *metrics.Provider
	registry *prometheus.Registry
	bridge   *bridge.Service
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	client, err := newLLMClient(cfg, cfg.Model)
	if err != nil {
		database.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	a := &app{cfg: cfg, db: database, metrics: m, registry: registry}

	var sessions bridge.Sessions
	if cfg.UseMCP {
		toolClient, err := newLLMClient(cfg, cfg.MCPModel)
		if err != nil {
			database.Close()
			return nil, err
		}
		a.pool = newSessionPool(cfg, toolClient, m)
		m.TrackSessions(a.pool.Len)
		sessions = a.pool
	}

	a.bridge = bridge.NewService(
		client,
		grafana.NewClient(cfg.GrafanaURL, cfg.GrafanaKey),
		database,
		sessions,
		m,
		bridge.Options{UseMCP: cfg.UseMCP, Model: cfg.Model},
	)

	mode := bridge.ModeDirect
	if cfg.UseMCP {
		mode = bridge.ModeMCP
	}
	log.Printf("grafana: %s (%s mode, provider %s)", cfg.GrafanaURL, mode, cfg.LLMProvider)
	return a, nil
}

func newLLMClient(cfg *config.Config, model string) (llm.Client, error) {
	return llm.NewClient(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.APIKey(),
		AuthToken: cfg.AnthropicToken,
		Model:     model,
		BaseURL:   cfg.BaseURL(),
	})
}

func newSessionPool(cfg *config.Config, client llm.Client, m *metrics.Provider) *agent.Pool {
	server := mcpclient.Config{
		Command: cfg.MCPCommand,
		Args:    cfg.MCPArgs,
		Env:     cfg.ServerEnv(),
	}
	opts := agent.Options{
		Model:            cfg.MCPModel,
		SystemPrompt:     llm.SystemPrompt,
		MaxRounds:        cfg.MaxToolRounds,
		ToolCallMode:     agent.ToolCallMode(cfg.ToolCallMode),
		MaxContextTokens: cfg.MaxContextTokens,
		Observer:         m,
	}
	return agent.NewPool(func(ctx context.Context) (*agent.Session, error) {
		s := agent.NewSession(client, mcpclient.New(), opts)
		if err := s.Connect(ctx, server); err != nil {
			return nil, err
		}
		return s, nil
	})
}

func (a *app) Close() error {
	var errs []error
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
