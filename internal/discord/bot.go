// Package discord answers dashboard questions in Discord channels and DMs.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/dashbridge/internal/bridge"
)

type Handler interface {
	HandleMessage(ctx context.Context, p bridge.Payload) (*bridge.Reply, error)
}

type Bot struct {
	session *discordgo.Session
	handler Handler

	mu       sync.Mutex
	selected map[string]string // channel ID -> dashboard UID
}

func newBot(h Handler) *Bot {
	return &Bot{handler: h, selected: make(map[string]string)}
}

func NewBot(token string, h Handler) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := newBot(h)
	bot.session = s
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	log.Printf("discord: connected as %s", s.State.User.Username)
	return bot, nil
}

func (b *Bot) Close() {
	if b.session != nil {
		b.session.Close()
	}
}
