package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/dashbridge/internal/bridge"
)

const usage = "Ask with `<dashboard-uid> <question>`, or pick a dashboard with `use <dashboard-uid>` and then just ask."

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}

	// Only respond to DMs or when mentioned
	isDM := m.GuildID == ""
	isMentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}
	if !isDM && !isMentioned {
		return
	}

	content := strings.TrimSpace(stripMention(m.Content, s.State.User.ID))
	if content == "" {
		return
	}

	s.ChannelTyping(m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	for _, chunk := range splitMessage(b.respond(ctx, m.ChannelID, content), 2000) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			log.Printf("discord: sending to %s: %v", m.ChannelID, err)
		}
	}
}

// respond turns one chat line into the text to post back.
func (b *Bot) respond(ctx context.Context, channelID, content string) string {
	if uid, ok := strings.CutPrefix(content, "use "); ok {
		uid = strings.TrimSpace(uid)
		if uid == "" || strings.ContainsAny(uid, " \t\n") {
			return usage
		}
		b.mu.Lock()
		b.selected[channelID] = uid
		b.mu.Unlock()
		return fmt.Sprintf("Using dashboard `%s` in this channel.", uid)
	}

	b.mu.Lock()
	uid := b.selected[channelID]
	b.mu.Unlock()

	question := content
	if uid == "" {
		var ok bool
		uid, question, ok = parseRequest(content)
		if !ok {
			return usage
		}
	}

	reply, err := b.handler.HandleMessage(ctx, bridge.Payload{
		Text:           question,
		Dashboard:      bridge.DashboardInfo{DashboardID: uid},
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: "discord:" + channelID,
	})
	if err != nil {
		log.Printf("discord: %v", err)
		return "Something went wrong. Try again?"
	}
	if reply.LLMResponse == nil || reply.LLMResponse.Response == "" {
		return "No response from the model."
	}
	return reply.LLMResponse.Response
}

// parseRequest splits "<uid> <question>".
func parseRequest(s string) (uid, question string, ok bool) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return "", "", false
	}
	uid, question = s[:i], strings.TrimSpace(s[i:])
	return uid, question, question != ""
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

// splitMessage breaks s into chunks of at most maxLen characters, ending a
// chunk at the last newline that fits when there is one.
func splitMessage(s string, maxLen int) []string {
	if utf8.RuneCountInString(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := len(s)
		if utf8.RuneCountInString(s) > maxLen {
			end = runeOffset(s, maxLen)
			if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
				end = idx + 1
			}
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
