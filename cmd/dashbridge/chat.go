package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chris/dashbridge/config"
	"github.com/chris/dashbridge/internal/bridge"
)

type messageHandler interface {
	HandleMessage(ctx context.Context, p bridge.Payload) (*bridge.Reply, error)
}

func newChatCmd() *cobra.Command {
	var dashboard, conversation string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a dashboard from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.Load())
			if err != nil {
				return err
			}
			defer a.Close()

			if conversation == "" {
				conversation = "cli:" + uuid.NewString()
			}
			stat, _ := os.Stdin.Stat()
			isPipe := (stat.Mode() & os.ModeCharDevice) == 0
			return chatLoop(cmd.Context(), a.bridge, dashboard, conversation, cmd.InOrStdin(), cmd.OutOrStdout(), isPipe)
		},
	}
	cmd.Flags().StringVarP(&dashboard, "dashboard", "d", "", "dashboard UID to ask about")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id to continue")
	_ = cmd.MarkFlagRequired("dashboard")
	return cmd
}

// chatLoop reads questions line by line until exit. Piped input is answered
// once.
func chatLoop(ctx context.Context, h messageHandler, uid, conversation string, in io.Reader, out io.Writer, isPipe bool) error {
	scanner := bufio.NewScanner(in)
	prompt := func() {
		if !isPipe {
			fmt.Fprint(out, "dashbridge> ")
		}
	}

	prompt()
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			prompt()
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := h.HandleMessage(ctx, bridge.Payload{
			Text:           input,
			Dashboard:      bridge.DashboardInfo{DashboardID: uid},
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			ConversationID: conversation,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		} else if reply.LLMResponse != nil {
			fmt.Fprintln(out, reply.LLMResponse.Response)
		}

		if isPipe || ctx.Err() != nil {
			break
		}
		prompt()
	}
	return scanner.Err()
}
