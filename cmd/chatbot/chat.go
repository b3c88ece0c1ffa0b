package main

import (
	"bufio"
	"fmt"
	"strings"

	"chatbot-parser/internal/app"
	"chatbot-parser/internal/conversation"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var showIntent bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the chatbot on stdin; history is kept in memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			zapLog, log := root.newLogger(cfg, "warn")
			defer zapLog.Sync()

			p, err := app.BuildParser(cfg, nil, log)
			if err != nil {
				return err
			}
			svc := conversation.NewService(p, log, conversation.WithHistoryLimit(cfg.Chatbot.History.MaxEntries))
			sessionID := uuid.NewString()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Type a message, or \"quit\" to leave.")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(line) {
				case "quit", "exit":
					return nil
				case "/reset":
					if err := svc.Reset(cmd.Context(), sessionID); err != nil {
						return err
					}
					fmt.Fprintln(out, "(history cleared)")
					continue
				}

				turn := svc.HandleTurn(cmd.Context(), sessionID, line, nil)
				if showIntent {
					fmt.Fprintf(out, "[%s %v]\n", turn.Intent, turn.Entities)
				}
				fmt.Fprintln(out, turn.ChatbotResponse)
			}
		},
	}
	cmd.Flags().BoolVar(&showIntent, "show-intent", false, "print the parsed intent and entities before each reply")
	return cmd
}
