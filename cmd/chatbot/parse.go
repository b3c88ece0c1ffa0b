package main

import (
	"encoding/json"
	"strings"

	"chatbot-parser/internal/app"
	"chatbot-parser/internal/chatbot"

	"github.com/spf13/cobra"
)

type parseResult struct {
	Intent          chatbot.Intent    `json:"intent"`
	Entities        map[string]string `json:"entities"`
	ChatbotResponse string            `json:"chatbotResponse,omitempty"`
}

func newParseCmd(root *rootOptions) *cobra.Command {
	var respond bool

	cmd := &cobra.Command{
		Use:   "parse <message>",
		Short: "Print the intent and entities of one message as JSON",
		Args:  cobra.ArbitraryArgs,
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

			entity := p.ParseUserMessage(strings.Join(args, " "))
			out := parseResult{Intent: entity.Intent, Entities: entity.Entities}
			if respond {
				out.ChatbotResponse = p.GenerateResponse(entity)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVarP(&respond, "respond", "r", false, "include the generated reply")
	return cmd
}
