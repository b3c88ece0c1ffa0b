package main

import (
	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "chatbot",
		Short:        "Rule-based chatbot message parser",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newParseCmd(opts),
		newChatCmd(opts),
		newRegistryCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

// newLogger builds the process logger. defaultLevel applies when neither
// --log-level nor the config sets one.
func (o *rootOptions) newLogger(cfg *config.Config, defaultLevel string) (*zap.Logger, logger.Logger) {
	level := o.logLevel
	if level == "" {
		level = defaultLevel
	}
	if level == "" {
		level = cfg.Logging.Level
	}
	zapLog := logger.New(level, cfg.Logging.Format)
	return zapLog, logger.NewZapAdapter(zapLog)
}
