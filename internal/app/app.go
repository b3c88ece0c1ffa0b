// Package app assembles the chatbot from configuration. Every entry point
// (workers, HTTP API, Telegram bot, CLI) shares one App.
package app

import (
	"context"
	"fmt"
	"time"

	"chatbot-parser/internal/analytics"
	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/chatbot/cache"
	"chatbot-parser/internal/chatbot/remote"
	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/database"
	commonhttp "chatbot-parser/internal/common/http"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/observability"
	"chatbot-parser/internal/conversation"
	"chatbot-parser/internal/history"
	"chatbot-parser/internal/server"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Parser        *chatbot.Parser
	Service       *conversation.Service
	Observability *observability.Observability
	Checks        []server.Check

	closers []func() error
}

// New connects every configured backend. On error, anything already opened
// is closed again.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (a *App, err error) {
	a = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	// The intent cache and the redis history backend share one client.
	var rdb redis.Cmdable
	if cfg.Chatbot.Cache.Enabled || cfg.Chatbot.History.Backend == "redis" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		if err := rc.Ping(ctx); err != nil {
			return nil, err
		}
		a.Checks = append(a.Checks, server.Check{Name: "redis", Ping: rc.Ping})
		rdb = rc.Client
	}

	var cacheRDB redis.Cmdable
	if cfg.Chatbot.Cache.Enabled {
		cacheRDB = rdb
	}
	a.Parser, err = BuildParser(cfg, cacheRDB, log)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := history.NewStore(ctx, cfg, rdb, log)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	a.Checks = append(a.Checks, server.Check{
		Name: "history",
		Ping: func(ctx context.Context) error {
			_, err := store.Load(ctx, "readiness-check", 1)
			return err
		},
	})

	var recorder analytics.Recorder = analytics.NopRecorder{}
	if cfg.Chatbot.Analytics.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		recorder = analytics.NewTurnIndexer(es.Client, cfg.Chatbot.Analytics.Index)
		a.Checks = append(a.Checks, server.Check{Name: "elasticsearch", Ping: es.Ping})
	}

	a.Observability = observability.New(cfg.App.Name, cfg.Tracing, log)
	a.closers = append(a.closers, func() error {
		a.Observability.Shutdown()
		return nil
	})

	a.Service = conversation.NewService(a.Parser, log,
		conversation.WithStore(store),
		conversation.WithRecorder(recorder),
		conversation.WithObservability(a.Observability),
		conversation.WithHistoryLimit(cfg.Chatbot.History.MaxEntries),
	)

	log.Info("chatbot assembled", map[string]interface{}{
		"classifier": cfg.Chatbot.Classifier.Mode,
		"templates":  cfg.Chatbot.Templates.Mode,
		"history":    cfg.Chatbot.History.Backend,
		"cache":      cfg.Chatbot.Cache.Enabled,
		"analytics":  cfg.Chatbot.Analytics.Enabled,
	})
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}

// BuildParser composes the classifier and generator selected in cfg. rdb
// enables the intent cache when non-nil.
func BuildParser(cfg *config.Config, rdb redis.Cmdable, log logger.Logger) (*chatbot.Parser, error) {
	rules, err := RulesFromConfig(cfg.Chatbot.Classifier.Rules)
	if err != nil {
		return nil, err
	}
	keywords, err := chatbot.NewKeywordClassifier(rules)
	if err != nil {
		return nil, err
	}

	reg := chatbot.DefaultTemplateRegistry()
	if path := cfg.Chatbot.Templates.RegistryPath; path != "" {
		if reg, err = chatbot.LoadTemplateRegistry(path); err != nil {
			return nil, err
		}
	}
	templates, err := chatbot.NewTemplateGenerator(reg)
	if err != nil {
		return nil, err
	}

	var (
		classifier chatbot.IntentClassifier  = keywords
		generator  chatbot.ResponseGenerator = templates
	)

	if cfg.Chatbot.Classifier.Mode == "remote" || cfg.Chatbot.Templates.Mode == "remote" {
		client := newGenAIClient(cfg.APIs.GenAI, log)
		timeout := config.GetDuration(cfg.APIs.GenAI.Timeout)
		if cfg.Chatbot.Classifier.Mode == "remote" {
			classifier = remote.NewClassifier(client, timeout, log, remote.WithClassifierFallback(keywords))
		}
		if cfg.Chatbot.Templates.Mode == "remote" {
			generator = remote.NewGenerator(client, templates, timeout, log)
		}
	}

	if rdb != nil {
		classifier = cache.NewClassifier(classifier, rdb, config.GetDuration(cfg.Chatbot.Cache.TTL), log)
	}

	return chatbot.NewParser(classifier, generator, chatbot.WithLogger(log)), nil
}

// RulesFromConfig converts configured rules. No rules means the built-in set.
func RulesFromConfig(rcs []config.RuleConfig) ([]chatbot.ClassificationRule, error) {
	if len(rcs) == 0 {
		return chatbot.DefaultRules(), nil
	}
	rules := make([]chatbot.ClassificationRule, 0, len(rcs))
	for i, rc := range rcs {
		intent := chatbot.ParseIntent(rc.Intent)
		if intent == chatbot.IntentUnknown {
			return nil, fmt.Errorf("chatbot.classifier.rules[%d]: unknown intent %q", i, rc.Intent)
		}
		rules = append(rules, chatbot.ClassificationRule{Intent: intent, Keywords: rc.Keywords})
	}
	return rules, nil
}

func newGenAIClient(cfg config.GenAIConfig, log logger.Logger) *commonhttp.Client {
	return commonhttp.NewClient(commonhttp.Options{
		Name:               "genai",
		BaseURL:            cfg.BaseURL,
		APIKey:             cfg.APIKey,
		Timeout:            config.GetDuration(cfg.Timeout),
		RetryAttempts:      uint(cfg.RetryAttempts),
		RetryDelay:         time.Duration(cfg.RetryDelay) * time.Millisecond,
		BreakerMaxFailures: uint32(cfg.BreakerMaxFailures),
		BreakerOpenTimeout: config.GetDuration(cfg.BreakerOpenTimeout),
	}, log)
}
