package app

import (
	"context"
	"fmt"
	"time"

	"chatbot-parser/internal/common/camunda"
	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/validation"
	"chatbot-parser/internal/server"
	conversationturn "chatbot-parser/internal/workers/chatbot/conversation-turn"
	generateresponse "chatbot-parser/internal/workers/chatbot/generate-response"
	parseusermessage "chatbot-parser/internal/workers/chatbot/parse-user-message"
	"chatbot-parser/pkg/registry"
)

// Handlers builds the job handler of every chatbot task type, keyed by task
// type. Inputs are validated against the activity registry schemas.
func (a *App) Handlers(reg *registry.ActivityRegistry) (map[string]camunda.JobHandler, error) {
	if reg == nil {
		reg = registry.Default()
	}
	schemas := make(map[string]*validation.Schema)
	timeouts := make(map[string]time.Duration)
	for _, taskType := range []string{parseusermessage.TaskType, generateresponse.TaskType, conversationturn.TaskType} {
		schema, err := reg.InputSchema(taskType)
		if err != nil {
			return nil, fmt.Errorf("input schema for %s: %w", taskType, err)
		}
		schemas[taskType] = schema
		if act, ok := reg.Find(taskType); ok {
			timeouts[taskType] = act.TimeoutDuration()
		}
	}

	// Worker config wins over the registry; otherwise the package default stays.
	timeout := func(taskType string, def time.Duration) time.Duration {
		if ms := a.Config.Workers[taskType].Timeout; ms > 0 {
			return config.GetDuration(ms)
		}
		if d := timeouts[taskType]; d > 0 {
			return d
		}
		return def
	}

	parseCfg := parseusermessage.LoadConfig()
	parseCfg.Timeout = timeout(parseusermessage.TaskType, parseCfg.Timeout)
	respondCfg := generateresponse.LoadConfig()
	respondCfg.Timeout = timeout(generateresponse.TaskType, respondCfg.Timeout)
	turnCfg := conversationturn.LoadConfig()
	turnCfg.Timeout = timeout(conversationturn.TaskType, turnCfg.Timeout)

	return map[string]camunda.JobHandler{
		parseusermessage.TaskType: parseusermessage.NewHandler(parseCfg, a.Parser, schemas[parseusermessage.TaskType], a.Logger),
		generateresponse.TaskType: generateresponse.NewHandler(respondCfg, a.Parser, schemas[generateresponse.TaskType], a.Logger),
		conversationturn.TaskType: conversationturn.NewHandler(turnCfg, a.Service, schemas[conversationturn.TaskType], a.Logger),
	}, nil
}

// StartWorkers connects to Zeebe and opens the enabled job workers. The
// returned function stops them and closes the connection.
func (a *App) StartWorkers(ctx context.Context, reg *registry.ActivityRegistry) (func(), error) {
	if reg == nil {
		reg = registry.Default()
	}
	handlers, err := a.Handlers(reg)
	if err != nil {
		return nil, err
	}

	client, err := camunda.NewClient(ctx, camunda.ConfigFrom(a.Config.Camunda), a.Logger)
	if err != nil {
		return nil, err
	}
	a.Checks = append(a.Checks, server.Check{Name: "zeebe", Ping: client.HealthCheck})

	manager := camunda.NewManager(client.Zeebe(), a.Config, a.Logger)
	for taskType, h := range handlers {
		if act, ok := reg.Find(taskType); ok && !act.Runnable() {
			a.Logger.Info("skipping activity", map[string]interface{}{
				"taskType": taskType,
				"status":   string(act.ImplementationStatus),
			})
			continue
		}
		manager.Start(taskType, h)
	}
	a.Logger.Info("workers running", map[string]interface{}{"count": manager.Running()})

	return func() {
		manager.Close()
		if err := client.Close(); err != nil {
			a.Logger.Warn("closing zeebe client failed", map[string]interface{}{"error": err})
		}
	}, nil
}
