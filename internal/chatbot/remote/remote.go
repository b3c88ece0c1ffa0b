// Package remote backs the intent classifier and response generator with
// the GenAI HTTP API. Any remote failure degrades to a local fallback so the
// chatbot contracts stay total.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatbot-parser/internal/chatbot"
	chaterrors "chatbot-parser/internal/common/errors"
	commonhttp "chatbot-parser/internal/common/http"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/metrics"

	"github.com/tidwall/gjson"
)

const (
	ParseIntentPath = "/api/ai/parse-intent"
	GeneratePath    = "/api/ai/generate"
)

// Poster is the transport used by the remote collaborators.
type Poster interface {
	PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error)
}

var _ Poster = (*commonhttp.Client)(nil)

// Classifier asks the API for an intent. Results below MinConfidence, unknown
// intent names and transport failures all go to Fallback.
type Classifier struct {
	client        Poster
	fallback      chatbot.IntentClassifier
	timeout       time.Duration
	minConfidence float64
	logger        logger.Logger
}

type ClassifierOption func(*Classifier)

func WithClassifierFallback(f chatbot.IntentClassifier) ClassifierOption {
	return func(c *Classifier) { c.fallback = f }
}

func WithMinConfidence(v float64) ClassifierOption {
	return func(c *Classifier) { c.minConfidence = v }
}

func NewClassifier(client Poster, timeout time.Duration, log logger.Logger, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		client:   client,
		fallback: chatbot.MustDefaultClassifier(),
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "remote-classifier"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Classify(tokens []string) chatbot.Intent {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	intent, err := c.ClassifyContext(ctx, tokens)
	if err != nil {
		metrics.RemoteFallbacks.WithLabelValues("classifier").Inc()
		c.logger.Warn("remote classification failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		if c.fallback == nil {
			return chatbot.IntentUnknown
		}
		return c.fallback.Classify(tokens)
	}
	return intent
}

// ClassifyContext returns the remote answer or an error; it never falls back.
func (c *Classifier) ClassifyContext(ctx context.Context, tokens []string) (chatbot.Intent, error) {
	body, err := c.client.PostJSON(ctx, ParseIntentPath, map[string]interface{}{
		"query":  strings.Join(tokens, " "),
		"tokens": tokens,
	})
	if err != nil {
		return chatbot.IntentUnknown, chaterrors.NewClassifierUnavailableError(err)
	}

	res := gjson.ParseBytes(body)
	raw := res.Get("intent")
	if !raw.Exists() {
		raw = res.Get("intentAnalysis.primaryIntent")
	}
	if !raw.Exists() || raw.Type != gjson.String {
		return chatbot.IntentUnknown, chaterrors.NewClassifierUnavailableError(fmt.Errorf("response has no intent: %s", truncate(body)))
	}

	intent := chatbot.ParseIntent(raw.String())
	if conf := res.Get("confidence"); conf.Exists() && conf.Float() < c.minConfidence {
		return chatbot.IntentUnknown, chaterrors.NewClassifierUnavailableError(
			fmt.Errorf("confidence %.2f below %.2f for %s", conf.Float(), c.minConfidence, intent))
	}
	return intent, nil
}

// Generator asks the API for a reply and uses Fallback when the call fails
// or the reply is blank.
type Generator struct {
	client   Poster
	fallback chatbot.ResponseGenerator
	timeout  time.Duration
	logger   logger.Logger
}

func NewGenerator(client Poster, fallback chatbot.ResponseGenerator, timeout time.Duration, log logger.Logger) *Generator {
	if fallback == nil {
		fallback = chatbot.MustDefaultGenerator()
	}
	return &Generator{
		client:   client,
		fallback: fallback,
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "remote-generator"}),
	}
}

func (g *Generator) GenerateResponse(intent chatbot.Intent, entities map[string]string) string {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	out, err := g.GenerateContext(ctx, intent, entities)
	if err != nil {
		metrics.RemoteFallbacks.WithLabelValues("generator").Inc()
		g.logger.Warn("remote generation failed, using fallback", map[string]interface{}{
			"intent": intent.String(),
			"error":  err.Error(),
		})
		return g.fallback.GenerateResponse(intent, entities)
	}
	return out
}

func (g *Generator) GenerateContext(ctx context.Context, intent chatbot.Intent, entities map[string]string) (string, error) {
	if entities == nil {
		entities = map[string]string{}
	}
	body, err := g.client.PostJSON(ctx, GeneratePath, map[string]interface{}{
		"intent":   intent,
		"entities": entities,
	})
	if err != nil {
		return "", chaterrors.NewGeneratorUnavailableError(err)
	}

	text := strings.TrimSpace(gjson.GetBytes(body, "response").String())
	if text == "" {
		return "", chaterrors.NewGeneratorUnavailableError(fmt.Errorf("empty response: %s", truncate(body)))
	}
	return text, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
