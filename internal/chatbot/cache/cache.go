// Package cache memoizes intent classification in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const KeyPrefix = "chatbot:intent:"

// Classifier wraps another classifier. Identical token sequences, compared
// case-insensitively, reuse the stored intent until TTL expires. Redis errors
// bypass the cache.
type Classifier struct {
	next    chatbot.IntentClassifier
	redis   redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
	logger  logger.Logger
}

func NewClassifier(next chatbot.IntentClassifier, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Classifier {
	if next == nil {
		next = chatbot.MustDefaultClassifier()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Classifier{
		next:    next,
		redis:   rdb,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
		logger:  log.WithFields(map[string]interface{}{"component": "intent-cache"}),
	}
}

func (c *Classifier) Classify(tokens []string) chatbot.Intent {
	return c.ClassifyContext(context.Background(), tokens)
}

// ClassifyContext bounds each Redis round trip by the cache timeout. The
// wrapped classifier runs outside that budget so slow results still get
// stored.
func (c *Classifier) ClassifyContext(ctx context.Context, tokens []string) chatbot.Intent {
	key := Key(tokens)

	getCtx, cancel := context.WithTimeout(ctx, c.timeout)
	val, err := c.redis.Get(getCtx, key).Result()
	cancel()
	switch {
	case err == nil:
		if intent := chatbot.ParseIntent(val); intent.Valid() && intent.String() == val {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return intent
		}
		// stale or foreign value; classify again and overwrite
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("intent cache read failed", map[string]interface{}{"error": err.Error()})
		return c.next.Classify(tokens)
	}

	intent := c.next.Classify(tokens)
	if !intent.Valid() {
		intent = chatbot.IntentUnknown
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.redis.Set(setCtx, key, intent.String(), c.ttl).Err(); err != nil {
		c.logger.Warn("intent cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return intent
}

// Key derives the cache key for a token sequence.
func Key(tokens []string) string {
	h := sha256.New()
	for i, tok := range tokens {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(strings.ToLower(tok)))
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
