// Package history persists the rolling conversation history per session.
//
// Entries are stored oldest first and alternate between user messages and
// chatbot replies, the same shape as ConversationModel.ConversationHistory.
package history

import (
	"context"
	"fmt"
	"time"

	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/database"
	"chatbot-parser/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultMaxEntries = 100

// Store keeps per-session history. Load returns at most limit of the most
// recent entries, oldest first; limit <= 0 means the store's maximum. The
// maximum is always even; an odd cap is rounded down.
type Store interface {
	Append(ctx context.Context, sessionID string, entries ...string) error
	Load(ctx context.Context, sessionID string, limit int) ([]string, error)
	Clear(ctx context.Context, sessionID string) error
}

// pairedMax rounds a configured cap down to whole user/reply pairs so
// trimming never keeps a reply without its message.
func pairedMax(n int) int {
	if n <= 0 {
		return DefaultMaxEntries
	}
	if n < 2 {
		return 2
	}
	return n - n%2
}

func effectiveLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// NewStore builds the backend named by cfg.Chatbot.History.Backend. The redis
// backend reuses rdb when it is non-nil. The returned close function releases
// only connections the store opened itself.
func NewStore(ctx context.Context, cfg *config.Config, rdb redis.Cmdable, log logger.Logger) (Store, func() error, error) {
	hc := cfg.Chatbot.History
	ttl := time.Duration(hc.TTL) * time.Millisecond

	switch hc.Backend {
	case "", "memory":
		return NewMemoryStore(hc.MaxEntries), func() error { return nil }, nil

	case "redis":
		if rdb != nil {
			return NewRedisStore(rdb, hc.MaxEntries, ttl), func() error { return nil }, nil
		}
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, err
		}
		return NewRedisStore(rc.Client, hc.MaxEntries, ttl), rc.Close, nil

	case "postgres":
		if hc.RunMigrations {
			if err := Migrate(cfg.Database.Postgres.GetURL()); err != nil {
				return nil, nil, err
			}
			log.Info("history migrations applied", nil)
		}
		pc, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := pc.Ping(ctx); err != nil {
			_ = pc.Close()
			return nil, nil, err
		}
		return NewPostgresStore(pc.DB, hc.MaxEntries), pc.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}
