package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behaviour every backend shares.
func storeContract(t *testing.T, newStore func(maxEntries int) Store) {
	ctx := context.Background()

	t.Run("empty session", func(t *testing.T) {
		s := newStore(10)
		got, err := s.Load(ctx, "nobody", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("append keeps order", func(t *testing.T) {
		s := newStore(10)
		require.NoError(t, s.Append(ctx, "s1", "hi", "Hello!"))
		require.NoError(t, s.Append(ctx, "s1", "weather in Paris?"))

		got, err := s.Load(ctx, "s1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"hi", "Hello!", "weather in Paris?"}, got)
	})

	t.Run("load limit returns most recent", func(t *testing.T) {
		s := newStore(10)
		require.NoError(t, s.Append(ctx, "s1", "a", "b", "c", "d"))

		got, err := s.Load(ctx, "s1", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, got)
	})

	t.Run("trimmed to max entries", func(t *testing.T) {
		s := newStore(4)
		for i := 0; i < 6; i++ {
			require.NoError(t, s.Append(ctx, "s1", fmt.Sprintf("m%d", i)))
		}
		got, err := s.Load(ctx, "s1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"m2", "m3", "m4", "m5"}, got)
	})

	t.Run("odd max keeps turns paired", func(t *testing.T) {
		s := newStore(3)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Append(ctx, "s1", fmt.Sprintf("user %d", i), fmt.Sprintf("reply %d", i)))
		}
		got, err := s.Load(ctx, "s1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"user 2", "reply 2"}, got)
	})

	t.Run("sessions are isolated and clearable", func(t *testing.T) {
		s := newStore(10)
		require.NoError(t, s.Append(ctx, "a", "one"))
		require.NoError(t, s.Append(ctx, "b", "two"))
		require.NoError(t, s.Clear(ctx, "a"))

		got, err := s.Load(ctx, "a", 0)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Load(ctx, "b", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"two"}, got)
	})

	t.Run("append nothing is a no-op", func(t *testing.T) {
		s := newStore(10)
		require.NoError(t, s.Append(ctx, "s1"))
		got, err := s.Load(ctx, "s1", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// ==========================
// Memory
// ==========================

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(max int) Store { return NewMemoryStore(max) })
}

func TestMemoryStore_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", "hi"))

	got, _ := s.Load(ctx, "s1", 0)
	got[0] = "mutated"

	again, _ := s.Load(ctx, "s1", 0)
	assert.Equal(t, []string{"hi"}, again)
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(ctx, "s1", fmt.Sprintf("m%d", i))
		}(i)
	}
	wg.Wait()

	got, _ := s.Load(ctx, "s1", 0)
	assert.Len(t, got, 50)
}

// ==========================
// Redis
// ==========================

func TestRedisStore(t *testing.T) {
	storeContract(t, func(max int) Store {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedisStore(rdb, max, time.Hour)
	})
}

func TestRedisStore_RefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, 10, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", "hi"))
	assert.Equal(t, time.Hour, mr.TTL(redisKey("s1")))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.Append(ctx, "s1", "again"))
	assert.Equal(t, time.Hour, mr.TTL(redisKey("s1")))

	mr.FastForward(2 * time.Hour)
	got, err := s.Load(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	s := NewRedisStore(rdb, 10, time.Hour)
	assert.Error(t, s.Append(context.Background(), "s1", "hi"))
	_, err := s.Load(context.Background(), "s1", 0)
	assert.Error(t, err)
}

// ==========================
// Postgres
// ==========================

func newMockStore(t *testing.T, max int) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, max), mock
}

func TestPostgresStore_Append(t *testing.T) {
	s, mock := newMockStore(t, 20)

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQuery).WithArgs("s1", "hi").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertEntryQuery).WithArgs("s1", "Hello!").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(pruneQuery).WithArgs("s1", 20).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Append(context.Background(), "s1", "hi", "Hello!"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_OddMaxPrunesToPairs(t *testing.T) {
	s, mock := newMockStore(t, 21)

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQuery).WithArgs("s1", "hi").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(pruneQuery).WithArgs("s1", 20).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Append(context.Background(), "s1", "hi"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairedMax(t *testing.T) {
	assert.Equal(t, DefaultMaxEntries, pairedMax(0))
	assert.Equal(t, 2, pairedMax(1))
	assert.Equal(t, 2, pairedMax(3))
	assert.Equal(t, 20, pairedMax(20))
	assert.Equal(t, 20, pairedMax(21))
}

func TestPostgresStore_AppendRollsBack(t *testing.T) {
	s, mock := newMockStore(t, 20)

	mock.ExpectBegin()
	mock.ExpectExec(insertEntryQuery).WithArgs("s1", "hi").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Append(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	s, mock := newMockStore(t, 20)

	rows := sqlmock.NewRows([]string{"entry"}).AddRow("hi").AddRow("Hello!")
	mock.ExpectQuery(loadQuery).WithArgs("s1", 5).WillReturnRows(rows)

	got, err := s.Load(context.Background(), "s1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "Hello!"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCapsLimit(t *testing.T) {
	s, mock := newMockStore(t, 20)
	mock.ExpectQuery(loadQuery).WithArgs("s1", 20).WillReturnRows(sqlmock.NewRows([]string{"entry"}))

	got, err := s.Load(context.Background(), "s1", 500)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Clear(t *testing.T) {
	s, mock := newMockStore(t, 20)
	mock.ExpectExec(clearQuery).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, s.Clear(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Factory
// ==========================

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Chatbot.History.Backend = "memory"
		s, closeFn, err := NewStore(ctx, cfg, nil, logger.NewTestLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{}
		cfg.Chatbot.History.Backend = "redis"
		cfg.Database.Redis.Address = mr.Addr()
		s, closeFn, err := NewStore(ctx, cfg, nil, logger.NewTestLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, s)
		assert.NoError(t, closeFn())
	})

	t.Run("redis shares client", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		cfg := &config.Config{}
		cfg.Chatbot.History.Backend = "redis"
		s, closeFn, err := NewStore(ctx, cfg, rdb, logger.NewTestLogger(t))
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, "s1", "hi"))
		require.NoError(t, closeFn())

		// the shared client stays open
		assert.NoError(t, rdb.Ping(ctx).Err())
		assert.Len(t, mr.Keys(), 1)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Chatbot.History.Backend = "cassandra"
		_, _, err := NewStore(ctx, cfg, nil, logger.NewTestLogger(t))
		assert.Error(t, err)
	})
}
