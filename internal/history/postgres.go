package history

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	insertEntryQuery = `INSERT INTO conversation_history (session_id, entry) VALUES ($1, $2)`

	pruneQuery = `DELETE FROM conversation_history
WHERE session_id = $1 AND id NOT IN (
	SELECT id FROM conversation_history WHERE session_id = $1 ORDER BY id DESC LIMIT $2
)`

	loadQuery = `SELECT entry FROM (
	SELECT id, entry FROM conversation_history WHERE session_id = $1 ORDER BY id DESC LIMIT $2
) recent ORDER BY id ASC`

	clearQuery = `DELETE FROM conversation_history WHERE session_id = $1`
)

// PostgresStore keeps history in the conversation_history table. Row order
// follows the serial id.
type PostgresStore struct {
	db         *sql.DB
	maxEntries int
}

func NewPostgresStore(db *sql.DB, maxEntries int) *PostgresStore {
	return &PostgresStore{db: db, maxEntries: pairedMax(maxEntries)}
}

func (s *PostgresStore) Append(ctx context.Context, sessionID string, entries ...string) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, e := range entries {
		if _, err = tx.ExecContext(ctx, insertEntryQuery, sessionID, e); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, pruneQuery, sessionID, s.maxEntries); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, loadQuery, sessionID, effectiveLimit(limit, s.maxEntries))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, clearQuery, sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
