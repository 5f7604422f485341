// Package transcript is the optional audit log of relayed chat turns.
// The relay never reads it back into its in-memory history.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Turn is one persisted message of a conversation.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type dialect int

const (
	sqlite dialect = iota
	postgres
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS relay_turns (
		id BIGSERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_relay_turns_conversation ON relay_turns(conversation_id, id);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS relay_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_relay_turns_conversation ON relay_turns(conversation_id, id);
`

type Repo struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to dsn and creates the schema. postgres:// and
// postgresql:// URLs use Postgres; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	d := sqlite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		d = postgres
	}

	driver, source := "postgres", dsn
	if d == sqlite {
		driver = "sqlite3"
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create transcript directory %s: %w", dir, err)
			}
		}
		if !strings.Contains(source, "?") {
			source += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping transcript db: %w", err)
	}

	r := &Repo{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if r.dialect == postgres {
		schema = postgresSchema
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create transcript schema: %w", err)
	}
	return nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) SaveTurn(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO relay_turns (conversation_id, sender_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`),
		turn.ConversationID,
		turn.SenderID,
		turn.Role,
		turn.Content,
		turn.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// Recent returns up to limit newest turns of the conversation, oldest first.
func (r *Repo) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, conversation_id, sender_id, role, content, created_at
		FROM relay_turns
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`), conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var createdAt int64
		if err := rows.Scan(
			&t.ID,
			&t.ConversationID,
			&t.SenderID,
			&t.Role,
			&t.Content,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// rebind turns ? placeholders into $n for Postgres.
func (r *Repo) rebind(query string) string {
	if r.dialect != postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
