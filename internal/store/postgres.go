package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/assembly-cli/internal/db"
	"github.com/sells-group/assembly-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_document": `INSERT INTO documents (id, user_id, name, summary, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"insert_chat":     `INSERT INTO chats (id, title, document_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"insert_step":     `INSERT INTO assembly_steps (id, chat_id, step_index, title, description, parts, image_base64, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"list_steps":      `SELECT id, chat_id, step_index, title, description, parts, image_base64 FROM assembly_steps WHERE chat_id = $1 ORDER BY step_index ASC`,
	"insert_message":  `INSERT INTO messages (id, chat_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"list_messages":   `SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chats (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title       TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assembly_steps (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	chat_id      TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	step_index   INTEGER NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	parts        JSONB NOT NULL DEFAULT '[]',
	image_base64 TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_chats_document_id ON chats(document_id);
CREATE INDEX IF NOT EXISTS idx_chats_created_at ON chats(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assembly_steps_chat_id ON assembly_steps(chat_id);
CREATE INDEX IF NOT EXISTS idx_assembly_steps_chat_index ON assembly_steps(chat_id, step_index);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateChatGraph(ctx context.Context, doc model.Document, chat model.Chat, steps []model.AssemblyStep) (*model.ChatRecord, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	doc.CreatedAt, doc.UpdatedAt = now, now
	chat.DocumentID = doc.ID
	chat.CreatedAt, chat.UpdatedAt = now, now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin chat graph")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, user_id, name, summary, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.UserID, doc.Name, doc.Summary, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chats (id, title, document_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, chat.Title, chat.DocumentID, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert chat")
	}

	persisted := make([]model.AssemblyStep, 0, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		step.ChatID = chat.ID

		partsJSON, err := json.Marshal(step.Parts)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal parts for step %d", step.StepIndex)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO assembly_steps (id, chat_id, step_index, title, description, parts, image_base64, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			step.ID, step.ChatID, step.StepIndex, step.Title, step.Description, partsJSON, step.ImageBase64, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert step %d", step.StepIndex)
		}
		persisted = append(persisted, step)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit chat graph")
	}

	return &model.ChatRecord{
		ChatID:        chat.ID,
		Title:         chat.Title,
		FileName:      doc.Name,
		CreatedAt:     chat.CreatedAt,
		UpdatedAt:     chat.UpdatedAt,
		AssemblySteps: persisted,
	}, nil
}

func (s *PostgresStore) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	query := `SELECT c.id, c.title, d.name, c.created_at, c.updated_at,
	          (SELECT COUNT(*) FROM assembly_steps st WHERE st.chat_id = c.id) AS step_count
	          FROM chats c JOIN documents d ON d.id = c.document_id`
	args := []any{}

	if userID != "" {
		query += ` WHERE d.user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list chats")
	}
	defer rows.Close()

	var chats []model.ChatSummary
	for rows.Next() {
		var c model.ChatSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.FileName, &c.CreatedAt, &c.UpdatedAt, &c.AssemblyStepCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chat")
		}
		chats = append(chats, c)
	}
	return chats, eris.Wrap(rows.Err(), "postgres: list chats iterate")
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (*model.ChatRecord, error) {
	var rec model.ChatRecord
	err := s.pool.QueryRow(ctx,
		`SELECT c.id, c.title, d.name, c.created_at, c.updated_at
		 FROM chats c JOIN documents d ON d.id = c.document_id
		 WHERE c.id = $1`,
		chatID,
	).Scan(&rec.ChatID, &rec.Title, &rec.FileName, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get chat %s", chatID)
	}

	steps, err := s.ListSteps(ctx, chatID)
	if err != nil {
		return nil, err
	}
	rec.AssemblySteps = steps
	return &rec, nil
}

func (s *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete chat")
	}
	defer tx.Rollback(ctx)

	var documentID string
	err = tx.QueryRow(ctx,
		`SELECT document_id FROM chats WHERE id = $1`,
		chatID,
	).Scan(&documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return eris.Wrapf(err, "postgres: resolve chat %s", chatID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID); err != nil {
		return eris.Wrapf(err, "postgres: delete chat %s", chatID)
	}

	// Garbage-collect the document when its last chat goes away.
	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM chats WHERE document_id = $1`,
		documentID,
	).Scan(&remaining)
	if err != nil {
		return eris.Wrapf(err, "postgres: count chats for document %s", documentID)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
			return eris.Wrapf(err, "postgres: delete document %s", documentID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete chat")
}

func (s *PostgresStore) ListSteps(ctx context.Context, chatID string) ([]model.AssemblyStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, step_index, title, description, parts, image_base64 FROM assembly_steps WHERE chat_id = $1 ORDER BY step_index ASC`,
		chatID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list steps")
	}
	defer rows.Close()

	var steps []model.AssemblyStep
	for rows.Next() {
		var st model.AssemblyStep
		var partsJSON []byte
		if err := rows.Scan(&st.ID, &st.ChatID, &st.StepIndex, &st.Title, &st.Description, &partsJSON, &st.ImageBase64); err != nil {
			return nil, eris.Wrap(err, "postgres: scan step")
		}
		if err := json.Unmarshal(partsJSON, &st.Parts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal parts")
		}
		steps = append(steps, st)
	}
	return steps, eris.Wrap(rows.Err(), "postgres: list steps iterate")
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) CreateMessage(ctx context.Context, chatID string, role model.MessageRole, content string) (*model.Message, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`,
		chatID,
	).Scan(&exists)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: check chat %s", chatID)
	}
	if !exists {
		return nil, ErrNotFound
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, chatID, string(role), content, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert message for chat %s", chatID)
	}

	return &model.Message{
		ID:        id,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}
