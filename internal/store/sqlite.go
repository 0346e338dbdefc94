package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/assembly-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS chats (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assembly_steps (
	id           TEXT PRIMARY KEY,
	chat_id      TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	step_index   INTEGER NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	parts        TEXT NOT NULL DEFAULT '[]',
	image_base64 TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_chats_document_id ON chats(document_id);
CREATE INDEX IF NOT EXISTS idx_assembly_steps_chat_index ON assembly_steps(chat_id, step_index);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateChatGraph(ctx context.Context, doc model.Document, chat model.Chat, steps []model.AssemblyStep) (*model.ChatRecord, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	chat.DocumentID = doc.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin chat graph")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, name, summary, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Name, doc.Summary, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (id, title, document_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		chat.ID, chat.Title, chat.DocumentID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert chat")
	}

	persisted := make([]model.AssemblyStep, 0, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		step.ChatID = chat.ID

		partsJSON, err := json.Marshal(step.Parts)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: marshal parts for step %d", step.StepIndex)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assembly_steps (id, chat_id, step_index, title, description, parts, image_base64, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			step.ID, step.ChatID, step.StepIndex, step.Title, step.Description, string(partsJSON), step.ImageBase64, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert step %d", step.StepIndex)
		}
		persisted = append(persisted, step)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit chat graph")
	}

	return &model.ChatRecord{
		ChatID:        chat.ID,
		Title:         chat.Title,
		FileName:      doc.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
		AssemblySteps: persisted,
	}, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	query := `SELECT c.id, c.title, d.name, c.created_at, c.updated_at,
	          (SELECT COUNT(*) FROM assembly_steps st WHERE st.chat_id = c.id) AS step_count
	          FROM chats c JOIN documents d ON d.id = c.document_id`
	var args []any

	if userID != "" {
		query += ` WHERE d.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY c.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list chats")
	}
	defer rows.Close()

	var chats []model.ChatSummary
	for rows.Next() {
		var c model.ChatSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.FileName, &c.CreatedAt, &c.UpdatedAt, &c.AssemblyStepCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chat")
		}
		chats = append(chats, c)
	}
	return chats, eris.Wrap(rows.Err(), "sqlite: list chats iterate")
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*model.ChatRecord, error) {
	var rec model.ChatRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.title, d.name, c.created_at, c.updated_at
		 FROM chats c JOIN documents d ON d.id = c.document_id
		 WHERE c.id = ?`,
		chatID,
	).Scan(&rec.ChatID, &rec.Title, &rec.FileName, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chat %s", chatID)
	}

	steps, err := s.ListSteps(ctx, chatID)
	if err != nil {
		return nil, err
	}
	rec.AssemblySteps = steps
	return &rec, nil
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete chat")
	}
	defer tx.Rollback()

	var documentID string
	err = tx.QueryRowContext(ctx,
		`SELECT document_id FROM chats WHERE id = ?`,
		chatID,
	).Scan(&documentID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve chat %s", chatID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return eris.Wrapf(err, "sqlite: delete chat %s", chatID)
	}

	// Garbage-collect the document when its last chat goes away.
	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chats WHERE document_id = ?`,
		documentID,
	).Scan(&remaining)
	if err != nil {
		return eris.Wrapf(err, "sqlite: count chats for document %s", documentID)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
			return eris.Wrapf(err, "sqlite: delete document %s", documentID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit delete chat")
}

func (s *SQLiteStore) ListSteps(ctx context.Context, chatID string) ([]model.AssemblyStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, step_index, title, description, parts, image_base64 FROM assembly_steps WHERE chat_id = ? ORDER BY step_index ASC`,
		chatID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list steps")
	}
	defer rows.Close()

	var steps []model.AssemblyStep
	for rows.Next() {
		var st model.AssemblyStep
		var partsJSON string
		if err := rows.Scan(&st.ID, &st.ChatID, &st.StepIndex, &st.Title, &st.Description, &partsJSON, &st.ImageBase64); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan step")
		}
		if err := json.Unmarshal([]byte(partsJSON), &st.Parts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal parts")
		}
		steps = append(steps, st)
	}
	return steps, eris.Wrap(rows.Err(), "sqlite: list steps iterate")
}

func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY created_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, chatID string, role model.MessageRole, content string) (*model.Message, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE id = ?)`,
		chatID,
	).Scan(&exists)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: check chat %s", chatID)
	}
	if !exists {
		return nil, ErrNotFound
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, chatID, string(role), content, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert message for chat %s", chatID)
	}

	return &model.Message{
		ID:        id,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}
