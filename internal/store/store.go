package store

import (
	"context"
	"errors"

	"github.com/sells-group/assembly-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the analysis pipeline and the
// chat API. CreateChatGraph and DeleteChat are transactional: all their
// writes become visible together or not at all.
type Store interface {
	// CreateChatGraph persists one document, its chat, and all assembly
	// steps atomically, returning the full persisted record.
	CreateChatGraph(ctx context.Context, doc model.Document, chat model.Chat, steps []model.AssemblyStep) (*model.ChatRecord, error)

	// ListChats returns chat summaries, newest first. An empty userID
	// lists all chats.
	ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error)

	// GetChat returns one chat with its ordered steps, or ErrNotFound.
	GetChat(ctx context.Context, chatID string) (*model.ChatRecord, error)

	// DeleteChat removes a chat and its steps and messages; when the
	// chat's document has no other chats left, the document is deleted
	// too. Returns ErrNotFound for an unknown chat.
	DeleteChat(ctx context.Context, chatID string) error

	// ListSteps returns a chat's steps in ascending StepIndex order.
	ListSteps(ctx context.Context, chatID string) ([]model.AssemblyStep, error)

	// Messages
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, chatID string, role model.MessageRole, content string) (*model.Message, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
