package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/assembly-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedChat(t *testing.T, st *SQLiteStore, userID, title string) *model.ChatRecord {
	t.Helper()
	rec, err := st.CreateChatGraph(context.Background(),
		model.Document{UserID: userID, Name: "manual.pdf", Summary: "A bookshelf kit."},
		model.Chat{Title: title},
		[]model.AssemblyStep{
			{StepIndex: 1, Title: "Attach legs", Description: "Bolt the legs on.",
				Parts: []model.AssemblyPart{{Name: "bolt", Color: "#f97316"}}},
			{StepIndex: 2, Title: "Mount shelf", Description: "Slide the shelf in.",
				Parts: []model.AssemblyPart{{Name: "shelf", Color: "#0ea5e9"}}},
		},
	)
	require.NoError(t, err)
	return rec
}

// --- Chat graph ---

func TestSQLite_CreateChatGraph_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := seedChat(t, st, "user-1", "Bookshelf")
	require.Len(t, rec.AssemblySteps, 2)

	got, err := st.GetChat(ctx, rec.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "Bookshelf", got.Title)
	assert.Equal(t, "manual.pdf", got.FileName)
	require.Len(t, got.AssemblySteps, 2)
	assert.Equal(t, 1, got.AssemblySteps[0].StepIndex)
	assert.Equal(t, 2, got.AssemblySteps[1].StepIndex)
	require.Len(t, got.AssemblySteps[0].Parts, 1)
	assert.Equal(t, "#f97316", got.AssemblySteps[0].Parts[0].Color)
}

func TestSQLite_GetChat_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetChat(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListChats_FiltersByUser(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedChat(t, st, "user-1", "Bookshelf")
	seedChat(t, st, "user-2", "Desk")

	chats, err := st.ListChats(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Bookshelf", chats[0].Title)
	assert.Equal(t, 2, chats[0].AssemblyStepCount)

	all, err := st.ListChats(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListChats_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := seedChat(t, st, "user-1", "Bookshelf")
	newer := seedChat(t, st, "user-1", "Desk")

	// Pin creation times so ordering does not depend on test speed.
	_, err := st.db.ExecContext(ctx, `UPDATE chats SET created_at = ? WHERE id = ?`,
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), older.ChatID)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `UPDATE chats SET created_at = ? WHERE id = ?`,
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), newer.ChatID)
	require.NoError(t, err)

	chats, err := st.ListChats(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "Desk", chats[0].Title)
	assert.Equal(t, "Bookshelf", chats[1].Title)
}

func TestSQLite_DeleteChat_CascadesAndRemovesOrphanedDocument(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := seedChat(t, st, "user-1", "Bookshelf")

	require.NoError(t, st.DeleteChat(ctx, rec.ChatID))

	_, err := st.GetChat(ctx, rec.ChatID)
	require.ErrorIs(t, err, ErrNotFound)

	steps, err := st.ListSteps(ctx, rec.ChatID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	var docs int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&docs))
	assert.Zero(t, docs)
}

func TestSQLite_DeleteChat_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.DeleteChat(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Messages ---

func TestSQLite_Messages_CreateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := seedChat(t, st, "user-1", "Bookshelf")

	_, err := st.CreateMessage(ctx, rec.ChatID, model.MessageRoleUser, "which screw goes here?")
	require.NoError(t, err)
	_, err = st.CreateMessage(ctx, rec.ChatID, model.MessageRoleAssistant, "Use the M6 bolt from bag A.")
	require.NoError(t, err)

	msgs, err := st.ListMessages(ctx, rec.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)
}

func TestSQLite_CreateMessage_UnknownChat(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.CreateMessage(context.Background(), "missing", model.MessageRoleUser, "hello")
	require.ErrorIs(t, err, ErrNotFound)
}
