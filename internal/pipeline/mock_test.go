package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/assembly-cli/internal/model"
	"github.com/sells-group/assembly-cli/pkg/gemini"
)

// --- Gemini Mock ---

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) GenerateDocument(ctx context.Context, req gemini.DocumentRequest) (*gemini.TextResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.TextResponse), args.Error(1)
}

func (m *mockGeminiClient) GenerateImage(ctx context.Context, prompt string) (*gemini.ImageResponse, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.ImageResponse), args.Error(1)
}

func (m *mockGeminiClient) DownloadFile(ctx context.Context, uri string) ([]byte, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockGeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateChatGraph(ctx context.Context, doc model.Document, chat model.Chat, steps []model.AssemblyStep) (*model.ChatRecord, error) {
	args := m.Called(ctx, doc, chat, steps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChatRecord), args.Error(1)
}

func (m *mockStore) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChatSummary), args.Error(1)
}

func (m *mockStore) GetChat(ctx context.Context, chatID string) (*model.ChatRecord, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChatRecord), args.Error(1)
}

func (m *mockStore) DeleteChat(ctx context.Context, chatID string) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *mockStore) ListSteps(ctx context.Context, chatID string) ([]model.AssemblyStep, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AssemblyStep), args.Error(1)
}

func (m *mockStore) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockStore) CreateMessage(ctx context.Context, chatID string, role model.MessageRole, content string) (*model.Message, error) {
	args := m.Called(ctx, chatID, role, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
