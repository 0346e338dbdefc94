package model

import "time"

// Document is an uploaded manual. Summary is truncated at persistence time;
// the raw model summary never exceeds SummaryMaxChars in the store.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chat is a conversation anchored to one analyzed document.
type Chat struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DocumentID string    `json:"documentId"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one chat message.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatRecord is the full persisted result of a pipeline run: the chat, its
// document metadata, and all assembly steps in ascending StepIndex order.
type ChatRecord struct {
	ChatID        string         `json:"id"`
	Title         string         `json:"title"`
	FileName      string         `json:"fileName"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	AssemblySteps []AssemblyStep `json:"assemblySteps"`
}

// ChatSummary is the list-view projection of a chat.
type ChatSummary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FileName          string    `json:"fileName"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	AssemblyStepCount int       `json:"assemblyStepCount"`
}
