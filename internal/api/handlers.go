package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/assembly-cli/internal/model"
	"github.com/sells-group/assembly-cli/internal/pipeline"
	"github.com/sells-group/assembly-cli/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateChat accepts a multipart PDF upload and runs the analysis
// pipeline synchronously, returning the persisted chat graph.
func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	userID := strings.TrimSpace(r.FormValue("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	pdf, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	if int64(len(pdf)) > s.maxUpload {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	pages, err := validatePDF(pdf)
	if err != nil {
		zap.L().Warn("upload rejected", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, "file is not a valid PDF")
		return
	}

	zap.L().Info("analysis requested",
		zap.String("file", header.Filename),
		zap.Int("pages", pages),
		zap.Int("bytes", len(pdf)),
	)

	rec, err := s.pipeline.Run(r.Context(), pipeline.AnalyzeInput{
		UserID:   userID,
		Title:    title,
		FileName: header.Filename,
		PDF:      pdf,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		zap.L().Error("list chats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list chats")
		return
	}
	if chats == nil {
		chats = []model.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	err := s.store.DeleteChat(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		zap.L().Error("delete chat", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	// GetChat distinguishes a missing chat from one with zero steps.
	rec, err := s.store.GetChat(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		zap.L().Error("list steps", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list steps")
		return
	}
	steps := rec.AssemblySteps
	if steps == nil {
		steps = []model.AssemblyStep{}
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	msgs, err := s.store.ListMessages(r.Context(), chatID)
	if err != nil {
		zap.L().Error("list messages", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := model.MessageRole(req.Role)
	if role != model.MessageRoleUser && role != model.MessageRoleAssistant {
		writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := s.store.CreateMessage(r.Context(), chatID, role, req.Content)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		zap.L().Error("create message", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleGenerate proxies a plain prompt to the text model.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := s.gemini.GenerateText(r.Context(), req.Prompt)
	if err != nil {
		zap.L().Error("generate text", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// writePipelineError maps a pipeline failure onto the API error taxonomy.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		zap.L().Error("pipeline failed",
			zap.Int("status", pErr.Status),
			zap.String("message", pErr.Message),
			zap.Error(err),
		)
		writeError(w, pErr.Status, pErr.Message)
		return
	}
	zap.L().Error("pipeline failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "analysis failed")
}
