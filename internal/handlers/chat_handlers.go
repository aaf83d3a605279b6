package handlers

import (
	"bardchat-backend/internal/auth"
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/services"
	"bardchat-backend/internal/store"
	"bardchat-backend/pkg/httputil"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// changedCollectionsHeader tells clients which of their cached collections a
// mutation touched, so they can invalidate before the next read.
const changedCollectionsHeader = "X-Changed-Collections"

// ChatHandlers handles HTTP requests related to chats.
type ChatHandlers struct {
	chatService *services.ChatService
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService *services.ChatService) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
	}
}

// HandleCreateChat handles POST /v1/chats: create a chat seeded with the
// prompt as its first user message.
func (h *ChatHandlers) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	chat, err := h.chatService.CreateChat(r.Context(), userID, req.Prompt)
	if err != nil {
		if errors.Is(err, services.ErrEmptyPrompt) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[ChatHandlers] CreateChat failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	w.Header().Set(changedCollectionsHeader, "chats,messages")
	httputil.RespondJSON(w, http.StatusCreated, models.CreateChatResponse{ID: chat.ID})
}

// HandleListChats handles GET /v1/chats.
func (h *ChatHandlers) HandleListChats(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		log.Printf("[ChatHandlers] ListChats failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chats)
}

// HandleGetChat handles GET /v1/chats/{chatID}.
func (h *ChatHandlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), userID, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("[ChatHandlers] GetChat failed for chat %s: %v", chatID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get chat")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chat)
}

// HandleStreamMessage handles POST /v1/chats/{chatID}/messages: run one chat
// turn and relay the model's chunk records to the client as they arrive. The
// body is newline-delimited JSON chunk records, not a JSON document.
func (h *ChatHandlers) HandleStreamMessage(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req models.StreamMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	if req.Content == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	body, err := h.chatService.StreamReply(r.Context(), userID, chatID, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("[ChatHandlers] StreamMessage failed for chat %s: %v", chatID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to start stream")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(changedCollectionsHeader, "chats,messages")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; the internal branch still drains to
				// end-of-stream, so the reply is persisted regardless.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("[ChatHandlers] StreamMessage relay for chat %s ended: %v", chatID, err)
			}
			return
		}
	}
}

// HandleClassify handles POST /v1/chats/{chatID}/classify.
func (h *ChatHandlers) HandleClassify(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req models.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	if req.Prompt == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	verdict, err := h.chatService.Classify(r.Context(), userID, chatID, req.Prompt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("[ChatHandlers] Classify failed for chat %s: %v", chatID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to classify message")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.ClassifyResponse{Type: string(verdict.Type)})
}

// HandleGenerateImage handles POST /v1/chats/{chatID}/image.
func (h *ChatHandlers) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req models.GenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	msg, err := h.chatService.GenerateImage(r.Context(), userID, chatID, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		log.Printf("[ChatHandlers] GenerateImage failed for chat %s: %v", chatID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to generate image")
		return
	}

	w.Header().Set(changedCollectionsHeader, "chats,messages")
	httputil.RespondJSON(w, http.StatusOK, models.GenerateImageResponse{Message: *msg})
}

// requestIdentity extracts the authenticated user and the chat ID URL param,
// writing the error response itself when either is missing.
func (h *ChatHandlers) requestIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid chat ID")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, chatID, true
}
