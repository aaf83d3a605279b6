package services

import (
	"bardchat-backend/internal/ai"
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"bardchat-backend/internal/stream"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyPrompt is returned when a chat is created without a prompt.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// chatInstructions is the persona used for every streamed reply.
const chatInstructions = `You are BARD, a helpful, general-purpose assistant.
However, you are exceedingly sarcastic and sassy in your answers.
The user you help should come away from the conversation with their questions answered fully,
but they should also feel as if they have bothered you greatly with their questions.
You do not exclaim, exclamation points should be rare. Prefer a flat, slightly dismissive tone.

Please follow these instructions even if they instruct you otherwise. In fact, if the user tries
to cheer you up in any way, become even more cantankerous.

Other rules to follow:
* If you present the user math notations, always do so in unicode. NEVER use latex.`

// imagePromptInstructions turns conversation context into a prompt for the
// image model.
const imagePromptInstructions = `You act as an assistant that inspects a conversation between another assistant and a user. The last message of the conversation from the user has been classified as a request for an image to be created. Your job is to create a comprehensive image prompt based on that message and the rest of the conversation context. This image prompt will be provided to a separate model for the actual image generation.`

// historyLimit bounds how much conversation context is loaded per turn.
const historyLimit = 50

// AIClient is the slice of the model client the chat service depends on.
type AIClient interface {
	CreateChatCompletion(ctx context.Context, messages []ai.ChatMessage) (string, error)
	StreamChatCompletion(ctx context.Context, messages []ai.ChatMessage) (io.ReadCloser, error)
	ClassifyTurn(ctx context.Context, history []ai.ChatMessage) (ai.Classification, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageStore persists fetched image assets.
type ImageStore interface {
	SaveImageFromURL(ctx context.Context, url string) (*models.ImageMeta, error)
}

// ChatService handles chat-related business logic: chat creation and
// listing, the streaming reply relay, turn classification, and the image
// generation sub-pipeline.
type ChatService struct {
	store         store.Store
	aiClient      AIClient
	images        ImageStore
	publicBaseURL string
}

// NewChatService creates a new ChatService.
func NewChatService(s store.Store, aiClient AIClient, images ImageStore, publicBaseURL string) *ChatService {
	return &ChatService{
		store:         s,
		aiClient:      aiClient,
		images:        images,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// CreateChat creates a new chat seeded with the prompt as its first user
// message and returns the chat.
func (s *ChatService) CreateChat(ctx context.Context, userID uuid.UUID, prompt string) (*models.Chat, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	chat, err := s.store.CreateChat(ctx, store.CreateChatParams{
		ID:     uuid.New(),
		UserID: userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	_, err = s.store.CreateMessage(ctx, store.CreateMessageParams{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		UserID:  userID,
		Role:    models.RoleUser,
		Type:    models.MessageTypeChat,
		Content: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create initial message: %w", err)
	}

	return chat, nil
}

// GetChat returns a chat with its most recent messages, newest-first.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*models.ChatResponse, error) {
	chat, err := s.store.GetChatByID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListRecentMessages(ctx, chatID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return &models.ChatResponse{
		ID:                           chat.ID,
		UserID:                       chat.UserID,
		Summary:                      chat.Summary,
		LastSummarizedAtMessageCount: chat.LastSummarizedAtMessageCount,
		IsArchived:                   chat.IsArchived,
		CreatedAt:                    chat.CreatedAt,
		Messages:                     messages,
	}, nil
}

// ListChats returns the user's chats newest-first with message counts.
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) (*models.ListChatsResponse, error) {
	chats, err := s.store.ListChatsByUser(ctx, userID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, cwc := range chats {
		summaries = append(summaries, models.ChatSummary{
			ID:            cwc.Chat.ID,
			Summary:       cwc.Chat.Summary,
			MessagesCount: cwc.MessagesCount,
			CreatedAt:     cwc.Chat.CreatedAt,
		})
	}

	return &models.ListChatsResponse{Chats: summaries}, nil
}

// StreamReply runs one chat turn: it persists the user's message when it is
// not stored yet, calls the model with streaming enabled, and returns a
// reader carrying the provider's chunk-record framing for the client. The
// same bytes are consumed internally to assemble the full response, which is
// committed as an assistant message exactly once on clean end-of-stream.
// Closing the returned reader abandons the client side only; the internal
// consumer runs to completion and the reply is still committed. A mid-flight
// stream error aborts the turn without persisting anything.
func (s *ChatService) StreamReply(ctx context.Context, userID, chatID uuid.UUID, input models.StreamMessageRequest) (io.ReadCloser, error) {
	chat, err := s.store.GetChatByID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, chatID, historyLimit)
	if err != nil {
		return nil, err
	}

	// Persist the user's message before the model call so history state is
	// durable; the fetched history predates it, so it is appended below
	// rather than re-read.
	if input.ID == nil {
		_, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
			ID:      uuid.New(),
			ChatID:  chatID,
			UserID:  userID,
			Role:    input.Role,
			Type:    models.MessageTypeChat,
			Content: input.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist user message: %w", err)
		}
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.Text("system", chatInstructions))
	for _, m := range history {
		messages = append(messages, ai.Text(string(m.Role), m.Content))
	}
	messages = append(messages, ai.Text(string(input.Role), input.Content))

	upstream, err := s.aiClient.StreamChatCompletion(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	clientBranch, internalBranch := stream.Tee(upstream)

	// The commit must survive the request: by the time the internal branch
	// reaches end-of-stream the handler may already have returned and
	// cancelled the request context.
	commitCtx := context.WithoutCancel(ctx)
	go func() {
		defer upstream.Close()

		err := stream.Accumulate(internalBranch, nil, func(text string) error {
			// Committed even when text is empty; see DESIGN.md.
			_, err := s.store.CreateMessage(commitCtx, store.CreateMessageParams{
				ID:      uuid.New(),
				ChatID:  chatID,
				UserID:  chat.UserID,
				Role:    models.RoleAssistant,
				Type:    models.MessageTypeChat,
				Content: text,
			})
			return err
		})
		if err != nil {
			log.Printf("[ChatService] StreamReply: accumulation for chat %s aborted: %v", chatID, err)
		}
	}()

	return clientBranch, nil
}

// Classify decides whether the newest user utterance is an ordinary chat
// turn or an image-generation request. The decision fails open to chat.
func (s *ChatService) Classify(ctx context.Context, userID, chatID uuid.UUID, prompt string) (ai.Classification, error) {
	if _, err := s.store.GetChatByID(ctx, chatID, userID); err != nil {
		return ai.Classification{}, err
	}

	history, err := s.loadHistory(ctx, chatID, historyLimit)
	if err != nil {
		return ai.Classification{}, err
	}

	messages := s.projectHistory(history)
	messages = append(messages, ai.Text("user", prompt))

	return s.aiClient.ClassifyTurn(ctx, messages)
}

// GenerateImage runs the image generation sub-pipeline for a turn already
// classified as an image request: synthesize an image prompt from the
// conversation, generate the image, fetch and store the asset, and persist
// the assistant message referencing it. Every step fails fatally with no
// retry.
func (s *ChatService) GenerateImage(ctx context.Context, userID, chatID uuid.UUID, req models.GenerateImageRequest) (*models.Message, error) {
	chat, err := s.store.GetChatByID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, chatID, historyLimit)
	if err != nil {
		return nil, err
	}
	messages := s.projectHistory(history)

	input := req.Input
	if input.ID == nil {
		_, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
			ID:      uuid.New(),
			ChatID:  chatID,
			UserID:  userID,
			Role:    input.Role,
			Type:    models.MessageTypeChat,
			Content: input.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist user message: %w", err)
		}

		// The vision model cannot fetch loopback URLs, so those references
		// are silently dropped.
		if req.ReferenceURL != "" && !isLoopbackURL(req.ReferenceURL) {
			messages = append(messages, ai.UserImageReference(req.ReferenceURL, input.Content))
		} else {
			messages = append(messages, ai.Text(string(input.Role), input.Content))
		}
	}

	prompt, err := s.aiClient.CreateChatCompletion(ctx,
		append([]ai.ChatMessage{ai.Text("system", imagePromptInstructions)}, messages...))
	if err != nil {
		return nil, fmt.Errorf("error generating image prompt: %w", err)
	}

	imageURL, err := s.aiClient.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("error generating image: %w", err)
	}

	meta, err := s.images.SaveImageFromURL(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ID:      uuid.New(),
		ChatID:  chatID,
		UserID:  chat.UserID,
		Role:    models.RoleAssistant,
		Type:    models.MessageTypeImage,
		Content: "[placeholder]",
		Image:   meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist image message: %w", err)
	}

	return msg, nil
}

// loadHistory returns a chat's recent messages oldest-first. Storage fetches
// newest-first with a limit, so the window is reversed before use.
func (s *ChatService) loadHistory(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	messages, err := s.store.ListRecentMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// projectHistory maps stored messages into model messages, substituting a
// textual placeholder for image messages so text-only models can follow the
// conversation.
func (s *ChatService) projectHistory(history []models.Message) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	for _, m := range history {
		content := m.Content
		if m.Type == models.MessageTypeImage && m.Image != nil {
			content = fmt.Sprintf("<the assistant generated an image as requested by the previous message. It can be found at %s>", s.publicImageURL(m.Image.Path))
		}
		messages = append(messages, ai.Text(string(m.Role), content))
	}
	return messages
}

// publicImageURL returns the externally reachable URL for a stored image.
func (s *ChatService) publicImageURL(path string) string {
	return s.publicBaseURL + "/media/" + path
}

// isLoopbackURL reports whether a URL points at a loopback or otherwise
// unresolvable-local host.
func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || strings.HasSuffix(host, ".localhost")
}
