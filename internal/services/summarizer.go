package services

import (
	"bardchat-backend/internal/ai"
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"context"
	"fmt"
	"log"
	"strings"
)

// summaryInstructions asks the model for a short chat title.
const summaryInstructions = `Summarize the following conversation into a title of no more than 100 characters. Respond with the title only: no prefix like "Title:", no surrounding quotes, and no trailing punctuation.`

// SummarizerService maintains per-chat summaries. It is driven by message
// after-create hooks and re-derives a summary whenever a chat has grown
// enough since it was last summarized.
type SummarizerService struct {
	store       store.Store
	aiClient    AIClient
	minMessages int
	gap         int
}

// NewSummarizerService creates a summarizer. A chat gets its first summary
// once it holds more than minMessages messages, and a fresh one each time
// more than gap messages have arrived since the previous summarization.
func NewSummarizerService(s store.Store, aiClient AIClient, minMessages, gap int) *SummarizerService {
	return &SummarizerService{
		store:       s,
		aiClient:    aiClient,
		minMessages: minMessages,
		gap:         gap,
	}
}

// HandleMessageCreated is the store after-create hook. Summarization is only
// considered once a turn has completed, which is when the chat's newest
// message is from the assistant. Hooks run asynchronously, so the chat's
// actual last message is consulted rather than the triggering one.
func (s *SummarizerService) HandleMessageCreated(ctx context.Context, msg *models.Message) {
	last, err := s.store.LastMessage(ctx, msg.ChatID)
	if err != nil {
		log.Printf("[Summarizer] failed to load last message for chat %s: %v", msg.ChatID, err)
		return
	}
	if last.Role != models.RoleAssistant {
		return
	}

	chat, err := s.store.GetChatByID(ctx, msg.ChatID, msg.UserID)
	if err != nil {
		log.Printf("[Summarizer] failed to load chat %s: %v", msg.ChatID, err)
		return
	}

	count, err := s.store.CountMessages(ctx, chat.ID)
	if err != nil {
		log.Printf("[Summarizer] failed to count messages for chat %s: %v", chat.ID, err)
		return
	}

	if !s.due(chat, count) {
		return
	}

	if err := s.summarize(ctx, chat, count); err != nil {
		log.Printf("[Summarizer] failed to summarize chat %s: %v", chat.ID, err)
	}
}

// due reports whether the chat needs (re)summarizing at the given message
// count.
func (s *SummarizerService) due(chat *models.Chat, count int) bool {
	if chat.Summary == nil {
		return count > s.minMessages
	}
	return count-chat.LastSummarizedAtMessageCount > s.gap
}

// summarize derives a fresh summary from the chat's full history and stores
// it along with the message count it was derived at.
func (s *SummarizerService) summarize(ctx context.Context, chat *models.Chat, count int) error {
	history, err := s.store.ListRecentMessages(ctx, chat.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	// The instruction rides as the final user turn, after the transcript.
	messages := make([]ai.ChatMessage, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages, ai.Text(string(history[i].Role), history[i].Content))
	}
	messages = append(messages, ai.Text("user", summaryInstructions))

	summary, err := s.aiClient.CreateChatCompletion(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}

	if err := s.store.UpdateChatSummary(ctx, chat.ID, summary, count); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	log.Printf("[Summarizer] chat %s summarized at %d messages", chat.ID, count)
	return nil
}
