package services

import (
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages(t *testing.T, s *fakeStore, chatID, userID uuid.UUID, roles ...models.MessageRole) {
	t.Helper()
	for i, role := range roles {
		_, err := s.CreateMessage(context.Background(), store.CreateMessageParams{
			ID: uuid.New(), ChatID: chatID, UserID: userID,
			Role: role, Content: "msg", Type: models.MessageTypeChat,
		})
		require.NoError(t, err, "seeding message %d", i)
	}
}

func lastMessageOf(t *testing.T, s *fakeStore, chatID uuid.UUID) *models.Message {
	t.Helper()
	msg, err := s.LastMessage(context.Background(), chatID)
	require.NoError(t, err)
	return msg
}

func TestSummarizerBelowThresholdDoesNothing(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completions: []string{"A title"}}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	// A single assistant message: the turn is complete but count is 1, and
	// the threshold requires more than 1.
	seedMessages(t, s, chatID, userID, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))

	assert.Equal(t, 0, fake.completionCount(), "no summarization call below threshold")
	chat, _ := s.GetChatByID(context.Background(), chatID, userID)
	assert.Nil(t, chat.Summary)
}

func TestSummarizerSkipsMidTurn(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completions: []string{"A title"}}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	// Three messages but the newest is from the user: the turn is still in
	// progress, so no summary yet.
	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant, models.RoleUser)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))

	assert.Equal(t, 0, fake.completionCount())
}

func TestSummarizerFirstSummary(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completions: []string{"Cats and hats"}}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))

	assert.Equal(t, 1, fake.completionCount(), "exactly one summarization call")
	chat, err := s.GetChatByID(context.Background(), chatID, userID)
	require.NoError(t, err)
	require.NotNil(t, chat.Summary)
	assert.Equal(t, "Cats and hats", *chat.Summary)
	assert.Equal(t, 2, chat.LastSummarizedAtMessageCount,
		"summary and high-water mark updated together")
}

func TestSummarizerInstructionFollowsHistory(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completions: []string{"Cats and hats"}}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))

	require.Len(t, fake.completionCalls, 1)
	sent := fake.completionCalls[0]
	require.Len(t, sent, 3, "two history turns plus the instruction")
	assert.Equal(t, "user", sent[0].Role)
	assert.Equal(t, "assistant", sent[1].Role)
	assert.Equal(t, "user", sent[2].Role, "instruction rides as the final user turn")
	assert.Contains(t, sent[2].Content, "Summarize the following conversation")
}

func TestSummarizerResummarizeGap(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completions: []string{"First title", "Second title"}}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))
	require.Equal(t, 1, fake.completionCount())

	// Four more messages: gap is 4, not > 5, so no re-summarization.
	seedMessages(t, s, chatID, userID,
		models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))
	assert.Equal(t, 1, fake.completionCount(), "gap of 4 is not enough")

	// Two more: gap is now 6 > 5, re-summarize.
	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))
	assert.Equal(t, 2, fake.completionCount())

	chat, err := s.GetChatByID(context.Background(), chatID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Second title", *chat.Summary)
	assert.Equal(t, 8, chat.LastSummarizedAtMessageCount)
}

func TestSummarizerModelFailureLeavesChatUntouched(t *testing.T) {
	s := newFakeStore()
	fake := &fakeAI{completionErr: assert.AnError}
	sum := NewSummarizerService(s, fake, 1, 5)
	userID, chatID := newTestChat(t, s)

	seedMessages(t, s, chatID, userID, models.RoleUser, models.RoleAssistant)
	sum.HandleMessageCreated(context.Background(), lastMessageOf(t, s, chatID))

	chat, err := s.GetChatByID(context.Background(), chatID, userID)
	require.NoError(t, err)
	assert.Nil(t, chat.Summary)
	assert.Zero(t, chat.LastSummarizedAtMessageCount)
}
