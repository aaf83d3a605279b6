package services

import (
	"bardchat-backend/internal/ai"
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for service tests. Hooks fire
// synchronously so tests can assert on their effects without sleeping.
type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	chats    map[uuid.UUID]*models.Chat
	messages []models.Message
	hooks    []store.MessageHook

	summaryUpdates int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[uuid.UUID]*models.User),
		chats: make(map[uuid.UUID]*models.Chat),
	}
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeStore) CreateChat(ctx context.Context, arg store.CreateChatParams) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := &models.Chat{
		ID:        arg.ID,
		UserID:    arg.UserID,
		CreatedAt: time.Now(),
	}
	s.chats[chat.ID] = chat
	copied := *chat
	return &copied, nil
}

func (s *fakeStore) GetChatByID(ctx context.Context, chatID, userID uuid.UUID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, store.ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

func (s *fakeStore) ListChatsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]store.ChatWithCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ChatWithCount
	for _, chat := range s.chats {
		if chat.UserID != userID {
			continue
		}
		count := 0
		for _, m := range s.messages {
			if m.ChatID == chat.ID {
				count++
			}
		}
		out = append(out, store.ChatWithCount{Chat: *chat, MessagesCount: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Chat.CreatedAt.After(out[j].Chat.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateChatSummary(ctx context.Context, chatID uuid.UUID, summary string, messageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	chat.Summary = &summary
	chat.LastSummarizedAtMessageCount = messageCount
	s.summaryUpdates++
	return nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	s.mu.Lock()
	msgType := arg.Type
	if msgType == "" {
		msgType = models.MessageTypeChat
	}
	msg := models.Message{
		ID:        arg.ID,
		ChatID:    arg.ChatID,
		UserID:    arg.UserID,
		Role:      arg.Role,
		Type:      msgType,
		Content:   arg.Content,
		Image:     arg.Image,
		CreatedAt: time.Now().Add(time.Duration(len(s.messages)) * time.Millisecond),
	}
	s.messages = append(s.messages, msg)
	hooks := s.hooks
	s.mu.Unlock()

	for _, h := range hooks {
		h(ctx, &msg)
	}
	return &msg, nil
}

func (s *fakeStore) ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ChatID != chatID {
			continue
		}
		out = append(out, s.messages[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) CountMessages(ctx context.Context, chatID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if m.ChatID == chatID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) LastMessage(ctx context.Context, chatID uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ChatID == chatID {
			copied := s.messages[i]
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) RegisterMessageAfterCreate(hook store.MessageHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *fakeStore) messagesFor(chatID uuid.UUID) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// fakeAI scripts the model client. Completion replies are consumed in order;
// streamBody is returned verbatim from StreamChatCompletion.
type fakeAI struct {
	mu sync.Mutex

	completions     []string
	completionErr   error
	completionCalls [][]ai.ChatMessage

	streamBody   string
	streamReader io.ReadCloser
	streamErr    error

	classification ai.Classification
	classifyErr    error

	imageURL string
	imageErr error
}

var _ AIClient = (*fakeAI)(nil)

func (f *fakeAI) CreateChatCompletion(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completionCalls = append(f.completionCalls, messages)
	if f.completionErr != nil {
		return "", f.completionErr
	}
	if len(f.completions) == 0 {
		return "", ai.ErrNoContent
	}
	reply := f.completions[0]
	f.completions = f.completions[1:]
	return reply, nil
}

func (f *fakeAI) StreamChatCompletion(ctx context.Context, messages []ai.ChatMessage) (io.ReadCloser, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.streamReader != nil {
		return f.streamReader, nil
	}
	return io.NopCloser(strings.NewReader(f.streamBody)), nil
}

func (f *fakeAI) ClassifyTurn(ctx context.Context, history []ai.ChatMessage) (ai.Classification, error) {
	if f.classifyErr != nil {
		return ai.Classification{}, f.classifyErr
	}
	return f.classification, nil
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.imageURL, nil
}

func (f *fakeAI) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completionCalls)
}

// fakeImages records SaveImageFromURL calls.
type fakeImages struct {
	savedURL string
	err      error
}

var _ ImageStore = (*fakeImages)(nil)

func (f *fakeImages) SaveImageFromURL(ctx context.Context, url string) (*models.ImageMeta, error) {
	f.savedURL = url
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImageMeta{Path: "generated.png", Width: 1792, Height: 1024}, nil
}
