package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qna-chatbot/backend/chat/models"
	"qna-chatbot/backend/chat/repository"
	"qna-chatbot/backend/pkg/crypto"
	apperrors "qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/logger"
)

// fakeChatRepository is an in-memory stand-in for the document store. It
// assigns monotonically increasing timestamps the way the real store assigns
// server time, and can be told to fail specific operations.
type fakeChatRepository struct {
	mu       sync.Mutex
	chats    map[string]*models.Chat
	messages []models.Message
	nextID   uint
	clock    time.Time

	failAppend bool
	failDelete bool
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{
		chats: make(map[string]*models.Chat),
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeChatRepository) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeChatRepository) CreateChat(_ context.Context, chat *models.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *chat
	stored.CreatedAt = f.tick()
	f.chats[chat.ID] = &stored
	return nil
}

func (f *fakeChatRepository) GetChat(_ context.Context, userID, chatID string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, repository.ErrChatNotFound
	}
	copied := *chat
	return &copied, nil
}

func (f *fakeChatRepository) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var chats []models.Chat
	for _, chat := range f.chats {
		if chat.UserID == userID {
			chats = append(chats, *chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].CreatedAt.After(chats[j].CreatedAt) })
	return chats, nil
}

func (f *fakeChatRepository) UpdateTitle(_ context.Context, userID, chatID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok || chat.UserID != userID {
		return repository.ErrChatNotFound
	}
	chat.Title = title
	return nil
}

func (f *fakeChatRepository) DeleteChatWithMessages(_ context.Context, userID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		// Simulates a failure mid-batch: the transaction rolls back and
		// neither the chat nor its messages are touched.
		return errors.New("transaction aborted")
	}
	chat, ok := f.chats[chatID]
	if !ok || chat.UserID != userID {
		return repository.ErrChatNotFound
	}
	delete(f.chats, chatID)
	kept := f.messages[:0]
	for _, msg := range f.messages {
		if msg.ChatID != chatID {
			kept = append(kept, msg)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeChatRepository) AppendMessage(_ context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return errors.New("write refused")
	}
	f.nextID++
	stored := *message
	stored.ID = f.nextID
	stored.Timestamp = f.tick()
	f.messages = append(f.messages, stored)
	return nil
}

func (f *fakeChatRepository) HasMessages(_ context.Context, userID, chatID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if msg.ChatID == chatID && msg.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChatRepository) ListMessages(_ context.Context, userID, chatID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.messages {
		if msg.ChatID == chatID && msg.UserID == userID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func newTestChatService(repo repository.ChatRepository) *ChatService {
	return NewChatService(repo, nil, nil, "", logger.New(logger.DefaultConfig()))
}

func TestCreateChatDefaults(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")

	require.NoError(t, err)
	assert.Len(t, chat.ID, 10)
	assert.Equal(t, models.DefaultChatTitle, chat.Title)
	assert.False(t, chat.CreatedAt.IsZero())
}

func TestListChatsMostRecentFirst(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	first, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)
	second, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	chats, err := svc.ListChats(context.Background(), "user_a")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)
	assert.Equal(t, first.ID, chats[1].ID)
}

func TestAppendMessageEncryptsAtRest(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "my secret question", models.SenderUser)
	require.NoError(t, err)

	// The stored record must not contain the plaintext
	require.Len(t, repo.messages, 1)
	stored := repo.messages[0]
	assert.True(t, stored.IsEncrypted)
	assert.NotEqual(t, "my secret question", stored.Text)
	assert.True(t, crypto.LooksEncrypted(stored.Text))
}

func TestAppendFirstUserMessageSetsPlaintextTitle(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	updated, err := svc.AppendMessage(context.Background(), "user_a", chat.ID, "Hello", models.SenderUser)
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := repo.GetChat(context.Background(), "user_a", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title, "title is stored in plaintext")

	// Second message must not retitle
	updated, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "Another question.", models.SenderUser)
	require.NoError(t, err)
	assert.False(t, updated)
	got, _ = repo.GetChat(context.Background(), "user_a", chat.ID)
	assert.Equal(t, "Hello", got.Title)
}

func TestAppendFirstBotMessageDoesNotSetTitle(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	updated, err := svc.AppendMessage(context.Background(), "user_a", chat.ID, "Welcome!", models.SenderBot)
	require.NoError(t, err)
	assert.False(t, updated)

	got, _ := repo.GetChat(context.Background(), "user_a", chat.ID)
	assert.Equal(t, models.DefaultChatTitle, got.Title)
}

func TestAppendMessageUnknownChat(t *testing.T) {
	svc := newTestChatService(newFakeChatRepository())

	_, err := svc.AppendMessage(context.Background(), "user_a", "missing-chat", "hi", models.SenderUser)

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeChatNotFound, appErr.Code)
}

func TestListMessagesRoundTripAndOrder(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderBot
		}
		_, err := svc.AppendMessage(context.Background(), "user_a", chat.ID, text, sender)
		require.NoError(t, err)
	}

	messages, err := svc.ListMessages(context.Background(), "user_a", chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, text := range texts {
		assert.Equal(t, text, messages[i].Text)
		assert.False(t, messages[i].DecryptFailed)
	}
}

func TestListMessagesLegacyPlaintextPassthrough(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	// A record written before encryption existed
	require.NoError(t, repo.AppendMessage(context.Background(), &models.Message{
		ExternalID: "legacy-1",
		ChatID:     chat.ID,
		UserID:     "user_a",
		Sender:     models.SenderUser,
		Text:       "plain old message",
	}))

	messages, err := svc.ListMessages(context.Background(), "user_a", chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "plain old message", messages[0].Text)
	assert.False(t, messages[0].IsEncrypted)
}

func TestListMessagesCorruptRecordGetsPlaceholder(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "good message", models.SenderUser)
	require.NoError(t, err)

	// A record flagged encrypted whose payload is garbage
	require.NoError(t, repo.AppendMessage(context.Background(), &models.Message{
		ExternalID:  "corrupt-1",
		ChatID:      chat.ID,
		UserID:      "user_a",
		Sender:      models.SenderBot,
		Text:        "bm90IGEgcmVhbCBwYXlsb2FkIGF0IGFsbCwgc29ycnk=",
		IsEncrypted: true,
	}))

	messages, err := svc.ListMessages(context.Background(), "user_a", chat.ID)
	require.NoError(t, err, "one bad record must not fail the whole list")
	require.Len(t, messages, 2)
	assert.Equal(t, "good message", messages[0].Text)
	assert.Equal(t, DecryptFailedPlaceholder, messages[1].Text)
	assert.True(t, messages[1].DecryptFailed)
}

func TestDeleteChatWithMessages(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)
	_, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "hello", models.SenderUser)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChatWithMessages(context.Background(), "user_a", chat.ID))

	chats, err := svc.ListChats(context.Background(), "user_a")
	require.NoError(t, err)
	assert.Empty(t, chats)

	messages, err := svc.ListMessages(context.Background(), "user_a", chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteChatWithMessagesAtomic(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)
	_, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "hello", models.SenderUser)
	require.NoError(t, err)

	repo.failDelete = true
	err = svc.DeleteChatWithMessages(context.Background(), "user_a", chat.ID)
	require.Error(t, err)

	// Neither side took effect
	chats, _ := svc.ListChats(context.Background(), "user_a")
	assert.Len(t, chats, 1)
	messages, _ := svc.ListMessages(context.Background(), "user_a", chat.ID)
	assert.Len(t, messages, 1)
}

func TestMessagesIsolatedPerUser(t *testing.T) {
	repo := newFakeChatRepository()
	svc := newTestChatService(repo)

	chat, err := svc.CreateChat(context.Background(), "user_a")
	require.NoError(t, err)
	_, err = svc.AppendMessage(context.Background(), "user_a", chat.ID, "alice only", models.SenderUser)
	require.NoError(t, err)

	messages, err := svc.ListMessages(context.Background(), "user_b", chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestChatIDsAreOpaqueTokens(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newChatID()
		assert.Len(t, id, chatIDLength)
		assert.False(t, seen[id], fmt.Sprintf("duplicate id %q", id))
		seen[id] = true
	}
}
