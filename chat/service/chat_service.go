package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/google/uuid"

	"qna-chatbot/backend/chat/models"
	"qna-chatbot/backend/chat/repository"
	"qna-chatbot/backend/pkg/cache"
	"qna-chatbot/backend/pkg/crypto"
	apperrors "qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/logger"
)

// DecryptFailedPlaceholder is shown in place of a single message that could
// not be decrypted. The rest of the chat still loads.
const DecryptFailedPlaceholder = "[This message could not be decrypted]"

// chatIDAlphabet matches the id space of the original store: 10 characters
// from a 64-symbol alphabet, large enough that collisions are never checked.
const (
	chatIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	chatIDLength   = 10
)

// DecodedMessage is a stored message after the decryption pass. Text always
// holds displayable plaintext; DecryptFailed marks the per-message recovery
// case where the placeholder was substituted.
type DecodedMessage struct {
	models.Message
	DecryptFailed bool `json:"decryptFailed,omitempty"`
}

// ChatListCache caches a user's chat list (plaintext metadata only, never
// message bodies). Implemented by shared/redis; a nil cache disables it.
type ChatListCache interface {
	GetChats(ctx context.Context, userID string) ([]models.Chat, bool)
	SetChats(ctx context.Context, userID string, chats []models.Chat)
	Invalidate(ctx context.Context, userID string)
}

// ChatService is the chat store: CRUD and ordering over chats and messages,
// with encryption at rest. Message text is encrypted with a key derived from
// the owning user's id before it is written; titles are deliberately stored
// in plaintext so the chat list renders without decrypting anything.
type ChatService struct {
	repo      repository.ChatRepository
	keyCache  *cache.Cache
	listCache ChatListCache
	pepper    string
	log       *logger.Logger
}

func NewChatService(repo repository.ChatRepository, keyCache *cache.Cache, listCache ChatListCache, pepper string, log *logger.Logger) *ChatService {
	return &ChatService{
		repo:      repo,
		keyCache:  keyCache,
		listCache: listCache,
		pepper:    pepper,
		log:       log,
	}
}

// CreateChat writes a new chat with the default title and a server-assigned
// creation time, and returns it.
func (s *ChatService) CreateChat(ctx context.Context, userID string) (*models.Chat, error) {
	chat := &models.Chat{
		ID:     newChatID(),
		UserID: userID,
		Title:  models.DefaultChatTitle,
	}
	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	if s.listCache != nil {
		s.listCache.Invalidate(ctx, userID)
	}

	// Re-read so the caller sees the store-assigned timestamp
	created, err := s.repo.GetChat(ctx, userID, chat.ID)
	if err != nil {
		return chat, nil
	}
	return created, nil
}

// ListChats returns the user's chats, most recent first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	if s.listCache != nil {
		if chats, ok := s.listCache.GetChats(ctx, userID); ok {
			return chats, nil
		}
	}

	chats, err := s.repo.ListChats(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	if s.listCache != nil {
		s.listCache.SetChats(ctx, userID, chats)
	}
	return chats, nil
}

// AppendMessage encrypts text and appends it to the chat. If this is the
// chat's first message and the sender is the user, the chat title is set
// from the plaintext. Titles stay unencrypted so the sidebar can list chats
// without a decryption pass. Returns whether the title was updated.
func (s *ChatService) AppendMessage(ctx context.Context, userID, chatID, text, sender string) (bool, error) {
	if _, err := s.repo.GetChat(ctx, userID, chatID); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return false, apperrors.NewChatNotFoundError(chatID)
		}
		return false, apperrors.NewStoreError(err)
	}

	first, err := s.repo.HasMessages(ctx, userID, chatID)
	if err != nil {
		return false, apperrors.NewStoreError(err)
	}
	isFirst := !first

	encrypted, err := crypto.Encrypt(text, s.userKey(userID))
	if err != nil {
		s.log.LogError(err, "message encryption failed", "chat_id", chatID)
		return false, apperrors.NewStoreError(err)
	}

	message := &models.Message{
		ExternalID:  uuid.New().String(),
		ChatID:      chatID,
		UserID:      userID,
		Sender:      sender,
		Text:        encrypted,
		IsEncrypted: true,
	}
	if err := s.repo.AppendMessage(ctx, message); err != nil {
		return false, apperrors.NewStoreError(err)
	}

	if isFirst && sender == models.SenderUser {
		title := TitleFromMessage(text)
		if title == "" {
			title = models.DefaultChatTitle
		}
		if err := s.repo.UpdateTitle(ctx, userID, chatID, title); err != nil {
			// The message is durable; a failed title update is not worth
			// failing the append over.
			s.log.LogError(err, "chat title update failed", "chat_id", chatID)
			return false, nil
		}
		if s.listCache != nil {
			s.listCache.Invalidate(ctx, userID)
		}
		return true, nil
	}

	return false, nil
}

// ListMessages returns the chat's messages in timestamp order with message
// text decrypted. A message that fails to decrypt (corrupt payload, foreign
// key) is substituted with a placeholder instead of failing the whole list.
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string) ([]DecodedMessage, error) {
	stored, err := s.repo.ListMessages(ctx, userID, chatID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	key := s.userKey(userID)
	decoded := make([]DecodedMessage, 0, len(stored))
	for _, msg := range stored {
		out := DecodedMessage{Message: msg}
		if msg.IsEncrypted {
			plaintext, err := crypto.Decrypt(msg.Text, key)
			if err != nil {
				s.log.LogError(err, "message decryption failed",
					"chat_id", chatID,
					"message_id", msg.ExternalID,
				)
				out.Text = DecryptFailedPlaceholder
				out.DecryptFailed = true
			} else {
				out.Text = plaintext
			}
		}
		decoded = append(decoded, out)
	}
	return decoded, nil
}

// DeleteChatWithMessages atomically removes the chat and all its messages.
func (s *ChatService) DeleteChatWithMessages(ctx context.Context, userID, chatID string) error {
	if err := s.repo.DeleteChatWithMessages(ctx, userID, chatID); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return apperrors.NewChatNotFoundError(chatID)
		}
		return apperrors.NewStoreError(err)
	}

	if s.listCache != nil {
		s.listCache.Invalidate(ctx, userID)
	}
	return nil
}

// userKey returns the user's derived encryption key, caching it so the
// PBKDF2 work is paid once per user rather than on every message.
func (s *ChatService) userKey(userID string) []byte {
	cacheKey := "userkey:" + userID
	if s.keyCache != nil {
		if v, ok := s.keyCache.Get(cacheKey); ok {
			if key, ok := v.([]byte); ok {
				return key
			}
		}
	}

	key := crypto.DeriveKey(userID, s.pepper)
	if s.keyCache != nil {
		s.keyCache.Set(cacheKey, key)
	}
	return key
}

// newChatID generates a fresh opaque chat id. The id space is large enough
// that uniqueness is never checked.
func newChatID() string {
	id := make([]byte, chatIDLength)
	max := big.NewInt(int64(len(chatIDAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		id[i] = chatIDAlphabet[n.Int64()]
	}
	return string(id)
}
