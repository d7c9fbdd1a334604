package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"qna-chatbot/backend/chat/models"
)

// ErrChatNotFound indicates the chat does not exist for the given user
var ErrChatNotFound = errors.New("chat not found")

// ChatRepository is the persistence boundary for chats and their messages.
// The store is hierarchical per user: every operation is scoped by userID so
// one user can never reach another user's chats.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	DeleteChatWithMessages(ctx context.Context, userID, chatID string) error

	AppendMessage(ctx context.Context, message *models.Message) error
	HasMessages(ctx context.Context, userID, chatID string) (bool, error)
	ListMessages(ctx context.Context, userID, chatID string) ([]models.Message, error)
}

type GormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

func (r *GormChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *GormChatRepository) GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, chatID).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats returns the user's chats, most recently created first.
func (r *GormChatRepository) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *GormChatRepository) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("user_id = ? AND id = ?", userID, chatID).
		Update("title", title)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChatWithMessages removes the chat and every message beneath it in a
// single transaction: both succeed together or neither takes effect.
func (r *GormChatRepository) DeleteChatWithMessages(ctx context.Context, userID, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND chat_id = ?", userID, chatID).
			Delete(&models.Message{}).Error; err != nil {
			return err
		}

		result := tx.Where("user_id = ? AND id = ?", userID, chatID).
			Delete(&models.Chat{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return nil
	})
}

func (r *GormChatRepository) AppendMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *GormChatRepository) HasMessages(ctx context.Context, userID, chatID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// ListMessages returns the chat's messages in timestamp order; the serial
// primary key breaks ties so write order is preserved.
func (r *GormChatRepository) ListMessages(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, err
}
