package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"zhitalk-go/internal/model"
)

// ChatRepository 接口定义了会话与消息的持久化操作。
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	FindChatByID(ctx context.Context, id string) (*model.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	ListChatsByUser(ctx context.Context, userID uint, limit int) ([]model.Chat, error)
	UpdateLastContext(ctx context.Context, chatID string, usage *model.AppUsage) error
	FirstChatID(ctx context.Context) (string, error)

	SaveMessages(ctx context.Context, messages []model.Message) error
	FindMessagesByChatID(ctx context.Context, chatID string) ([]model.Message, error)
}

// chatRepository 是 ChatRepository 接口的 GORM 实现。
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateChat 在数据库中创建一个新的会话记录。
func (r *chatRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// FindChatByID 根据会话ID查找会话。会话不存在时返回 (nil, nil)。
func (r *chatRepository) FindChatByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat 删除会话及其全部消息。
func (r *chatRepository) DeleteChat(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Chat{}).Error
	})
}

// ListChatsByUser 按创建时间倒序返回用户的会话列表。
func (r *chatRepository) ListChatsByUser(ctx context.Context, userID uint, limit int) ([]model.Chat, error) {
	var chats []model.Chat
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&chats).Error
	return chats, err
}

// UpdateLastContext 更新会话最近一次生成的用量快照。
func (r *chatRepository) UpdateLastContext(ctx context.Context, chatID string, usage *model.AppUsage) error {
	return r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", chatID).
		Update("last_context", usage).Error
}

// FirstChatID 返回库中最早创建的会话ID，供健康监测使用。
// 没有任何会话时返回空串。
func (r *chatRepository) FirstChatID(ctx context.Context) (string, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Order("created_at ASC").Select("id").First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return chat.ID, nil
}

// SaveMessages 批量保存消息。
func (r *chatRepository) SaveMessages(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&messages).Error
}

// FindMessagesByChatID 按创建时间升序返回会话的全部消息。
func (r *chatRepository) FindMessagesByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
