package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"zhitalk-go/internal/model"
)

// QuotaRepository 接口定义了限流计数相关的持久化操作。
type QuotaRepository interface {
	// RecordCall 记录一次聊天接口调用。
	RecordCall(ctx context.Context, userID uint) error
	// CountCallsSince 统计用户自 since 起的接口调用次数。
	CountCallsSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	// CountUserMessagesSince 统计用户自 since 起发出的用户角色消息数。
	CountUserMessagesSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// quotaRepository 是 QuotaRepository 接口的 GORM 实现。
type quotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository 创建一个新的 QuotaRepository 实例。
func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// RecordCall 记录一次聊天接口调用。
func (r *quotaRepository) RecordCall(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Create(&model.ChatAPICall{UserID: userID}).Error
}

// CountCallsSince 统计用户自 since 起的接口调用次数。
func (r *quotaRepository) CountCallsSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatAPICall{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// CountUserMessagesSince 统计用户自 since 起发出的用户角色消息数。
// 通过会话表关联，只统计属于该用户会话中 role=user 的消息。
func (r *quotaRepository) CountUserMessagesSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ? AND messages.role = ? AND messages.created_at >= ?", userID, "user", since).
		Count(&count).Error
	return count, err
}
