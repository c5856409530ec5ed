package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 流会话在 Redis 中的键布局：
//   stream:{streamId}:events   list，按序缓冲事件帧
//   stream:{streamId}:done     生成结束标记
//   chat:{chatId}:stream       会话 -> 最近一次流ID 的映射
const (
	streamEventsKeyFmt = "stream:%s:events"
	streamDoneKeyFmt   = "stream:%s:done"
	chatStreamKeyFmt   = "chat:%s:stream"
)

// StreamRepository 接口定义了流会话的缓冲与查找操作，
// 用于客户端断线后恢复观看一次进行中的生成。
type StreamRepository interface {
	// CreateStream 登记一次新的流会话并绑定到会话ID。
	CreateStream(ctx context.Context, streamID, chatID string) error
	// AppendEvent 向流会话追加一帧已编码的事件。
	AppendEvent(ctx context.Context, streamID string, payload []byte) error
	// MarkFinished 标记流会话已结束。
	MarkFinished(ctx context.Context, streamID string) error
	// ReadEvents 读取自 offset 起的事件帧。
	ReadEvents(ctx context.Context, streamID string, offset int64) ([]string, error)
	// IsFinished 查询流会话是否已结束。
	IsFinished(ctx context.Context, streamID string) (bool, error)
	// LatestStreamID 返回会话最近一次的流ID，没有时返回空串。
	LatestStreamID(ctx context.Context, chatID string) (string, error)
}

// streamRepository 是 StreamRepository 接口的 Redis 实现。
type streamRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStreamRepository 创建一个新的 StreamRepository 实例。
func NewStreamRepository(rdb *redis.Client, ttl time.Duration) StreamRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &streamRepository{rdb: rdb, ttl: ttl}
}

func (r *streamRepository) CreateStream(ctx context.Context, streamID, chatID string) error {
	return r.rdb.Set(ctx, fmt.Sprintf(chatStreamKeyFmt, chatID), streamID, r.ttl).Err()
}

func (r *streamRepository) AppendEvent(ctx context.Context, streamID string, payload []byte) error {
	key := fmt.Sprintf(streamEventsKeyFmt, streamID)
	pipe := r.rdb.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *streamRepository) MarkFinished(ctx context.Context, streamID string) error {
	return r.rdb.Set(ctx, fmt.Sprintf(streamDoneKeyFmt, streamID), "1", r.ttl).Err()
}

func (r *streamRepository) ReadEvents(ctx context.Context, streamID string, offset int64) ([]string, error) {
	return r.rdb.LRange(ctx, fmt.Sprintf(streamEventsKeyFmt, streamID), offset, -1).Result()
}

func (r *streamRepository) IsFinished(ctx context.Context, streamID string) (bool, error) {
	_, err := r.rdb.Get(ctx, fmt.Sprintf(streamDoneKeyFmt, streamID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *streamRepository) LatestStreamID(ctx context.Context, chatID string) (string, error) {
	id, err := r.rdb.Get(ctx, fmt.Sprintf(chatStreamKeyFmt, chatID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
