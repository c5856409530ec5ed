// Package kafka 提供了与 Kafka 消息队列交互的功能。
// 本服务只作为生产者：每次生成结束后上报一条 usage 事件，
// 供下游的计费/分析管道消费。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"zhitalk-go/internal/config"
	"zhitalk-go/internal/model"
	"zhitalk-go/pkg/log"
)

// UsageEvent 是一次完整生成结束后上报的用量事件。
type UsageEvent struct {
	UserID    uint            `json:"user_id"`
	ChatID    string          `json:"chat_id"`
	AgentKind string          `json:"agent_kind"`
	Usage     *model.AppUsage `json:"usage"`
	Timestamp int64           `json:"timestamp"`
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。未配置 brokers 时不创建生产者，
// 后续的事件上报直接跳过。
func InitProducer(cfg config.KafkaConfig) {
	if cfg.Brokers == "" {
		log.Info("Kafka 未配置，用量事件上报已禁用")
		return
	}
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceUsageEvent 发送一条 usage 事件到 Kafka。
// 上报失败只影响下游统计，不影响聊天主流程，调用方按 best-effort 处理。
func ProduceUsageEvent(event UsageEvent) error {
	if producer == nil {
		return nil
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return producer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(event.ChatID),
			Value: eventBytes,
		},
	)
}
