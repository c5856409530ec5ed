package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 会话可见性。
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Chat 定义了 chats 表的 ORM 模型。一个会话归属于创建它的用户，
// LastContext 保存最近一次完整交互的 usage 摘要（覆盖写，不累积）。
type Chat struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Visibility  string    `gorm:"type:varchar(16);not null;default:'private'" json:"visibility"`
	LastContext *AppUsage `gorm:"type:json" json:"lastContext,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chat) TableName() string {
	return "chats"
}

// MessagePart 是消息的一个内容片段：纯文本，或一个附件引用。
type MessagePart struct {
	Type string `json:"type"` // "text" 或 "file"
	Text string `json:"text,omitempty"`
	// 附件引用（Type 为 "file" 时有效）
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// PartList 以 JSON 列的形式存储消息内容片段。
type PartList []MessagePart

// Value 实现 driver.Valuer，将片段序列化为 JSON 存入数据库。
func (p PartList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，从数据库 JSON 列恢复片段。
func (p *PartList) Scan(value interface{}) error {
	if value == nil {
		*p = PartList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 解析为 PartList", value)
	}
	return json.Unmarshal(data, p)
}

// Text 拼接消息中所有文本片段。
func (p PartList) Text() string {
	var out string
	for _, part := range p {
		if part.Type == "text" {
			out += part.Text
		}
	}
	return out
}

// Message 定义了 messages 表的 ORM 模型。消息一经持久化即不可变。
type Message struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	ChatID      string    `gorm:"type:varchar(64);index;not null" json:"chatId"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"` // "user" 或 "assistant"
	Parts       PartList  `gorm:"type:json;not null" json:"parts"`
	Attachments PartList  `gorm:"type:json" json:"attachments"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}

// ChatAPICall 定义了 chat_api_calls 表的 ORM 模型。
// 每接受一次聊天请求插入一行，配额统计是对时间窗口内行数的查询。
type ChatAPICall struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index:idx_api_calls_user_time;not null" json:"userId"`
	CreatedAt time.Time `gorm:"index:idx_api_calls_user_time;autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ChatAPICall) TableName() string {
	return "chat_api_calls"
}
