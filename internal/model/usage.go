package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AppUsage 是一次模型调用结束后的 token 用量报告，
// 可能附带从模型目录查询到的计价与上下文窗口信息（富化失败时保持原始值）。
type AppUsage struct {
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	TotalTokens  int    `json:"totalTokens"`
	ModelID      string `json:"modelId,omitempty"`

	// 富化字段，目录不可用时为空。
	InputCostUSD  *float64 `json:"inputCostUSD,omitempty"`
	OutputCostUSD *float64 `json:"outputCostUSD,omitempty"`
	TotalCostUSD  *float64 `json:"totalCostUSD,omitempty"`
	ContextWindow *int     `json:"contextWindow,omitempty"`
}

// Value 实现 driver.Valuer，将 usage 序列化为 JSON 存入数据库。
func (u *AppUsage) Value() (driver.Value, error) {
	if u == nil {
		return nil, nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，从数据库 JSON 列恢复 usage。
func (u *AppUsage) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 解析为 AppUsage", value)
	}
	return json.Unmarshal(data, u)
}
