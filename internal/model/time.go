package model

import (
	"fmt"
	"time"
)

// LocalTime 在 JSON 响应中把时间渲染为 "2006-01-02 15:04:05"，
// 供 API 响应体使用（如用户资料中的 createdAt）。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON 实现 json.Marshaler 接口。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}
