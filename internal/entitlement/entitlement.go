// Package entitlement 定义了不同用户类别的配额。
package entitlement

import (
	"fmt"

	"zhitalk-go/internal/model"
)

// Entitlements 是某一用户类别在滚动窗口内的配额集合。
type Entitlements struct {
	MaxMessagesPerDay     int64
	MaxChatAPICallsPerDay int64
	AvailableChatModelIDs []string
}

// byUserType 按用户类别划分配额。
var byUserType = map[model.UserType]Entitlements{
	// 未注册的游客账号
	model.UserTypeGuest: {
		MaxMessagesPerDay:     20,
		MaxChatAPICallsPerDay: 10,
		AvailableChatModelIDs: []string{"chat-model", "chat-model-reasoning"},
	},
	// 已注册账号
	model.UserTypeRegular: {
		MaxMessagesPerDay:     100,
		MaxChatAPICallsPerDay: 30,
		AvailableChatModelIDs: []string{"chat-model", "chat-model-reasoning"},
	},
}

// ForUserType 返回指定用户类别的配额；未知类别按游客处理。
func ForUserType(t model.UserType) Entitlements {
	if e, ok := byUserType[t]; ok {
		return e
	}
	return byUserType[model.UserTypeGuest]
}

// CallLimitMessage 返回调用配额用尽时面向该类别用户的提示文案。
func CallLimitMessage(t model.UserType) string {
	guest := byUserType[model.UserTypeGuest].MaxChatAPICallsPerDay
	regular := byUserType[model.UserTypeRegular].MaxChatAPICallsPerDay
	if t == model.UserTypeGuest {
		return fmt.Sprintf("您今天的聊天请求次数已用完（%d次/天）。请明天再试，或注册账号获得更多次数（%d次/天）。", guest, regular)
	}
	return fmt.Sprintf("您今天的聊天请求次数已用完（%d次/天）。请明天再试。", regular)
}
