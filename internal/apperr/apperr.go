// Package apperr 定义了对外错误的分类体系：每一类错误都映射到
// 确定的 HTTP 状态码和用户可见的提示文案，便于前端区分
// “稍后重试”（限流）、“修改请求”（参数错误）与“系统异常”。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是错误类别。
type Kind string

const (
	KindBadRequest     Kind = "bad_request"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "not_found"
	KindRateLimitCall  Kind = "rate_limit:chat_api" // 调用次数配额
	KindRateLimitMsg   Kind = "rate_limit:chat"     // 消息数量配额
	KindClassification Kind = "classification_error"
	KindGeneration     Kind = "generation_error"
	KindOffline        Kind = "offline"
)

// Error 是携带类别与用户可见文案的应用错误。
type Error struct {
	Kind    Kind
	Message string // 用户可见文案；为空时使用类别默认文案
	Cause   error  // 底层错误，仅用于日志
}

// New 创建一个指定类别的应用错误。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 创建一个包装底层错误的应用错误。
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 暴露底层错误以支持 errors.Is/As。
func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode 返回该类别错误对应的 HTTP 状态码。
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimitCall, KindRateLimitMsg:
		return http.StatusTooManyRequests
	case Kind(""):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// 各类别的默认用户文案。
var defaultMessages = map[Kind]string{
	KindBadRequest:     "无效的请求负载",
	KindUnauthorized:   "请先登录后再使用聊天功能",
	KindForbidden:      "您没有权限访问该会话",
	KindNotFound:       "请求的资源不存在",
	KindRateLimitCall:  "您今天的聊天请求次数已用完，请明天再试。",
	KindRateLimitMsg:   "您今天的消息数量已达上限，请明天再试。",
	KindClassification: "消息分类失败，请稍后重试。",
	KindGeneration:     "AI 服务暂时不可用，请稍后重试",
	KindOffline:        "服务暂时不可用，请稍后重试",
}

// UserMessage 返回用户可见文案。
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := defaultMessages[e.Kind]; ok {
		return msg
	}
	return defaultMessages[KindOffline]
}

// From 将任意错误规整为 *Error：已是 *Error 则原样返回，
// 否则归类为 offline（未分类故障）。
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindOffline, Cause: err}
}

// IsKind 判断 err 是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
