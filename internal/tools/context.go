package tools

import "context"

type userIDKey struct{}

// WithUserID 把发起请求的用户ID放入工具执行上下文。
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom 从工具执行上下文取出用户ID。
func UserIDFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDKey{}).(uint)
	return id, ok
}
