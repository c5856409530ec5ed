package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimitCall, http.StatusTooManyRequests},
		{KindRateLimitMsg, http.StatusTooManyRequests},
		{KindClassification, http.StatusInternalServerError},
		{KindGeneration, http.StatusInternalServerError},
		{KindOffline, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, New(tc.kind, "").StatusCode(), string(tc.kind))
	}
}

func TestUserMessageFallsBackToKindDefault(t *testing.T) {
	assert.Equal(t, "请先登录后再使用聊天功能", New(KindUnauthorized, "").UserMessage())
	assert.Equal(t, "自定义文案", New(KindUnauthorized, "自定义文案").UserMessage())
	// 未知类别回退到 offline 文案
	assert.Equal(t, "服务暂时不可用，请稍后重试", New(Kind("mystery"), "").UserMessage())
}

func TestFromPassesThroughAppError(t *testing.T) {
	orig := New(KindForbidden, "")
	assert.Same(t, orig, From(orig))

	wrapped := fmt.Errorf("handler: %w", orig)
	assert.Same(t, orig, From(wrapped))
}

func TestFromClassifiesUnknownAsOffline(t *testing.T) {
	cause := errors.New("connection refused")
	e := From(cause)
	assert.Equal(t, KindOffline, e.Kind)
	assert.ErrorIs(t, e, cause)
}

func TestWrapExposesCause(t *testing.T) {
	cause := errors.New("invalid json")
	e := Wrap(KindClassification, "", cause)
	require.ErrorIs(t, e, cause)
	assert.True(t, IsKind(e, KindClassification))
	assert.False(t, IsKind(e, KindGeneration))
	assert.False(t, IsKind(cause, KindClassification))
}
