// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/pkg/log"
)

// respondOK 按统一结构返回成功响应。
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}

// respondError 按错误类别渲染响应。
// 应用错误渲染为对应状态码与用户文案，其余错误一律按 offline 处理。
func respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr.Cause != nil {
		log.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(appErr.StatusCode(), gin.H{
		"code":    appErr.StatusCode(),
		"kind":    string(appErr.Kind),
		"message": appErr.UserMessage(),
	})
}
