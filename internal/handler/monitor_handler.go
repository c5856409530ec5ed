package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zhitalk-go/internal/service"
)

// MonitorHandler 提供部署健康检查端点。
type MonitorHandler struct {
	chatService service.ChatService
}

// NewMonitorHandler 创建一个新的 MonitorHandler 实例。
func NewMonitorHandler(chatService service.ChatService) *MonitorHandler {
	return &MonitorHandler{chatService: chatService}
}

// DB 检查数据库可达性：查询最早创建的会话ID。
// 返回 {errno:0,data:{id}}，库为空或查询失败时返回 {errno:-1}。
func (h *MonitorHandler) DB(c *gin.Context) {
	id, err := h.chatService.FirstChatID(c.Request.Context())
	if err != nil || id == "" {
		c.JSON(http.StatusOK, gin.H{"errno": -1})
		return
	}
	c.JSON(http.StatusOK, gin.H{"errno": 0, "data": gin.H{"id": id}})
}
