package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/middleware"
	"zhitalk-go/internal/model"
	"zhitalk-go/internal/service"
	"zhitalk-go/pkg/log"
)

// UserHandler 负责处理所有与用户账号相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		respondError(c, apperr.New(apperr.KindBadRequest, "用户名和密码不能为空，密码至少6位"))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		log.Warnf("Register: User registration failed for '%s', error: %v", req.Username, err)
		respondError(c, err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Username)
	respondOK(c, gin.H{"id": user.ID, "username": user.Username})
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求，成功时返回令牌对。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		respondError(c, apperr.New(apperr.KindBadRequest, "用户名和密码不能为空"))
		return
	}

	accessToken, refreshToken, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// Guest 创建一个游客账号并返回其访问令牌。
func (h *UserHandler) Guest(c *gin.Context) {
	user, accessToken, err := h.userService.CreateGuest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"accessToken": accessToken,
	})
}

// RefreshRequest 定义了令牌刷新 API 的请求体结构。
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh 处理令牌刷新请求。
func (h *UserHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindBadRequest, "refreshToken 不能为空"))
		return
	}

	accessToken, refreshToken, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// Profile 返回当前用户的资料。
func (h *UserHandler) Profile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
		return
	}
	respondOK(c, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"role":      user.Role,
		"type":      string(user.Type()),
		"createdAt": model.LocalTime(user.CreatedAt),
	})
}
