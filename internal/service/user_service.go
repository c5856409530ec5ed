// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/model"
	"zhitalk-go/internal/repository"
	"zhitalk-go/pkg/hash"
	"zhitalk-go/pkg/log"
	"zhitalk-go/pkg/token"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	CreateGuest(ctx context.Context) (*model.User, string, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	GetProfile(ctx context.Context, userID uint) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if model.IsGuestUsername(username) {
		return nil, apperr.New(apperr.KindBadRequest, "该用户名格式为游客保留")
	}

	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, apperr.New(apperr.KindBadRequest, "用户名已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建新用户
	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
		Role:     "USER",
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	log.Infof("用户注册成功: %s", username)
	return newUser, nil
}

// Login 处理用户登录，校验密码并签发令牌对。
func (s *userService) Login(ctx context.Context, username, password string) (string, string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", apperr.New(apperr.KindUnauthorized, "用户名或密码错误")
		}
		return "", "", err
	}

	if !hash.CheckPassword(password, user.Password) {
		return "", "", apperr.New(apperr.KindUnauthorized, "用户名或密码错误")
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// CreateGuest 创建一个游客账号并签发访问令牌。
// 游客用户名形如 guest-<毫秒时间戳><两位随机数>，密码随机生成且不返回。
func (s *userService) CreateGuest(ctx context.Context) (*model.User, string, error) {
	username := fmt.Sprintf("guest-%d%02d", time.Now().UnixMilli(), rand.Intn(100))
	password, err := hash.HashPassword(fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Int63()))
	if err != nil {
		return nil, "", err
	}

	guest := &model.User{
		Username: username,
		Password: password,
		Role:     "GUEST",
	}
	if err := s.userRepo.Create(ctx, guest); err != nil {
		return nil, "", err
	}

	accessToken, err := s.jwtManager.GenerateToken(guest.ID, guest.Username, guest.Role)
	if err != nil {
		return nil, "", err
	}

	log.Infof("游客账号创建成功: %s", username)
	return guest, accessToken, nil
}

// RefreshToken 校验 refresh token 并签发新的令牌对。
func (s *userService) RefreshToken(refreshTokenString string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", apperr.New(apperr.KindUnauthorized, "登录状态已过期，请重新登录")
	}

	newAccessToken, err := s.jwtManager.GenerateToken(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}

// GetProfile 返回用户资料。
func (s *userService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "用户不存在")
		}
		return nil, err
	}
	return user, nil
}
