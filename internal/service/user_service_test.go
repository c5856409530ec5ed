package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/gorm"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/model"
	"zhitalk-go/pkg/hash"
	"zhitalk-go/pkg/token"
)

// fakeUserRepo 是 UserRepository 的内存实现。
type fakeUserRepo struct {
	nextID uint
	users  map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[string]*model.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = f.nextID
	f.nextID++
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(ctx context.Context, userID uint) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	f.users[user.Username] = user
	return nil
}

func newUserFixture(t *testing.T) (UserService, *fakeUserRepo, *token.JWTManager) {
	t.Helper()
	repo := newFakeUserRepo()
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(repo, jwtManager), repo, jwtManager
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo, _ := newUserFixture(t)

	user, err := svc.Register(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "USER", user.Role)
	assert.Equal(t, model.UserTypeRegular, user.Type())

	stored := repo.users["zhangsan"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret123", stored.Password, "密码不能明文落库")
	assert.True(t, hash.CheckPassword("secret123", stored.Password))
}

func TestRegisterRejectsGuestFormatUsername(t *testing.T) {
	svc, repo, _ := newUserFixture(t)

	_, err := svc.Register(context.Background(), "guest-123456", "secret123")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
	assert.Empty(t, repo.users)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Register(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "zhangsan", "other456")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
}

func TestLoginWithCorrectPassword(t *testing.T) {
	svc, _, jwtManager := newUserFixture(t)

	user, err := svc.Register(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)

	accessToken, refreshToken, err := svc.Login(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)

	claims, err := jwtManager.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "zhangsan", claims.Username)

	_, err = jwtManager.VerifyToken(refreshToken)
	assert.NoError(t, err)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Register(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "zhangsan", "wrong-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	// 不泄露用户名是否存在：与未知用户的提示一致
	assert.Equal(t, "用户名或密码错误", apperr.From(err).UserMessage())
}

func TestLoginUnknownUserSameMessage(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, _, err := svc.Login(context.Background(), "nobody", "secret123")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	assert.Equal(t, "用户名或密码错误", apperr.From(err).UserMessage())
}

func TestCreateGuestUsernameFormat(t *testing.T) {
	svc, _, jwtManager := newUserFixture(t)

	guest, accessToken, err := svc.CreateGuest(context.Background())
	require.NoError(t, err)

	assert.True(t, model.IsGuestUsername(guest.Username), "游客用户名必须是 guest-<数字> 格式: %s", guest.Username)
	assert.Equal(t, model.UserTypeGuest, guest.Type())
	assert.Equal(t, "GUEST", guest.Role)

	claims, err := jwtManager.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, claims.UserID)
}

func TestRefreshTokenIssuesNewPair(t *testing.T) {
	svc, _, jwtManager := newUserFixture(t)

	user, err := svc.Register(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login(context.Background(), "zhangsan", "secret123")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refreshToken)
	require.NoError(t, err)
	claims, err := jwtManager.VerifyToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	_, err = jwtManager.VerifyToken(newRefresh)
	assert.NoError(t, err)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, _, err := svc.RefreshToken("not-a-token")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestGetProfileNotFound(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.GetProfile(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
