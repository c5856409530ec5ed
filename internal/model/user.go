// Package model 包含了应用的数据模型定义。
package model

import (
	"regexp"
	"time"
)

// UserType 区分游客账号与注册账号，二者拥有不同的配额。
type UserType string

const (
	UserTypeGuest   UserType = "guest"
	UserTypeRegular UserType = "regular"
)

// guestUsernameRegex 匹配游客账号用户名（guest-<数字>）。
var guestUsernameRegex = regexp.MustCompile(`^guest-\d+$`)

// User 定义了 users 表的 ORM 模型。
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// IsGuestUsername 判断用户名是否为游客账号格式。
func IsGuestUsername(username string) bool {
	return guestUsernameRegex.MatchString(username)
}

// Type 根据用户名推断用户类别：guest-<n> 为游客，其余为注册用户。
func (u *User) Type() UserType {
	if guestUsernameRegex.MatchString(u.Username) {
		return UserTypeGuest
	}
	return UserTypeRegular
}
