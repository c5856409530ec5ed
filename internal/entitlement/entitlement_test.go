package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zhitalk-go/internal/model"
)

func TestForUserTypeQuotas(t *testing.T) {
	guest := ForUserType(model.UserTypeGuest)
	assert.EqualValues(t, 20, guest.MaxMessagesPerDay)
	assert.EqualValues(t, 10, guest.MaxChatAPICallsPerDay)

	regular := ForUserType(model.UserTypeRegular)
	assert.EqualValues(t, 100, regular.MaxMessagesPerDay)
	assert.EqualValues(t, 30, regular.MaxChatAPICallsPerDay)

	assert.Equal(t, guest.AvailableChatModelIDs, regular.AvailableChatModelIDs)
}

func TestForUserTypeUnknownTreatedAsGuest(t *testing.T) {
	assert.Equal(t, ForUserType(model.UserTypeGuest), ForUserType(model.UserType("admin")))
}

func TestCallLimitMessage(t *testing.T) {
	assert.Equal(t,
		"您今天的聊天请求次数已用完（10次/天）。请明天再试，或注册账号获得更多次数（30次/天）。",
		CallLimitMessage(model.UserTypeGuest))
	assert.Equal(t,
		"您今天的聊天请求次数已用完（30次/天）。请明天再试。",
		CallLimitMessage(model.UserTypeRegular))
}
