package service

import (
	"context"
	"time"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/entitlement"
	"zhitalk-go/internal/model"
	"zhitalk-go/internal/repository"
)

// 配额统计的滚动窗口长度。
const quotaWindow = 24 * time.Hour

// UsageSummary 是用户当前调用配额的使用情况。
type UsageSummary struct {
	Used int64 `json:"used"`
	Max  int64 `json:"max"`
}

// QuotaService 接口定义了限流相关的业务操作。
type QuotaService interface {
	// CheckAndRecordCall 检查调用配额并记录本次调用。
	// 配额已满时返回 rate_limit:chat_api 错误且不记录；
	// 检查通过则先记录再返回，即被后续环节拒绝的请求也计入配额。
	CheckAndRecordCall(ctx context.Context, user *model.User) error
	// CheckMessageQuota 检查消息配额，超出时返回 rate_limit:chat 错误。
	CheckMessageQuota(ctx context.Context, user *model.User) error
	// Usage 返回用户当前窗口内的调用配额使用情况。
	Usage(ctx context.Context, user *model.User) (*UsageSummary, error)
}

// quotaService 是 QuotaService 接口的实现。
type quotaService struct {
	quotaRepo repository.QuotaRepository
}

// NewQuotaService 创建一个新的 QuotaService 实例。
func NewQuotaService(quotaRepo repository.QuotaRepository) QuotaService {
	return &quotaService{quotaRepo: quotaRepo}
}

func (s *quotaService) CheckAndRecordCall(ctx context.Context, user *model.User) error {
	userType := user.Type()
	limits := entitlement.ForUserType(userType)
	since := time.Now().Add(-quotaWindow)

	count, err := s.quotaRepo.CountCallsSince(ctx, user.ID, since)
	if err != nil {
		return err
	}
	// 达到上限即拒绝（>=，上限本身已不可用）
	if count >= limits.MaxChatAPICallsPerDay {
		return apperr.New(apperr.KindRateLimitCall, entitlement.CallLimitMessage(userType))
	}

	return s.quotaRepo.RecordCall(ctx, user.ID)
}

func (s *quotaService) CheckMessageQuota(ctx context.Context, user *model.User) error {
	limits := entitlement.ForUserType(user.Type())
	since := time.Now().Add(-quotaWindow)

	count, err := s.quotaRepo.CountUserMessagesSince(ctx, user.ID, since)
	if err != nil {
		return err
	}
	// 严格大于才拒绝，与调用配额的判断不同
	if count > limits.MaxMessagesPerDay {
		return apperr.New(apperr.KindRateLimitMsg, "")
	}
	return nil
}

func (s *quotaService) Usage(ctx context.Context, user *model.User) (*UsageSummary, error) {
	limits := entitlement.ForUserType(user.Type())
	used, err := s.quotaRepo.CountCallsSince(ctx, user.ID, time.Now().Add(-quotaWindow))
	if err != nil {
		return nil, err
	}
	return &UsageSummary{Used: used, Max: limits.MaxChatAPICallsPerDay}, nil
}
