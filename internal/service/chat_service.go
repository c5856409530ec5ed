package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"zhitalk-go/internal/agent"
	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/entitlement"
	"zhitalk-go/internal/model"
	"zhitalk-go/internal/repository"
	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/kafka"
	"zhitalk-go/pkg/llm"
	"zhitalk-go/pkg/log"
)

// IncomingMessage 是客户端发来的一条用户消息。
type IncomingMessage struct {
	ID    string         `json:"id" binding:"required"`
	Parts model.PartList `json:"parts" binding:"required"`
}

// ChatRequest 是一次聊天请求的入参。
type ChatRequest struct {
	ChatID            string          `json:"id" binding:"required"`
	Message           IncomingMessage `json:"message" binding:"required"`
	SelectedChatModel string          `json:"selectedChatModel" binding:"required"`
	Visibility        string          `json:"selectedVisibilityType"`
}

// ChatStream 是已启动的一次生成的消费端。
// Events 通道在 finish 事件后关闭；客户端断开只影响本通道的消费，
// 不会中断底层生成。
type ChatStream struct {
	StreamID string
	Events   <-chan agent.Event
}

// ChatService 接口定义了聊天会话的全部业务操作。
type ChatService interface {
	// StartChat 执行一次完整的聊天请求：校验、限流、会话归属检查、
	// 消息落库，并启动分类调度与流式生成。
	StartChat(ctx context.Context, user *model.User, req *ChatRequest) (*ChatStream, error)
	// DeleteChat 删除用户自己的会话，返回被删除的会话。
	DeleteChat(ctx context.Context, user *model.User, chatID string) (*model.Chat, error)
	// ListChats 返回用户的会话列表。
	ListChats(ctx context.Context, user *model.User, limit int) ([]model.Chat, error)
	// GetMessages 返回会话的消息历史，私有会话仅限归属用户访问。
	GetMessages(ctx context.Context, user *model.User, chatID string) ([]model.Message, error)
	// ResumeStream 恢复观看会话最近一次进行中的生成，
	// 返回已缓冲的事件与用于继续轮询的流ID。
	ResumeStream(ctx context.Context, user *model.User, chatID string, offset int64) (streamID string, events []string, finished bool, err error)
	// ReadStream 从指定位置读取流会话缓冲的事件。
	ReadStream(ctx context.Context, streamID string, offset int64) (events []string, finished bool, err error)
	// FirstChatID 返回最早创建的会话ID，供健康监测使用。
	FirstChatID(ctx context.Context) (string, error)
}

// chatService 是 ChatService 接口的实现。
type chatService struct {
	chatRepo     repository.ChatRepository
	streamRepo   repository.StreamRepository
	quota        QuotaService
	orchestrator *agent.Orchestrator
	llmClient    llm.Client
	titleModel   string
	timeout      time.Duration
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	chatRepo repository.ChatRepository,
	streamRepo repository.StreamRepository,
	quota QuotaService,
	orchestrator *agent.Orchestrator,
	llmClient llm.Client,
	titleModel string,
	requestTimeout time.Duration,
) ChatService {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &chatService{
		chatRepo:     chatRepo,
		streamRepo:   streamRepo,
		quota:        quota,
		orchestrator: orchestrator,
		llmClient:    llmClient,
		titleModel:   titleModel,
		timeout:      requestTimeout,
	}
}

// StartChat 的执行顺序是固定的：
//  1. 入参校验
//  2. 调用配额检查并记账（记账先于一切后续失败点）
//  3. 消息配额检查
//  4. 会话归属检查 / 新会话建档（含标题生成）
//  5. 用户消息落库
//  6. 登记流会话并启动生成
func (s *chatService) StartChat(ctx context.Context, user *model.User, req *ChatRequest) (*ChatStream, error) {
	if err := validateChatRequest(user, req); err != nil {
		return nil, err
	}

	if err := s.quota.CheckAndRecordCall(ctx, user); err != nil {
		return nil, err
	}
	if err := s.quota.CheckMessageQuota(ctx, user); err != nil {
		return nil, err
	}

	chat, err := s.chatRepo.FindChatByID(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}

	var history []model.Message
	if chat != nil {
		if chat.UserID != user.ID {
			return nil, apperr.New(apperr.KindForbidden, "")
		}
		history, err = s.chatRepo.FindMessagesByChatID(ctx, req.ChatID)
		if err != nil {
			return nil, err
		}
	} else {
		title := s.generateTitle(ctx, req.Message)
		visibility := req.Visibility
		if visibility == "" {
			visibility = model.VisibilityPrivate
		}
		if err := s.chatRepo.CreateChat(ctx, &model.Chat{
			ID:         req.ChatID,
			UserID:     user.ID,
			Title:      title,
			Visibility: visibility,
		}); err != nil {
			return nil, err
		}
	}

	userMessage := model.Message{
		ID:     req.Message.ID,
		ChatID: req.ChatID,
		Role:   "user",
		Parts:  req.Message.Parts,
	}
	if err := s.chatRepo.SaveMessages(ctx, []model.Message{userMessage}); err != nil {
		return nil, err
	}

	streamID := uuid.NewString()
	if err := s.streamRepo.CreateStream(ctx, streamID, req.ChatID); err != nil {
		log.Warnf("流会话登记失败 stream=%s: %v", streamID, err)
	}

	llmHistory := toLLMMessages(append(history, userMessage))

	// 生成与请求生命周期解耦：客户端断开后生成继续跑完，
	// 结束时的落库仍会执行。硬超时兜底。
	genCtx, cancel := context.WithTimeout(tools.WithUserID(context.Background(), user.ID), s.timeout)

	kind, handle := s.orchestrator.Run(genCtx, llmHistory, req.SelectedChatModel)
	log.Infow("聊天请求已调度",
		"chatId", req.ChatID,
		"userId", user.ID,
		"agent", string(kind),
		"streamId", streamID)

	out := make(chan agent.Event, 256)
	go func() {
		defer cancel()
		defer close(out)

		for ev := range handle.Events {
			s.bufferEvent(streamID, ev)
			select {
			case out <- ev:
			case <-ctx.Done():
				// 客户端已断开：继续消费事件以便缓冲与落库，不再转发
			}
		}

		s.finishChat(user, req.ChatID, streamID, kind, handle.Result())
	}()

	return &ChatStream{StreamID: streamID, Events: out}, nil
}

// bufferEvent 把事件写入 Redis 缓冲，供断线恢复回放。尽力而为。
func (s *chatService) bufferEvent(streamID string, ev agent.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.streamRepo.AppendEvent(ctx, streamID, payload); err != nil {
		log.Warnf("流事件缓冲失败 stream=%s: %v", streamID, err)
	}
}

// finishChat 在生成结束后执行落库：助手消息、最近用量快照、用量事件。
// 出错的生成也会保留已产出的部分文本。
func (s *chatService) finishChat(user *model.User, chatID, streamID string, kind agent.Kind, result *agent.RunResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if result.Err != nil {
		log.Errorf("生成未正常完成 chat=%s: %v", chatID, result.Err)
	}

	if result.Text != "" {
		assistant := model.Message{
			ID:     uuid.NewString(),
			ChatID: chatID,
			Role:   "assistant",
			Parts:  model.PartList{{Type: "text", Text: result.Text}},
		}
		if err := s.chatRepo.SaveMessages(ctx, []model.Message{assistant}); err != nil {
			log.Errorf("助手消息落库失败 chat=%s: %v", chatID, err)
		}
	}

	if result.Usage != nil {
		if err := s.chatRepo.UpdateLastContext(ctx, chatID, result.Usage); err != nil {
			log.Warnf("会话用量快照更新失败 chat=%s: %v", chatID, err)
		}
		if err := kafka.ProduceUsageEvent(kafka.UsageEvent{
			UserID:    user.ID,
			ChatID:    chatID,
			AgentKind: string(kind),
			Usage:     result.Usage,
		}); err != nil {
			log.Warnf("用量事件上报失败 chat=%s: %v", chatID, err)
		}
	}

	if err := s.streamRepo.MarkFinished(ctx, streamID); err != nil {
		log.Warnf("流会话结束标记失败 stream=%s: %v", streamID, err)
	}
}

// generateTitle 用模型根据首条消息生成会话标题，失败时回退为消息截断。
func (s *chatService) generateTitle(ctx context.Context, message IncomingMessage) string {
	text := message.Parts.Text()
	title, _, err := s.llmClient.Chat(ctx, []llm.Message{
		{Role: "system", Content: titlePrompt},
		{Role: "user", Content: text},
	}, &llm.ChatOptions{Model: s.titleModel})
	if err != nil {
		log.Warnf("标题生成失败，使用消息截断: %v", err)
		return truncateTitle(text)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return truncateTitle(text)
	}
	return truncateTitle(title)
}

const titlePrompt = `根据用户发来的第一条消息生成一个简短的会话标题：
- 不超过80个字符
- 直接概括用户消息的主题
- 不要使用引号和冒号`

func truncateTitle(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) == 0 {
		return "新的会话"
	}
	if len(runes) > 80 {
		return string(runes[:80])
	}
	return string(runes)
}

// DeleteChat 删除会话。归属不符或会话不存在都按无权限处理。
func (s *chatService) DeleteChat(ctx context.Context, user *model.User, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != user.ID {
		return nil, apperr.New(apperr.KindForbidden, "")
	}
	if err := s.chatRepo.DeleteChat(ctx, chatID); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *chatService) ListChats(ctx context.Context, user *model.User, limit int) ([]model.Chat, error) {
	return s.chatRepo.ListChatsByUser(ctx, user.ID, limit)
}

func (s *chatService) GetMessages(ctx context.Context, user *model.User, chatID string) ([]model.Message, error) {
	chat, err := s.chatRepo.FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, apperr.New(apperr.KindNotFound, "")
	}
	if chat.Visibility != model.VisibilityPublic && chat.UserID != user.ID {
		return nil, apperr.New(apperr.KindForbidden, "")
	}
	return s.chatRepo.FindMessagesByChatID(ctx, chatID)
}

func (s *chatService) ResumeStream(ctx context.Context, user *model.User, chatID string, offset int64) (string, []string, bool, error) {
	chat, err := s.chatRepo.FindChatByID(ctx, chatID)
	if err != nil {
		return "", nil, false, err
	}
	if chat == nil || chat.UserID != user.ID {
		return "", nil, false, apperr.New(apperr.KindForbidden, "")
	}

	streamID, err := s.streamRepo.LatestStreamID(ctx, chatID)
	if err != nil {
		return "", nil, false, err
	}
	if streamID == "" {
		return "", nil, false, apperr.New(apperr.KindNotFound, "没有可恢复的生成")
	}

	events, finished, err := s.ReadStream(ctx, streamID, offset)
	return streamID, events, finished, err
}

func (s *chatService) ReadStream(ctx context.Context, streamID string, offset int64) ([]string, bool, error) {
	events, err := s.streamRepo.ReadEvents(ctx, streamID, offset)
	if err != nil {
		return nil, false, err
	}
	finished, err := s.streamRepo.IsFinished(ctx, streamID)
	if err != nil {
		return nil, false, err
	}
	return events, finished, nil
}

func (s *chatService) FirstChatID(ctx context.Context) (string, error) {
	return s.chatRepo.FirstChatID(ctx)
}

// validateChatRequest 校验入参：消息非空、模型型号在用户可用范围内、
// 可见性取值合法。
func validateChatRequest(user *model.User, req *ChatRequest) error {
	if req.ChatID == "" || req.Message.ID == "" || len(req.Message.Parts) == 0 {
		return apperr.New(apperr.KindBadRequest, "")
	}
	if strings.TrimSpace(req.Message.Parts.Text()) == "" {
		return apperr.New(apperr.KindBadRequest, "消息内容不能为空")
	}
	if req.Visibility != "" && req.Visibility != model.VisibilityPrivate && req.Visibility != model.VisibilityPublic {
		return apperr.New(apperr.KindBadRequest, "不支持的可见性类型")
	}

	limits := entitlement.ForUserType(user.Type())
	for _, id := range limits.AvailableChatModelIDs {
		if id == req.SelectedChatModel {
			return nil
		}
	}
	return apperr.New(apperr.KindBadRequest, "不支持的模型型号")
}

// toLLMMessages 把持久化消息转为模型消息：文本拼接，文件附件以链接描述。
func toLLMMessages(messages []model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		var b strings.Builder
		for _, p := range m.Parts {
			switch p.Type {
			case "text":
				b.WriteString(p.Text)
			case "file":
				b.WriteString("\n[附件] ")
				b.WriteString(p.Name)
				b.WriteString(": ")
				b.WriteString(p.URL)
			}
		}
		out = append(out, llm.Message{Role: m.Role, Content: b.String()})
	}
	return out
}
