package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zhitalk-go/internal/agent"
	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/config"
	"zhitalk-go/internal/model"
	"zhitalk-go/internal/tools"
	"zhitalk-go/pkg/llm"
)

// scriptedLLM 同时扮演分类器、标题生成与流式生成的上游。
// 所有关键调用都记录到 ops，用于断言执行顺序。
type scriptedLLM struct {
	mu           sync.Mutex
	ops          *opLog
	classifyJSON string
	streamText   string
	streamPrompt []string // 每次 StreamChat 的 system prompt
}

func (f *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (string, *llm.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts != nil && opts.JSONMode {
		f.ops.add("classify")
		return f.classifyJSON, &llm.Usage{TotalTokens: 1}, nil
	}
	f.ops.add("title")
	return "生成的标题", &llm.Usage{TotalTokens: 1}, nil
}

func (f *scriptedLLM) StreamChat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions, emit func(llm.Delta) error) (*llm.StreamResult, error) {
	f.mu.Lock()
	f.ops.add("generate")
	if len(messages) > 0 && messages[0].Role == "system" {
		f.streamPrompt = append(f.streamPrompt, messages[0].Content)
	}
	text := f.streamText
	f.mu.Unlock()

	if err := emit(llm.Delta{Content: text}); err != nil {
		return nil, err
	}
	return &llm.StreamResult{
		Content:      text,
		FinishReason: "stop",
		Usage:        &llm.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
	}, nil
}

// opLog 是跨 fake 共享的操作顺序记录。
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) indexOf(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.ops {
		if o == op {
			return i
		}
	}
	return -1
}

// fakeChatRepo 是 ChatRepository 的内存实现。
type fakeChatRepo struct {
	mu       sync.Mutex
	ops      *opLog
	chats    map[string]*model.Chat
	messages map[string][]model.Message
}

func newFakeChatRepo(ops *opLog) *fakeChatRepo {
	return &fakeChatRepo{
		ops:      ops,
		chats:    map[string]*model.Chat{},
		messages: map[string][]model.Message{},
	}
}

func (f *fakeChatRepo) CreateChat(ctx context.Context, chat *model.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops.add("createChat")
	f.chats[chat.ID] = chat
	return nil
}

func (f *fakeChatRepo) FindChatByID(ctx context.Context, id string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[id], nil
}

func (f *fakeChatRepo) DeleteChat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops.add("deleteChat")
	delete(f.chats, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeChatRepo) ListChatsByUser(ctx context.Context, userID uint, limit int) ([]model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) UpdateLastContext(ctx context.Context, chatID string, usage *model.AppUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops.add("updateLastContext")
	if c, ok := f.chats[chatID]; ok {
		c.LastContext = usage
	}
	return nil
}

func (f *fakeChatRepo) FirstChatID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.chats {
		return id, nil
	}
	return "", nil
}

func (f *fakeChatRepo) SaveMessages(ctx context.Context, messages []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range messages {
		f.ops.add("saveMessage:" + m.Role)
		f.messages[m.ChatID] = append(f.messages[m.ChatID], m)
	}
	return nil
}

func (f *fakeChatRepo) FindMessagesByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages[chatID]...), nil
}

func (f *fakeChatRepo) messagesByRole(chatID, role string) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages[chatID] {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// fakeStreamRepo 是 StreamRepository 的内存实现。
type fakeStreamRepo struct {
	mu       sync.Mutex
	events   map[string][]string
	finished map[string]bool
	byChat   map[string]string
}

func newFakeStreamRepo() *fakeStreamRepo {
	return &fakeStreamRepo{
		events:   map[string][]string{},
		finished: map[string]bool{},
		byChat:   map[string]string{},
	}
}

func (f *fakeStreamRepo) CreateStream(ctx context.Context, streamID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byChat[chatID] = streamID
	return nil
}

func (f *fakeStreamRepo) AppendEvent(ctx context.Context, streamID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[streamID] = append(f.events[streamID], string(payload))
	return nil
}

func (f *fakeStreamRepo) MarkFinished(ctx context.Context, streamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[streamID] = true
	return nil
}

func (f *fakeStreamRepo) ReadEvents(ctx context.Context, streamID string, offset int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.events[streamID]
	if int(offset) >= len(all) {
		return nil, nil
	}
	return append([]string(nil), all[offset:]...), nil
}

func (f *fakeStreamRepo) IsFinished(ctx context.Context, streamID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[streamID], nil
}

func (f *fakeStreamRepo) LatestStreamID(ctx context.Context, chatID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byChat[chatID], nil
}

// fakeQuota 是 QuotaService 的可配置实现。
type fakeQuota struct {
	callErr    error
	messageErr error
	recorded   int
	ops        *opLog
}

func (f *fakeQuota) CheckAndRecordCall(ctx context.Context, user *model.User) error {
	if f.callErr != nil {
		return f.callErr
	}
	f.recorded++
	if f.ops != nil {
		f.ops.add("recordCall")
	}
	return nil
}

func (f *fakeQuota) CheckMessageQuota(ctx context.Context, user *model.User) error {
	return f.messageErr
}

func (f *fakeQuota) Usage(ctx context.Context, user *model.User) (*UsageSummary, error) {
	return &UsageSummary{}, nil
}

type chatFixture struct {
	svc        ChatService
	chatRepo   *fakeChatRepo
	streamRepo *fakeStreamRepo
	quota      *fakeQuota
	llm        *scriptedLLM
	ops        *opLog
}

func newChatFixture(t *testing.T, classifyJSON string, quota *fakeQuota) *chatFixture {
	t.Helper()
	ops := &opLog{}
	client := &scriptedLLM{
		ops:          ops,
		classifyJSON: classifyJSON,
		streamText:   "assistant reply",
	}
	if quota == nil {
		quota = &fakeQuota{}
	}
	quota.ops = ops

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewResumeTemplateTool()))
	require.NoError(t, registry.Register(tools.NewScoreSkillsTool()))

	cfg := config.LLMConfig{Models: map[string]string{
		"chat-model":           "deepseek-chat",
		"chat-model-reasoning": "deepseek-reasoner",
	}}
	orchestrator := agent.NewOrchestrator(
		agent.NewClassifier(client, "deepseek-chat"),
		agent.NewDefaultHandler(cfg, client, registry, nil, "chat-model"),
		agent.NewDefaultHandler(cfg, client, registry, nil, "chat-model-reasoning"),
		agent.NewResumeOptHandler(cfg, client, registry, nil),
		agent.NewMockInterviewHandler(cfg, client, registry, nil),
	)

	chatRepo := newFakeChatRepo(ops)
	streamRepo := newFakeStreamRepo()
	svc := NewChatService(chatRepo, streamRepo, quota, orchestrator, client, "deepseek-chat", 30*time.Second)

	return &chatFixture{
		svc:        svc,
		chatRepo:   chatRepo,
		streamRepo: streamRepo,
		quota:      quota,
		llm:        client,
		ops:        ops,
	}
}

func textRequest(chatID string) *ChatRequest {
	return &ChatRequest{
		ChatID: chatID,
		Message: IncomingMessage{
			ID:    "msg-1",
			Parts: model.PartList{{Type: "text", Text: "介绍一下 Go 语言"}},
		},
		SelectedChatModel: "chat-model",
		Visibility:        "private",
	}
}

const allFalse = `{"resume_opt":false,"mock_interview":false,"related_topics":true,"others":false}`

func drain(stream *ChatStream) []agent.Event {
	var events []agent.Event
	for ev := range stream.Events {
		events = append(events, ev)
	}
	return events
}

func TestStartChatNewChatEndToEnd(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	user := regularUser()

	stream, err := f.svc.StartChat(context.Background(), user, textRequest("chat-1"))
	require.NoError(t, err)
	require.NotEmpty(t, stream.StreamID)

	events := drain(stream)

	// 事件顺序：text-delta ... usage, finish（finish 恰好一次且最后）
	require.NotEmpty(t, events)
	assert.Equal(t, agent.EventFinish, events[len(events)-1].Type)
	finishCount, usageIdx, finishIdx := 0, -1, -1
	for i, ev := range events {
		switch ev.Type {
		case agent.EventFinish:
			finishCount++
			finishIdx = i
		case agent.EventUsage:
			usageIdx = i
		}
	}
	assert.Equal(t, 1, finishCount)
	require.NotEqual(t, -1, usageIdx)
	assert.Less(t, usageIdx, finishIdx)

	// 会话已建档并带标题
	chat, err := f.chatRepo.FindChatByID(context.Background(), "chat-1")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "生成的标题", chat.Title)
	assert.Equal(t, user.ID, chat.UserID)

	// 用户消息先于生成落库
	userSaveIdx := f.ops.indexOf("saveMessage:user")
	generateIdx := f.ops.indexOf("generate")
	require.NotEqual(t, -1, userSaveIdx)
	require.NotEqual(t, -1, generateIdx)
	assert.Less(t, userSaveIdx, generateIdx, "用户消息必须在生成开始前持久化")

	// 记账先于分类与生成
	assert.Less(t, f.ops.indexOf("recordCall"), f.ops.indexOf("classify"))

	// 恰好一条助手消息，带完整文本
	assistant := f.chatRepo.messagesByRole("chat-1", "assistant")
	require.Len(t, assistant, 1)
	assert.Equal(t, "assistant reply", assistant[0].Parts.Text())

	// 用量快照已更新，流已标记结束
	assert.NotNil(t, chat.LastContext)
	assert.Equal(t, 8, chat.LastContext.TotalTokens)
	finished, _ := f.streamRepo.IsFinished(context.Background(), stream.StreamID)
	assert.True(t, finished)
}

func TestStartChatAtCallQuotaPerformsZeroMutations(t *testing.T) {
	quota := &fakeQuota{callErr: apperr.New(apperr.KindRateLimitCall, "")}
	f := newChatFixture(t, allFalse, quota)

	_, err := f.svc.StartChat(context.Background(), regularUser(), textRequest("chat-1"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRateLimitCall))

	chat, _ := f.chatRepo.FindChatByID(context.Background(), "chat-1")
	assert.Nil(t, chat, "限流拒绝不建档")
	assert.Empty(t, f.chatRepo.messages, "限流拒绝不落任何消息")
	assert.Equal(t, 0, f.quota.recorded)
}

func TestStartChatMessageQuotaRejectedAfterCallRecorded(t *testing.T) {
	quota := &fakeQuota{messageErr: apperr.New(apperr.KindRateLimitMsg, "")}
	f := newChatFixture(t, allFalse, quota)

	_, err := f.svc.StartChat(context.Background(), regularUser(), textRequest("chat-1"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRateLimitMsg))

	// 调用记账发生在消息配额检查之前：被拒绝的请求也已计入调用配额
	assert.Equal(t, 1, f.quota.recorded)
	assert.Empty(t, f.chatRepo.messages)
}

func TestStartChatForbiddenForOthersChat(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	f.chatRepo.chats["chat-1"] = &model.Chat{ID: "chat-1", UserID: 99}

	_, err := f.svc.StartChat(context.Background(), regularUser(), textRequest("chat-1"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	assert.Empty(t, f.chatRepo.messages)
}

func TestStartChatRoutesResumeOptByClassification(t *testing.T) {
	f := newChatFixture(t, `{"resume_opt":true,"mock_interview":true,"related_topics":false,"others":false}`, nil)

	stream, err := f.svc.StartChat(context.Background(), regularUser(), textRequest("chat-1"))
	require.NoError(t, err)
	drain(stream)

	require.Len(t, f.llm.streamPrompt, 1)
	assert.Contains(t, f.llm.streamPrompt[0], "简历优化专家", "resume_opt 优先于 mock_interview")
}

func TestStartChatRejectsUnknownModel(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	req := textRequest("chat-1")
	req.SelectedChatModel = "gpt-unknown"

	_, err := f.svc.StartChat(context.Background(), regularUser(), req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
}

func TestStartChatRejectsEmptyMessage(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	req := textRequest("chat-1")
	req.Message.Parts = model.PartList{{Type: "text", Text: "   "}}

	_, err := f.svc.StartChat(context.Background(), regularUser(), req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))
}

func TestDeleteChatForbiddenLeavesRecordUnchanged(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	f.chatRepo.chats["chat-1"] = &model.Chat{ID: "chat-1", UserID: 99, Title: "别人的会话"}

	_, err := f.svc.DeleteChat(context.Background(), regularUser(), "chat-1")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	chat, _ := f.chatRepo.FindChatByID(context.Background(), "chat-1")
	require.NotNil(t, chat)
	assert.Equal(t, "别人的会话", chat.Title)
}

func TestDeleteChatOwnChat(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	user := regularUser()
	f.chatRepo.chats["chat-1"] = &model.Chat{ID: "chat-1", UserID: user.ID}

	deleted, err := f.svc.DeleteChat(context.Background(), user, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", deleted.ID)

	chat, _ := f.chatRepo.FindChatByID(context.Background(), "chat-1")
	assert.Nil(t, chat)
}

func TestResumeStreamReplaysBufferedEvents(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	user := regularUser()

	stream, err := f.svc.StartChat(context.Background(), user, textRequest("chat-1"))
	require.NoError(t, err)
	drain(stream)

	streamID, events, finished, err := f.svc.ResumeStream(context.Background(), user, "chat-1", 0)
	require.NoError(t, err)
	assert.Equal(t, stream.StreamID, streamID, "恢复的是同一次生成，不是新生成")
	assert.True(t, finished)
	assert.NotEmpty(t, events)
}

func TestResumeStreamForbiddenForOthersChat(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	f.chatRepo.chats["chat-1"] = &model.Chat{ID: "chat-1", UserID: 99}

	_, _, _, err := f.svc.ResumeStream(context.Background(), regularUser(), "chat-1", 0)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestGetMessagesVisibility(t *testing.T) {
	f := newChatFixture(t, allFalse, nil)
	f.chatRepo.chats["private-chat"] = &model.Chat{ID: "private-chat", UserID: 99, Visibility: "private"}
	f.chatRepo.chats["public-chat"] = &model.Chat{ID: "public-chat", UserID: 99, Visibility: "public"}

	_, err := f.svc.GetMessages(context.Background(), regularUser(), "private-chat")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = f.svc.GetMessages(context.Background(), regularUser(), "public-chat")
	assert.NoError(t, err)
}
