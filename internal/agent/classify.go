package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/pkg/llm"
)

// ClassifyResult 一次消息分类的结果。
// 四个布尔判断相互独立，不互斥；调度时按优先级顺序取舍。
type ClassifyResult struct {
	ResumeOpt     bool `json:"resume_opt"`
	MockInterview bool `json:"mock_interview"`
	RelatedTopics bool `json:"related_topics"`
	Others        bool `json:"others"`
}

// 用于严格校验模型输出：四个字段必须全部存在且为布尔值。
type rawClassifyResult struct {
	ResumeOpt     *bool `json:"resume_opt"`
	MockInterview *bool `json:"mock_interview"`
	RelatedTopics *bool `json:"related_topics"`
	Others        *bool `json:"others"`
}

// Classifier 对用户消息做意图分类。
type Classifier struct {
	client llm.Client
	model  string
}

func NewClassifier(client llm.Client, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

// Classify 基于完整消息历史调用一次模型，要求输出固定形状的 JSON。
// 模型不可用或输出无法通过校验时返回分类错误，由调用方决定回退策略。
func (c *Classifier) Classify(ctx context.Context, history []llm.Message) (*ClassifyResult, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: classifySystemPrompt})
	messages = append(messages, history...)

	content, _, err := c.client.Chat(ctx, messages, &llm.ChatOptions{
		Model:    c.model,
		JSONMode: true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindClassification, "", fmt.Errorf("classify chat: %w", err))
	}

	var raw rawClassifyResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, apperr.Wrap(apperr.KindClassification, "", fmt.Errorf("classify output is not valid JSON: %w", err))
	}
	if raw.ResumeOpt == nil || raw.MockInterview == nil || raw.RelatedTopics == nil || raw.Others == nil {
		return nil, apperr.Wrap(apperr.KindClassification, "", fmt.Errorf("classify output missing required fields: %s", content))
	}

	return &ClassifyResult{
		ResumeOpt:     *raw.ResumeOpt,
		MockInterview: *raw.MockInterview,
		RelatedTopics: *raw.RelatedTopics,
		Others:        *raw.Others,
	}, nil
}
