package agent

import (
	"context"

	"zhitalk-go/pkg/llm"
	"zhitalk-go/pkg/log"
)

// StreamRunner 是编排器眼中的助手：能按消息历史产出一条事件流。
type StreamRunner interface {
	Kind() Kind
	Run(ctx context.Context, history []llm.Message) *StreamHandle
}

// Orchestrator 驱动一次请求的 分类 -> 调度 -> 流式生成 流程。
type Orchestrator struct {
	classifier       *Classifier
	defaultChat      StreamRunner
	defaultReasoning StreamRunner
	resumeOpt        StreamRunner
	mockInterview    StreamRunner
}

func NewOrchestrator(classifier *Classifier, defaultChat, defaultReasoning, resumeOpt, mockInterview StreamRunner) *Orchestrator {
	return &Orchestrator{
		classifier:       classifier,
		defaultChat:      defaultChat,
		defaultReasoning: defaultReasoning,
		resumeOpt:        resumeOpt,
		mockInterview:    mockInterview,
	}
}

// Run 对消息历史做一次分类，按优先级选择助手并启动生成。
// 返回被选中的助手类型与流句柄。
//
// 分类失败不会使请求失败：记一条日志后回退到默认助手。
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message, modelAlias string) (Kind, *StreamHandle) {
	result, err := o.classifier.Classify(ctx, history)
	if err != nil {
		log.Warnf("消息分类失败，回退到默认助手: %v", err)
		result = nil
	}

	runner := o.selectRunner(result, modelAlias)
	return runner.Kind(), runner.Run(ctx, history)
}

// selectRunner 按固定优先级把四个非互斥的分类布尔折叠为一个选择：
// resume_opt > mock_interview > default（default 覆盖 related_topics、
// others 以及分类缺失的情况）。
func (o *Orchestrator) selectRunner(result *ClassifyResult, modelAlias string) StreamRunner {
	if result != nil {
		if result.ResumeOpt {
			return o.resumeOpt
		}
		if result.MockInterview {
			return o.mockInterview
		}
	}
	if modelAlias == "chat-model-reasoning" {
		return o.defaultReasoning
	}
	return o.defaultChat
}
