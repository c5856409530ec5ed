package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"zhitalk-go/internal/model"
	"zhitalk-go/pkg/llm"
)

// DocumentStore 文档持久化接口，由 repository 层实现。
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetLatestDocument(ctx context.Context, id string) (*model.Document, error)
}

// DocumentToolDeps 文档类工具的公共依赖。
// 发起请求的用户ID不在这里：工具执行时从上下文取（见 WithUserID）。
type DocumentToolDeps struct {
	Store   DocumentStore
	LLM     llm.Client
	ModelID string
}

// NewCreateDocumentTool 创建文档生成工具。
// 根据标题和类型，调用模型生成正文并持久化。
func NewCreateDocumentTool(deps DocumentToolDeps) *Tool {
	return &Tool{
		Name:        "createDocument",
		Description: "创建一个文档用于写作或代码内容。生成的内容会展示给用户并保存，适合篇幅较长的内容（代码、文章等）。",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"title": {
					Type:        "string",
					Description: "文档标题",
				},
				"kind": {
					Type:        "string",
					Description: "文档类型",
					Enum:        []string{"text", "code"},
				},
			},
			Required: []string{"title", "kind"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			title, ok := params["title"].(string)
			if !ok || title == "" {
				return nil, fmt.Errorf("invalid title")
			}
			kind, ok := params["kind"].(string)
			if !ok || (kind != "text" && kind != "code") {
				return nil, fmt.Errorf("invalid kind: %v", params["kind"])
			}

			userID, ok := UserIDFrom(ctx)
			if !ok {
				return nil, fmt.Errorf("missing user in tool context")
			}

			content, err := generateDocumentContent(ctx, deps, kind, title)
			if err != nil {
				return nil, err
			}

			doc := &model.Document{
				ID:      uuid.NewString(),
				UserID:  userID,
				Title:   title,
				Kind:    kind,
				Content: content,
			}
			if err := deps.Store.SaveDocument(ctx, doc); err != nil {
				return nil, fmt.Errorf("save document: %w", err)
			}
			return map[string]interface{}{
				"id":      doc.ID,
				"title":   doc.Title,
				"kind":    doc.Kind,
				"content": "文档已创建，内容对用户可见。",
			}, nil
		},
	}
}

// NewUpdateDocumentTool 创建文档更新工具。按描述重写文档并保存新版本。
func NewUpdateDocumentTool(deps DocumentToolDeps) *Tool {
	return &Tool{
		Name:        "updateDocument",
		Description: "根据描述更新已有文档的内容。",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"id": {
					Type:        "string",
					Description: "要更新的文档ID",
				},
				"description": {
					Type:        "string",
					Description: "需要做哪些修改的描述",
				},
			},
			Required: []string{"id", "description"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			id, ok := params["id"].(string)
			if !ok || id == "" {
				return nil, fmt.Errorf("invalid document id")
			}
			description, ok := params["description"].(string)
			if !ok || description == "" {
				return nil, fmt.Errorf("invalid description")
			}

			userID, ok := UserIDFrom(ctx)
			if !ok {
				return nil, fmt.Errorf("missing user in tool context")
			}

			doc, err := deps.Store.GetLatestDocument(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("document not found: %w", err)
			}
			if doc.UserID != userID {
				return nil, fmt.Errorf("document belongs to another user")
			}

			content, err := rewriteDocumentContent(ctx, deps, doc, description)
			if err != nil {
				return nil, err
			}

			updated := &model.Document{
				ID:      doc.ID,
				UserID:  userID,
				Title:   doc.Title,
				Kind:    doc.Kind,
				Content: content,
			}
			if err := deps.Store.SaveDocument(ctx, updated); err != nil {
				return nil, fmt.Errorf("save document: %w", err)
			}
			return map[string]interface{}{
				"id":      doc.ID,
				"title":   doc.Title,
				"kind":    doc.Kind,
				"content": "文档已按要求更新。",
			}, nil
		},
	}
}

// NewRequestSuggestionsTool 创建文档改进建议工具。
func NewRequestSuggestionsTool(deps DocumentToolDeps) *Tool {
	return &Tool{
		Name:        "requestSuggestions",
		Description: "针对已有文档给出具体的改进建议。",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"documentId": {
					Type:        "string",
					Description: "需要建议的文档ID",
				},
			},
			Required: []string{"documentId"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			id, ok := params["documentId"].(string)
			if !ok || id == "" {
				return nil, fmt.Errorf("invalid documentId")
			}
			doc, err := deps.Store.GetLatestDocument(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("document not found: %w", err)
			}

			content, _, err := deps.LLM.Chat(ctx, []llm.Message{
				{Role: "system", Content: "你是一位写作助手。针对给定的文档提出具体的改进建议，每条建议单独一行，最多5条。"},
				{Role: "user", Content: doc.Content},
			}, &llm.ChatOptions{Model: deps.ModelID})
			if err != nil {
				return nil, fmt.Errorf("generate suggestions: %w", err)
			}
			return map[string]interface{}{
				"id":          doc.ID,
				"title":       doc.Title,
				"suggestions": strings.TrimSpace(content),
				"message":     "建议已生成，内容对用户可见。",
			}, nil
		},
	}
}

func generateDocumentContent(ctx context.Context, deps DocumentToolDeps, kind, title string) (string, error) {
	var system string
	if kind == "code" {
		system = "根据给定的标题编写一段完整可运行的代码片段，使用 Markdown 代码块输出，附简短注释。"
	} else {
		system = "根据给定的标题撰写一篇结构清晰的 Markdown 文档，使用小标题组织内容。"
	}
	content, _, err := deps.LLM.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: title},
	}, &llm.ChatOptions{Model: deps.ModelID})
	if err != nil {
		return "", fmt.Errorf("generate document: %w", err)
	}
	return content, nil
}

func rewriteDocumentContent(ctx context.Context, deps DocumentToolDeps, doc *model.Document, description string) (string, error) {
	content, _, err := deps.LLM.Chat(ctx, []llm.Message{
		{Role: "system", Content: "根据用户的修改要求重写以下文档，保持原有格式，输出完整的新版本内容。"},
		{Role: "user", Content: fmt.Sprintf("修改要求：%s\n\n当前文档：\n%s", description, doc.Content)},
	}, &llm.ChatOptions{Model: deps.ModelID})
	if err != nil {
		return "", fmt.Errorf("update document: %w", err)
	}
	return content, nil
}
