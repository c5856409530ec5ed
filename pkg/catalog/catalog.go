// Package catalog 提供模型元数据目录的访问：按模型 ID 查询计价与
// 上下文窗口信息，用于 usage 富化。目录内容通过 HTTP 拉取并在进程内
// 缓存（默认 24 小时 TTL，过期或未命中时刷新）。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"zhitalk-go/internal/config"
)

// ModelMeta 是目录中单个模型的元数据。
type ModelMeta struct {
	// 每百万 token 的美元价格
	InputCostPerMTok  float64 `json:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `json:"output_cost_per_mtok"`
	ContextWindow     int     `json:"context_window"`
}

// document 是目录服务返回的完整文档。
type document struct {
	Models map[string]ModelMeta `json:"models"`
}

// Cache 是进程级的目录缓存。目录不可用时 Lookup 返回未命中，
// 由调用方降级为原始 usage，绝不让富化失败影响主流程。
type Cache struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client

	mu        sync.Mutex
	models    map[string]ModelMeta
	fetchedAt time.Time
}

// NewCache 创建一个目录缓存。ttlHours 为 0 时默认 24 小时。
func NewCache(cfg config.CatalogConfig) *Cache {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		url:        cfg.URL,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup 按模型 ID 查询元数据。缓存过期时同步刷新一次；
// 刷新失败时沿用旧数据（若有），否则返回未命中。
func (c *Cache) Lookup(ctx context.Context, modelID string) (ModelMeta, bool) {
	if c == nil || c.url == "" || modelID == "" {
		return ModelMeta{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models == nil || time.Since(c.fetchedAt) > c.ttl {
		if err := c.refreshLocked(ctx); err != nil && c.models == nil {
			return ModelMeta{}, false
		}
	}

	meta, ok := c.models[modelID]
	return meta, ok
}

// refreshLocked 拉取目录文档并替换缓存。调用方必须持有 c.mu。
func (c *Cache) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch model catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read catalog response: %w", err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal catalog document: %w", err)
	}

	c.models = doc.Models
	c.fetchedAt = time.Now()
	return nil
}
