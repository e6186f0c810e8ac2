package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/PPS/internal/domain"
)

// Provider 把“源站结构变化”限制在 provider 包内部；核心流程只依赖统一接口
// 与稳定的 PosterDescriptor。
//
// 约束：
// - Fetch 不做缓存、不做限速（重试/超时由 httpx 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - 一个页面可以产出多条 descriptor（海报集）或一条（单张海报页）
type Provider interface {
	Name() string
	// Supports 判断该 provider 是否认领此页面 URL。
	Supports(pageURL string) bool
	Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, error)
	Parse(pageURL string, html []byte) ([]domain.PosterDescriptor, error)
}

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch/parse，并写入 report。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry 是 provider 的只读注册表。
// provider 数量极小，线性扫描即可；按注册顺序第一个 Supports 的胜出。
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) (Registry, error) {
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := seen[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		seen[name] = struct{}{}
	}
	return Registry{providers: append([]Provider(nil), providers...)}, nil
}

// ForURL 返回认领该页面的 provider。
func (r Registry) ForURL(pageURL string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Supports(pageURL) {
			return p, true
		}
	}
	return nil, false
}

// FetchParse 抓取并解析一个页面，返回 descriptor 序列与最终使用的 provider name。
func FetchParse(ctx context.Context, reg Registry, pageURL string, c *http.Client) ([]domain.PosterDescriptor, string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, "", fmt.Errorf("页面 URL 不能为空")
	}

	p, ok := reg.ForURL(pageURL)
	if !ok {
		return nil, "", fmt.Errorf("没有 provider 认领该 URL：%q", pageURL)
	}

	html, err := p.Fetch(ctx, pageURL, c)
	if err != nil {
		return nil, "", &Error{Provider: p.Name(), Stage: "fetch", Err: err}
	}

	ds, err := p.Parse(pageURL, html)
	if err != nil {
		return nil, "", &Error{Provider: p.Name(), Stage: "parse", Err: err}
	}
	return ds, p.Name(), nil
}
