// Package assist 提供可选的 TMDB 别名辅助：当本地匹配失败时，
// 用条目的 TMDB 备选标题再查一轮 index。整个包在未配置 key 时完全不参与。
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/PPS/internal/domain"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// ErrNoResult 表示 TMDB 搜索没有返回任何匹配条目。
var ErrNoResult = errors.New("assist: TMDB 无搜索结果")

// Client 是 TMDB v3 API 的最小客户端，只覆盖别名辅助需要的两个操作：
// 按标题搜索条目、取备选标题列表。
type Client struct {
	// BaseURL 仅测试时覆盖；为空则用官方地址。
	BaseURL string

	apiKey string
	http   *http.Client
}

func New(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: strings.TrimSpace(apiKey), http: httpClient}
}

// AlternativeTitles 返回与 descriptor 同名条目在 TMDB 上登记的全部备选标题
// （去重、保序、剔除与原标题相同者）。搜索无结果返回 ErrNoResult。
func (c *Client) AlternativeTitles(ctx context.Context, d domain.PosterDescriptor) ([]string, error) {
	id, err := c.search(ctx, d)
	if err != nil {
		return nil, err
	}

	var kind string
	switch d.MediaType {
	case domain.MediaTypeShow:
		kind = "tv"
	default:
		kind = "movie"
	}

	// movie 响应放在 titles 字段，tv 放在 results 字段；两个都解，取非空者。
	var payload struct {
		Titles []struct {
			Title string `json:"title"`
		} `json:"titles"`
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	}
	p := fmt.Sprintf("/%s/%d/alternative_titles", kind, id)
	if err := c.getJSON(ctx, p, nil, &payload); err != nil {
		return nil, err
	}

	rows := payload.Titles
	if len(rows) == 0 {
		rows = payload.Results
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		t := strings.TrimSpace(r.Title)
		if t == "" || strings.EqualFold(t, d.Title) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// search 按 (title, year, type) 搜索并返回首个结果的 TMDB id。
// 有年份时先带年份搜，零结果再放宽一次（站点年份与 TMDB 偶有出入）。
func (c *Client) search(ctx context.Context, d domain.PosterDescriptor) (int, error) {
	var path, yearParam string
	switch d.MediaType {
	case domain.MediaTypeShow:
		path, yearParam = "/search/tv", "first_air_date_year"
	default:
		path, yearParam = "/search/movie", "year"
	}

	q := url.Values{}
	q.Set("query", d.Title)
	if d.Year > 0 {
		q.Set(yearParam, strconv.Itoa(d.Year))
	}

	id, err := c.searchOnce(ctx, path, q)
	if err == nil || !errors.Is(err, ErrNoResult) || d.Year == 0 {
		return id, err
	}
	q.Del(yearParam)
	return c.searchOnce(ctx, path, q)
}

func (c *Client) searchOnce(ctx context.Context, path string, q url.Values) (int, error) {
	var payload struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, path, q, &payload); err != nil {
		return 0, err
	}
	if len(payload.Results) == 0 {
		return 0, ErrNoResult
	}
	return payload.Results[0].ID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u := base + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("assist: TMDB HTTP %d（%s）", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("assist: TMDB 响应解析失败（%s）：%w", path, err)
	}
	return nil
}
