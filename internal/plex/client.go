package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/John-Robertt/PPS/internal/domain"
)

// ErrUnauthorized 表示 token 被服务器拒绝（HTTP 401）。
var ErrUnauthorized = errors.New("plex: token 未被服务器接受（401）")

const uploadRetryMax = 2

// 测试会缩短退避。
var uploadBackoff = 500 * time.Millisecond

// StatusError 表示服务器返回了非预期的 HTTP 状态码。
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("plex: HTTP %d（%s）", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("plex: HTTP %d（%s）：%s", e.StatusCode, e.URL, e.Body)
}

// Library 是服务器上的一个库（section）。
type Library struct {
	Key       string
	Title     string
	MediaType domain.MediaType
}

// Client 是媒体服务器 HTTP API 的最小客户端。
//
// 约束：
// - 只覆盖 pipeline 需要的四个操作：列库、列条目、列季、上传海报
// - 不做缓存；GET 的重试由注入的 http.Client 统一实现，
//   上传只对传输层错误做有界重放（见 SetPoster）
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// ListLibraries 枚举服务器上的所有库。
func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var payload struct {
		MediaContainer struct {
			Directory []struct {
				Key   string `json:"key"`
				Title string `json:"title"`
				Type  string `json:"type"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := c.getJSON(ctx, "/library/sections", &payload); err != nil {
		return nil, err
	}

	out := make([]Library, 0, len(payload.MediaContainer.Directory))
	for _, d := range payload.MediaContainer.Directory {
		mt, ok := mediaTypeOf(d.Type)
		if !ok {
			continue // music/photo 等类型与海报同步无关
		}
		out = append(out, Library{Key: d.Key, Title: d.Title, MediaType: mt})
	}
	return out, nil
}

// ListItems 枚举一个库的全部条目（index 每次 run 调用一次）。
func (c *Client) ListItems(ctx context.Context, libraryKey string) ([]domain.LibraryItem, error) {
	var payload struct {
		MediaContainer struct {
			Metadata []struct {
				RatingKey string `json:"ratingKey"`
				Title     string `json:"title"`
				Year      int    `json:"year"`
				Type      string `json:"type"`
			} `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	p := "/library/sections/" + url.PathEscape(libraryKey) + "/all"
	if err := c.getJSON(ctx, p, &payload); err != nil {
		return nil, err
	}

	out := make([]domain.LibraryItem, 0, len(payload.MediaContainer.Metadata))
	for _, m := range payload.MediaContainer.Metadata {
		mt, ok := mediaTypeOf(m.Type)
		if !ok {
			continue
		}
		out = append(out, domain.LibraryItem{
			ID:        m.RatingKey,
			Title:     m.Title,
			Year:      m.Year,
			MediaType: mt,
		})
	}
	return out, nil
}

// ListSeasons 枚举一个剧集条目下的所有季（index 按需懒调用并缓存）。
func (c *Client) ListSeasons(ctx context.Context, showID string) ([]domain.SeasonRef, error) {
	var payload struct {
		MediaContainer struct {
			Metadata []struct {
				RatingKey string `json:"ratingKey"`
				Index     *int   `json:"index"`
				Type      string `json:"type"`
			} `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	p := "/library/metadata/" + url.PathEscape(showID) + "/children"
	if err := c.getJSON(ctx, p, &payload); err != nil {
		return nil, err
	}

	out := make([]domain.SeasonRef, 0, len(payload.MediaContainer.Metadata))
	for _, m := range payload.MediaContainer.Metadata {
		if m.Type != "season" || m.Index == nil {
			continue
		}
		out = append(out, domain.SeasonRef{
			ParentID:     showID,
			SeasonNumber: *m.Index,
			ID:           m.RatingKey,
		})
	}
	return out, nil
}

// SetPoster 把图片字节上传为条目/季的海报。
//
// 上传是 POST，通用 Transport 不会替它重试；这里对"传输层错误"
// （请求未得到任何响应）做有界重放——服务器既然没有应答，重放不会造成重复生效。
// 收到响应后（包括 4xx/5xx）绝不重放。
func (c *Client) SetPoster(ctx context.Context, targetID string, image []byte) error {
	if len(image) == 0 {
		return errors.New("plex: 上传图片为空")
	}
	u := c.baseURL + "/library/metadata/" + url.PathEscape(targetID) + "/posters"

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= uploadRetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(uploadBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(image))
		if err != nil {
			return err
		}
		req.Header.Set("X-Plex-Token", c.token)
		req.Header.Set("Content-Type", "image/jpeg")
		req.ContentLength = int64(len(image))

		resp, lastErr = c.http.Do(req)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	if lastErr != nil {
		return lastErr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("plex: 响应解析失败（%s）：%w", u, err)
	}
	return nil
}

func mediaTypeOf(t string) (domain.MediaType, bool) {
	switch t {
	case "movie":
		return domain.MediaTypeMovie, true
	case "show":
		return domain.MediaTypeShow, true
	default:
		return "", false
	}
}
