package posterdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/PPS/internal/domain"
	providerx "github.com/John-Robertt/PPS/internal/provider"
)

// Provider 实现 ThePosterDB 的页面抓取与 HTML 解析。
//
// 两种页面形态：
// - 海报集页（/set/...、/user/... 等）：一页多张海报，走海报网格解析
// - 单张海报页（/poster/<id>）：一页一张
//
// 约束：
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
// - Parse 必须是纯函数（依赖输入 html + pageURL）
type Provider struct {
	// BaseURL 允许测试替换资产端点；为空时使用线上域名。
	BaseURL string
}

func (Provider) Name() string { return "posterdb" }

// Supports 认领 theposterdb.com 域名下的页面。
func (Provider) Supports(pageURL string) bool {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == "theposterdb.com" || strings.HasSuffix(host, ".theposterdb.com")
}

func (p Provider) base() string {
	if strings.TrimSpace(p.BaseURL) != "" {
		return strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	}
	return "https://theposterdb.com"
}

// Fetch 抓取页面 HTML（非 2xx 返回 HTTPStatusError，便于上层解释）。
func (Provider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// Parse 把页面 HTML 解析为 descriptor 序列。
// URL 含 /poster/ 的按单张海报页解析，否则按海报集页解析。
func (p Provider) Parse(pageURL string, html []byte) ([]domain.PosterDescriptor, error) {
	if len(html) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	if strings.Contains(pageURL, "/poster/") {
		return p.parseSingle(pageURL, doc)
	}
	return p.parseSet(pageURL, doc)
}

// parseSet 解析海报集页的海报网格。
func (p Provider) parseSet(pageURL string, doc *goquery.Document) ([]domain.PosterDescriptor, error) {
	grid := doc.Find("div.row.d-flex.flex-wrap.m-0.w-100.mx-n1.mt-n1").First()
	if grid.Length() == 0 {
		return nil, errors.New("页面上没有海报网格（站点结构可能变化或返回了非海报集页）")
	}

	out := make([]domain.PosterDescriptor, 0, 16)
	var parseErr error
	grid.Find("div.col-6.col-lg-2.p-1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		mediaType, _ := s.Find(`a.text-white[data-toggle="tooltip"]`).First().Attr("title")
		posterID, _ := s.Find("div.overlay").First().Attr("data-poster-id")
		titleText := strings.TrimSpace(s.Find("p.p-0.mb-1.text-break").First().Text())

		if strings.TrimSpace(posterID) == "" || titleText == "" {
			// 单格残缺不致命：跳过该格，保留页面其余海报。
			return true
		}

		d, err := p.descriptorFrom(pageURL, mediaType, posterID, titleText)
		if err != nil {
			parseErr = err
			return false
		}
		if d != nil {
			out = append(out, *d)
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(out) == 0 {
		return nil, errors.New("海报网格里没有可解析的海报")
	}
	return out, nil
}

// parseSingle 解析单张海报页（/poster/<id>）。
func (p Provider) parseSingle(pageURL string, doc *goquery.Document) ([]domain.PosterDescriptor, error) {
	posterID := lastPathSegment(pageURL)
	if posterID == "" {
		return nil, fmt.Errorf("无法从 URL 提取海报 id：%q", pageURL)
	}

	mediaType := "Movie"
	doc.Find("p.pb-0.mb-0").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Find("strong").First().Text()) != "Type:" {
			return true
		}
		if v := strings.TrimSpace(strings.TrimPrefix(normSpace(s.Text()), "Type:")); v != "" {
			mediaType = v
		}
		return false
	})

	titleText := strings.TrimSpace(doc.Find("p.h1.m-0.mt-2.text-center.text-md-left.text-wrap a").First().Text())
	if titleText == "" {
		titleText = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if titleText == "" {
		return nil, errors.New("未找到标题（站点结构可能变化或返回了非海报页内容）")
	}

	d, err := p.descriptorFrom(pageURL, mediaType, posterID, titleText)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("无法解析标题：%q", titleText)
	}
	return []domain.PosterDescriptor{*d}, nil
}

// descriptorFrom 把一格海报的 (type, id, title 文本) 组装为 descriptor。
//
// title 文本形如：
// - 电影："Inception (2010)"
// - 剧集整体封面："Severance (2022)"
// - 剧集某季："Severance (2022) - Season 2" / "Firefly (2002) - Specials"
func (p Provider) descriptorFrom(pageURL, mediaType, posterID, titleText string) (*domain.PosterDescriptor, error) {
	imageURL := p.base() + "/api/assets/" + url.PathEscape(strings.TrimSpace(posterID))

	switch strings.TrimSpace(mediaType) {
	case "Movie":
		title, year := splitTitleYear(titleText)
		if title == "" {
			return nil, fmt.Errorf("无法解析电影标题：%q", titleText)
		}
		return &domain.PosterDescriptor{
			Title:     title,
			Year:      year,
			MediaType: domain.MediaTypeMovie,
			ImageURL:  imageURL,
			PageURL:   pageURL,
		}, nil

	case "Show":
		base := titleText
		var season *int
		if i := strings.LastIndex(titleText, " - "); i >= 0 {
			suffix := strings.TrimSpace(titleText[i+3:])
			base = strings.TrimSpace(titleText[:i])
			switch {
			case suffix == "Specials":
				season = domain.SeasonOf(0)
			case strings.HasPrefix(suffix, "Season "):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(suffix, "Season ")))
				if err != nil {
					return nil, fmt.Errorf("无法解析季编号：%q", titleText)
				}
				season = domain.SeasonOf(n)
			default:
				// 其他后缀（例如集合副标题）当作标题的一部分：整体封面。
				base = titleText
			}
		}
		title, year := splitTitleYear(base)
		if title == "" {
			return nil, fmt.Errorf("无法解析剧集标题：%q", titleText)
		}
		return &domain.PosterDescriptor{
			Title:     title,
			Year:      year,
			MediaType: domain.MediaTypeShow,
			Season:    season,
			ImageURL:  imageURL,
			PageURL:   pageURL,
		}, nil

	default:
		// 未知类型（例如 Collection）：跳过而不是失败，保留页面其余海报。
		return nil, nil
	}
}

var titleYearRE = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)

// splitTitleYear 拆出末尾年份；没有年份括号时年份为 0。
func splitTitleYear(s string) (string, int) {
	s = normSpace(s)
	if m := titleYearRE.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[2])
		return strings.TrimSpace(m[1]), y
	}
	return s, 0
}

func lastPathSegment(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
