// Package match 把海报 descriptor 解析为媒体库条目（及季）。
//
// 解析顺序是固定的三级：
//  1. 精确：标题 + 年份
//  2. 放宽：仅标题（站点年份与服务器元数据年份不一致时的退路）
//  3. 辅助：TMDB 备选标题（可选，未配置时跳过）
//
// 歧义是硬失败：任何一级命中多个候选都立即上报，后续级别不再尝试
// （放宽/别名只用于"没找到"，绝不用于"找到太多"）。
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/index"
)

// ErrNotFound 表示三级解析都没有命中任何条目。
var ErrNotFound = errors.New("match: 库中未找到条目")

// SeasonNotFoundError 表示剧集条目已命中，但指定的季不存在。
// 与条目未找到是不同的失败：剧集在库里，缺的只是那一季。
type SeasonNotFoundError struct {
	Show         domain.LibraryItem
	SeasonNumber int
}

func (e *SeasonNotFoundError) Error() string {
	return fmt.Sprintf("match: 剧集 %q 下不存在第 %d 季", e.Show.Title, e.SeasonNumber)
}

// Assister 提供备选标题（assist.Client 满足它；未启用时为 nil）。
type Assister interface {
	AlternativeTitles(ctx context.Context, d domain.PosterDescriptor) ([]string, error)
}

// Matcher 持有可选的别名辅助；索引由调用方按媒体类型传入。
type Matcher struct {
	Assist Assister
}

// Resolve 把一个 descriptor 解析为 Match。
//
// 返回错误的可能类型：ErrNotFound、*index.AmbiguousError、
// *SeasonNotFoundError，以及 assist/季枚举的传输错误。
func (m *Matcher) Resolve(ctx context.Context, idx *index.Index, d domain.PosterDescriptor) (domain.Match, error) {
	item, conf, err := m.resolveItem(ctx, idx, d)
	if err != nil {
		return domain.Match{}, err
	}

	match := domain.Match{Descriptor: d, Item: item, Confidence: conf}

	// 剧集的季海报需要进一步解析到季节点；nil Season 表示剧集封面，
	// 直接贴在剧集条目上。
	if d.MediaType == domain.MediaTypeShow && d.Season != nil {
		s, err := idx.LookupSeason(ctx, item, *d.Season)
		if errors.Is(err, index.ErrNotFound) {
			return domain.Match{}, &SeasonNotFoundError{Show: item, SeasonNumber: *d.Season}
		}
		if err != nil {
			return domain.Match{}, err
		}
		match.Season = &s
	}

	return match, nil
}

func (m *Matcher) resolveItem(ctx context.Context, idx *index.Index, d domain.PosterDescriptor) (domain.LibraryItem, domain.Confidence, error) {
	// 一级：精确（年份参与判别）。
	item, err := idx.Lookup(d.Title, d.Year)
	if err == nil {
		return item, domain.ConfidenceExact, nil
	}
	if !errors.Is(err, index.ErrNotFound) {
		return domain.LibraryItem{}, "", err
	}

	// 二级：放宽年份。只有一级带过年份时才有意义。
	if d.Year > 0 {
		item, err = idx.Lookup(d.Title, 0)
		if err == nil {
			return item, domain.ConfidenceFuzzy, nil
		}
		if !errors.Is(err, index.ErrNotFound) {
			return domain.LibraryItem{}, "", err
		}
	}

	// 三级：TMDB 备选标题。辅助自身的失败不终止解析——查不到别名
	// 就按未找到处理（辅助是锦上添花，不是依赖）。
	if m.Assist != nil {
		alts, aerr := m.Assist.AlternativeTitles(ctx, d)
		if aerr == nil {
			for _, alt := range alts {
				item, err = idx.Lookup(alt, d.Year)
				if errors.Is(err, index.ErrNotFound) && d.Year > 0 {
					item, err = idx.Lookup(alt, 0)
				}
				if err == nil {
					return item, domain.ConfidenceFuzzy, nil
				}
				if !errors.Is(err, index.ErrNotFound) {
					return domain.LibraryItem{}, "", err
				}
			}
		}
	}

	return domain.LibraryItem{}, "", ErrNotFound
}
