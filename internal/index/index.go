package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/plex"
	"github.com/John-Robertt/PPS/internal/title"
)

// Server 是 index 需要的媒体服务器只读操作子集（plex.Client 满足它；
// 测试用 stub 替换）。
type Server interface {
	ListLibraries(ctx context.Context) ([]plex.Library, error)
	ListItems(ctx context.Context, libraryKey string) ([]domain.LibraryItem, error)
	ListSeasons(ctx context.Context, showID string) ([]domain.SeasonRef, error)
}

// ErrNotFound 表示按 key 查不到条目/季。
var ErrNotFound = errors.New("index: 未找到")

// LibraryNotFoundError 表示服务器上不存在指定名称（及类型）的库。
// 该错误使整个库批次失败（index 无法建立，后续匹配无意义）。
type LibraryNotFoundError struct {
	Name      string
	MediaType domain.MediaType
}

func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("index: 服务器上不存在库 %q（类型 %s）", e.Name, e.MediaType)
}

// AmbiguousError 表示同一规范化 key 命中多个条目且年份无法判别。
// 契约：绝不静默挑一个；候选列表交给 report，让用户自己消歧。
type AmbiguousError struct {
	Key        string
	Candidates []domain.LibraryItem
}

func (e *AmbiguousError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		if c.Year > 0 {
			names = append(names, fmt.Sprintf("%s (%d)", c.Title, c.Year))
		} else {
			names = append(names, c.Title)
		}
	}
	return fmt.Sprintf("index: key %q 命中多个条目：%s", e.Key, strings.Join(names, "、"))
}

// Index 是一个库的每次 run 重建的只读查找表。
//
// 不变量：
// - Build 之后 byTitle 不再变化（匹配/同步阶段只读）
// - 同一规范化 (title, year) 的碰撞保留为候选列表（歧义标记），不覆盖
// - 季列表按 show 懒枚举并缓存（多数 run 只触达少数剧集，省掉 O(items) 的预枚举）
type Index struct {
	Library plex.Library

	norm    title.Normalizer
	byTitle map[string][]domain.LibraryItem

	server  Server
	seasons map[string][]domain.SeasonRef
}

// Build 枚举指定库的全部条目并建立查找表（每次 run 对每个库恰好一次外部调用）。
func Build(ctx context.Context, server Server, libraryName string, mediaType domain.MediaType, norm title.Normalizer) (*Index, error) {
	libs, err := server.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}

	var lib *plex.Library
	for i := range libs {
		if libs[i].Title == libraryName && libs[i].MediaType == mediaType {
			lib = &libs[i]
			break
		}
	}
	if lib == nil {
		return nil, &LibraryNotFoundError{Name: libraryName, MediaType: mediaType}
	}

	items, err := server.ListItems(ctx, lib.Key)
	if err != nil {
		return nil, err
	}

	byTitle := make(map[string][]domain.LibraryItem, len(items))
	for _, it := range items {
		if it.MediaType != mediaType {
			continue
		}
		key, yearInTitle := norm.NormalizeWithYear(it.Title)
		if key == "" {
			continue
		}
		// 条目自身缺年份但标题里带年份时，用它补齐次级判别项。
		if it.Year == 0 && yearInTitle > 0 {
			it.Year = yearInTitle
		}
		byTitle[key] = append(byTitle[key], it)
	}

	// 候选列表稳定排序（年份升序，再按 ID），保证歧义报告可复现。
	for k := range byTitle {
		c := byTitle[k]
		sort.SliceStable(c, func(i, j int) bool {
			if c[i].Year != c[j].Year {
				return c[i].Year < c[j].Year
			}
			return c[i].ID < c[j].ID
		})
	}

	return &Index{
		Library: *lib,
		norm:    norm,
		byTitle: byTitle,
		server:  server,
		seasons: make(map[string][]domain.SeasonRef),
	}, nil
}

// Lookup 按 (title, year) 查找条目。
//
// 年份是可选的次级判别项：
// - year > 0：只在同 key 候选里取年份精确相等者；恰一个 => 命中；
//   多个 => 歧义（两条目 title+year 都相同）；零个 => 未找到（调用方可放宽年份重试）
// - year == 0：候选恰一个 => 命中；多个 => 歧义（没有年份可判别，绝不猜）
func (x *Index) Lookup(rawTitle string, year int) (domain.LibraryItem, error) {
	key := x.norm.Normalize(rawTitle)
	cands := x.byTitle[key]
	if len(cands) == 0 {
		return domain.LibraryItem{}, ErrNotFound
	}

	if year > 0 {
		var hit []domain.LibraryItem
		for _, c := range cands {
			if c.Year == year {
				hit = append(hit, c)
			}
		}
		switch len(hit) {
		case 0:
			return domain.LibraryItem{}, ErrNotFound
		case 1:
			return hit[0], nil
		default:
			return domain.LibraryItem{}, &AmbiguousError{Key: key, Candidates: hit}
		}
	}

	if len(cands) == 1 {
		return cands[0], nil
	}
	return domain.LibraryItem{}, &AmbiguousError{Key: key, Candidates: cands}
}

// LookupSeason 查找剧集条目下的某一季；季列表首个查询时懒枚举并缓存。
func (x *Index) LookupSeason(ctx context.Context, show domain.LibraryItem, seasonNumber int) (domain.SeasonRef, error) {
	seasons, ok := x.seasons[show.ID]
	if !ok {
		var err error
		seasons, err = x.server.ListSeasons(ctx, show.ID)
		if err != nil {
			return domain.SeasonRef{}, err
		}
		x.seasons[show.ID] = seasons
	}

	for _, s := range seasons {
		if s.SeasonNumber == seasonNumber {
			return s, nil
		}
	}
	return domain.SeasonRef{}, ErrNotFound
}
