// Package run 串起整条流水线：feed → provider 抓取解析 → 建索引 →
// 匹配 → 应用，并汇总为一份 RunReport。
//
// 降级边界（固定）：
// - feed 整体失败（没有任何 descriptor 可处理）=> run 失败
// - 库不存在 / 索引构建失败 => 该媒体类型的批次失败，另一类型继续
// - 单条 descriptor 的任何失败 => 一条失败 outcome，循环继续
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/John-Robertt/PPS/internal/config"
	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/feed"
	"github.com/John-Robertt/PPS/internal/index"
	"github.com/John-Robertt/PPS/internal/match"
	"github.com/John-Robertt/PPS/internal/postercache"
	"github.com/John-Robertt/PPS/internal/provider"
	psync "github.com/John-Robertt/PPS/internal/sync"
	"github.com/John-Robertt/PPS/internal/title"
)

// Server 是流水线需要的媒体服务器操作全集（plex.Client 满足它）。
type Server interface {
	index.Server
	psync.Uploader
}

// Observer 接收 run 的进度事件；实现方不得阻塞、不得修改参数。
// 核心不做任何打印，TTY 进度/JSON 输出全部由 cmd 层实现。
type Observer interface {
	OnStart(source string, dryRun bool)
	OnPage(pageURL string, descriptors int)
	OnPageFailed(pageURL string, err error)
	OnItemDone(o domain.SyncOutcome)
	OnFinish(r *domain.RunReport)
}

type discard struct{}

func (discard) OnStart(string, bool)          {}
func (discard) OnPage(string, int)            {}
func (discard) OnPageFailed(string, error)    {}
func (discard) OnItemDone(domain.SyncOutcome) {}
func (discard) OnFinish(*domain.RunReport)    {}

// Discard 丢弃所有事件。
var Discard Observer = discard{}

// Error 是使整个 run 失败的错误（带稳定 error_code，供 CLI 落退出码）。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s：%v", e.Code, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Pipeline 持有一次 run 的全部依赖；构造后不可变。
type Pipeline struct {
	Cfg config.EffectiveConfig
	Reg provider.Registry

	Server Server
	// Page / Image 分别用于源站页面抓取与图片下载（代理策略不同）。
	Page  *http.Client
	Image *http.Client
	// Assist 为 nil 时跳过别名辅助。
	Assist match.Assister

	// now 仅测试时覆盖。
	now func() time.Time
}

// Execute 顺序处理 feed 产出的全部 descriptor，返回最终报告。
// 单条失败不终止循环；返回 error 仅表示 run 整体无法进行。
func (p *Pipeline) Execute(ctx context.Context, src feed.Source, obs Observer) (domain.RunReport, error) {
	if obs == nil {
		obs = Discard
	}
	now := p.now
	if now == nil {
		now = time.Now
	}

	report := domain.RunReport{
		Source:    src.Name(),
		DryRun:    !p.Cfg.Apply,
		StartedAt: now(),
	}
	obs.OnStart(report.Source, report.DryRun)

	descriptors, err := p.collect(ctx, src, obs)
	if err != nil {
		return report, err
	}

	norm := title.NewNormalizer(p.Cfg.TitleStripSuffixes)
	matcher := &match.Matcher{Assist: p.Assist}
	executor := &psync.Executor{Image: p.Image, Uploader: p.Server, Quality: p.Cfg.JPEGQuality}

	indexes := make(map[domain.MediaType]*batchIndex, 2)
	seenTargets := make(map[string]struct{})
	cancelled := false

	for _, d := range descriptors {
		// 协作式取消：项与项之间检查一次；剩余条目标记为 cancelled。
		if cancelled || ctx.Err() != nil {
			cancelled = true
			o := domain.OutcomeFor(d, domain.StatusCancelled, "")
			report.Record(o)
			obs.OnItemDone(o)
			continue
		}

		b := p.batchFor(ctx, indexes, d.MediaType, norm, &report)
		if b.err != nil {
			o := domain.OutcomeFor(d, domain.StatusNotFound,
				fmt.Sprintf("%s：%s", domain.ErrCodeLibraryNotFound, d.Label()))
			report.Record(o)
			obs.OnItemDone(o)
			continue
		}

		o := p.processOne(ctx, matcher, executor, b, seenTargets, d)
		report.Record(o)
		obs.OnItemDone(o)
	}

	report.FinishedAt = now()
	report.Finalize()
	obs.OnFinish(&report)
	return report, nil
}

// collect 抓取并解析全部页面。单页失败只上报 Observer 并继续；
// 只有在一条 descriptor 都没有时才让 run 失败。
func (p *Pipeline) collect(ctx context.Context, src feed.Source, obs Observer) ([]domain.PosterDescriptor, error) {
	pages, err := src.PageURLs()
	if err != nil {
		return nil, &Error{Code: domain.ErrCodeFeedFailed, Err: err}
	}
	if len(pages) == 0 {
		return nil, &Error{Code: domain.ErrCodeFeedFailed, Err: errors.New("feed 未产出任何页面 URL")}
	}

	var out []domain.PosterDescriptor
	var lastErr error
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		ds, _, err := provider.FetchParse(ctx, p.Reg, page, p.Page)
		if err != nil {
			lastErr = err
			obs.OnPageFailed(page, err)
			continue
		}
		obs.OnPage(page, len(ds))
		out = append(out, ds...)
	}

	if len(out) == 0 {
		if lastErr == nil {
			lastErr = errors.New("页面未产出任何海报 descriptor")
		}
		return nil, &Error{Code: domain.ErrCodeFeedFailed, Err: lastErr}
	}
	return out, nil
}

// batchIndex 是一个媒体类型的批次状态：索引懒构建，构建失败后
// 该类型的后续条目直接标失败，不再反复尝试。
type batchIndex struct {
	idx  *index.Index
	root string
	err  error
}

func (p *Pipeline) batchFor(ctx context.Context, m map[domain.MediaType]*batchIndex, mt domain.MediaType, norm title.Normalizer, report *domain.RunReport) *batchIndex {
	if b, ok := m[mt]; ok {
		return b
	}

	name, root := p.Cfg.MoviesLibrary, p.Cfg.MoviesPosterDir
	if mt == domain.MediaTypeShow {
		name, root = p.Cfg.SeriesLibrary, p.Cfg.SeriesPosterDir
	}

	b := &batchIndex{root: root}
	b.idx, b.err = index.Build(ctx, p.Server, name, mt, norm)
	if b.err != nil {
		// 批次失败记录一条合成条目（无标题，排序时落在最后），
		// 该类型的每条 descriptor 仍各得一条 outcome。
		report.Record(domain.SyncOutcome{
			MediaType: mt,
			Status:    domain.StatusNotFound,
			Detail:    fmt.Sprintf("%s：%v", domain.ErrCodeLibraryNotFound, b.err),
		})
	}
	m[mt] = b
	return b
}

func (p *Pipeline) processOne(ctx context.Context, matcher *match.Matcher, executor *psync.Executor, b *batchIndex, seen map[string]struct{}, d domain.PosterDescriptor) domain.SyncOutcome {
	m, err := matcher.Resolve(ctx, b.idx, d)
	if err != nil {
		return outcomeForResolveError(d, err)
	}

	cache := postercache.Cache{Root: b.root}
	target := m.TargetID()

	// 同一目标在本次 run 中只处理一次（海报集里常有重复条目）。
	if _, dup := seen[target]; dup {
		o := domain.OutcomeFor(d, domain.StatusSkippedUnchanged, "同一目标在本次 run 中已处理")
		o.TargetID = target
		return o
	}
	seen[target] = struct{}{}

	if !p.Cfg.Apply {
		o := domain.OutcomeFor(d, domain.StatusMatched, "")
		o.TargetID = target
		o.LocalPath = cache.PathFor(m)
		return o
	}

	return executor.Apply(ctx, m, cache)
}

func outcomeForResolveError(d domain.PosterDescriptor, err error) domain.SyncOutcome {
	var amb *index.AmbiguousError
	var snf *match.SeasonNotFoundError
	switch {
	case errors.As(err, &amb):
		return domain.OutcomeFor(d, domain.StatusAmbiguous, fmt.Sprintf("%s：%v", d.Label(), amb))
	case errors.As(err, &snf):
		return domain.OutcomeFor(d, domain.StatusSeasonNotFound, fmt.Sprintf("%s：%v", d.Label(), snf))
	case errors.Is(err, match.ErrNotFound):
		return domain.OutcomeFor(d, domain.StatusNotFound, d.Label())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeFor(d, domain.StatusCancelled, "")
	default:
		// 季枚举等传输错误：按未找到降级（detail 保留原因）。
		return domain.OutcomeFor(d, domain.StatusNotFound, fmt.Sprintf("%s：%v", d.Label(), err))
	}
}
