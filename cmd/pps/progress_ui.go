package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/John-Robertt/PPS/internal/app/run"
	"github.com/John-Robertt/PPS/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的逐条进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 流水线是顺序的，一条一行即可，不需要并发进度条
type progressUI struct {
	w io.Writer

	startedAt time.Time
	done      int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(source string, dryRun bool) {
	p.startedAt = time.Now()

	mode := "apply"
	modeHint := ""
	if dryRun {
		mode = "dry-run"
		modeHint = " (不下载/不写入/不上传)"
	}
	fmt.Fprintf(p.w, "[%s] PPS run (%s)\n", p.startedAt.Format("15:04:05"), mode)
	fmt.Fprintf(p.w, "  source: %s\n", truncate(source, 120))
	fmt.Fprintf(p.w, "  mode: %s%s\n\n", mode, modeHint)
}

func (p *progressUI) OnPage(pageURL string, descriptors int) {
	fmt.Fprintf(p.w, "页面: %s posters=%d\n", truncate(shortURL(pageURL), 100), descriptors)
}

func (p *progressUI) OnPageFailed(pageURL string, err error) {
	fmt.Fprintf(p.w, "页面: %s FAIL: %s\n", truncate(shortURL(pageURL), 100), truncate(err.Error(), 160))
}

func (p *progressUI) OnItemDone(o domain.SyncOutcome) {
	p.done++

	status := strings.ToUpper(o.Status)
	switch o.Status {
	case domain.StatusApplied:
		status = "OK"
	case domain.StatusMatched:
		status = "MATCH"
	case domain.StatusSkippedUnchanged:
		status = "SKIP"
	case domain.StatusCancelled:
		status = "CANCEL"
	}

	label := itemLabel(o)
	switch {
	case isFailureStatus(o.Status):
		fmt.Fprintf(p.w, "[%d] %s FAIL %s: %s\n", p.done, label, o.Status, truncate(o.Detail, 160))
	case o.LocalPath != "":
		fmt.Fprintf(p.w, "[%d] %s %s -> %s\n", p.done, label, status, o.LocalPath)
	default:
		fmt.Fprintf(p.w, "[%d] %s %s\n", p.done, label, status)
	}
}

func (p *progressUI) OnFinish(r *domain.RunReport) {
	elapsed := time.Since(p.startedAt)
	fmt.Fprintf(p.w, "\n耗时 %s，共 %d 条\n", formatShortDuration(elapsed), len(r.Items))
}

func itemLabel(o domain.SyncOutcome) string {
	d := domain.PosterDescriptor{
		Title: o.Title, Year: o.Year, MediaType: o.MediaType, Season: o.Season,
	}
	return d.Label()
}

// shortURL 去掉 scheme，进度行里域名+路径已足够定位。
func shortURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host + u.Path
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
