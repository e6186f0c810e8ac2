package domain

import (
	"fmt"
	"strings"
)

// MediaType 标识条目类型：电影或剧集。
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// PosterDescriptor 描述一张待应用的海报（feed 产出后不可变）。
//
// 约束：
// - Title 为源站展示标题（未规范化；规范化由 index/matcher 统一完成）
// - Year 允许为 0（源站未标注年份）
// - Season 仅对 Show 有意义：nil 表示剧集整体封面；0 表示 Specials；N 表示第 N 季
// - Episode 预留：源站海报以季为粒度，不支持单集
type PosterDescriptor struct {
	Title     string
	Year      int
	MediaType MediaType
	Season    *int
	Episode   *int
	ImageURL  string
	PageURL   string
}

// Label 返回用于报告/日志的定位串（title (year) [Season N]）。
// 每条失败都必须带上它，让用户不用翻日志就能定位源数据。
func (d PosterDescriptor) Label() string {
	var b strings.Builder
	if strings.TrimSpace(d.Title) == "" {
		b.WriteString("<无标题>")
	} else {
		b.WriteString(d.Title)
	}
	if d.Year > 0 {
		fmt.Fprintf(&b, " (%d)", d.Year)
	}
	if d.Season != nil {
		if *d.Season == 0 {
			b.WriteString(" [Specials]")
		} else {
			fmt.Fprintf(&b, " [Season %d]", *d.Season)
		}
	}
	return b.String()
}

// SeasonOf 返回指向 n 的指针（构造 Season 字段的便捷函数，测试里也大量使用）。
func SeasonOf(n int) *int { return &n }
