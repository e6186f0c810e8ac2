package title

import (
	"regexp"
	"strings"
)

// Normalizer 把标题折叠成可比较的 key。
//
// 规则（最小基线，index 与 matcher 必须共用同一套规则）：
// - 小写、去首尾空白、压缩连续空白
// - 去掉末尾的年份括号（例如 "The Matrix (1999)"）
// - 去掉末尾的版本后缀括号（例如 "(Director's Cut)"）；内置集合可通过配置扩展
//
// 注意：更多的特例（副标题、别名）按契约交给配置扩展，不在这里硬编码。
type Normalizer struct {
	extra []string
}

// builtinEditions 是内置的版本后缀关键词（小写；判断为包含关系）。
var builtinEditions = []string{
	"director's cut",
	"directors cut",
	"extended",
	"unrated",
	"uncut",
	"remastered",
	"special edition",
	"collector's edition",
	"anniversary edition",
	"theatrical",
	"final cut",
	"imax",
	"4k",
	"criterion",
}

// trailingParenRE 匹配末尾的一个括号组（含其前导空白）。
var trailingParenRE = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)

var yearRE = regexp.MustCompile(`^(19|20)\d{2}$`)

// NewNormalizer 构造 Normalizer；extraSuffixes 来自配置（title_strip_suffixes）。
func NewNormalizer(extraSuffixes []string) Normalizer {
	extra := make([]string, 0, len(extraSuffixes))
	for _, s := range extraSuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			extra = append(extra, s)
		}
	}
	return Normalizer{extra: extra}
}

// Normalize 返回标题的规范化 key（年份信息被丢弃；年份是 key 之外的次级判别项）。
func (n Normalizer) Normalize(s string) string {
	t, _ := n.NormalizeWithYear(s)
	return t
}

// NormalizeWithYear 规范化标题，并返回从末尾年份括号里提取到的年份（没有则为 0）。
// 标题自带年份时（"Heat (1995)"），index 构建方可用它补齐条目缺失的年份字段。
func (n Normalizer) NormalizeWithYear(s string) (string, int) {
	t := collapseSpace(s)
	year := 0

	// 从尾部反复剥离括号组：年份括号记录年份，版本后缀括号直接丢弃；
	// 其余括号（属于标题本身的一部分）保留并停止剥离。
	for {
		m := trailingParenRE.FindStringSubmatch(t)
		if m == nil {
			break
		}
		inner := strings.ToLower(strings.TrimSpace(m[1]))
		if yearRE.MatchString(inner) {
			if year == 0 {
				year = atoiYear(inner)
			}
			t = collapseSpace(trailingParenRE.ReplaceAllString(t, ""))
			continue
		}
		if n.isEdition(inner) {
			t = collapseSpace(trailingParenRE.ReplaceAllString(t, ""))
			continue
		}
		break
	}

	return strings.ToLower(t), year
}

func (n Normalizer) isEdition(inner string) bool {
	for _, kw := range builtinEditions {
		if strings.Contains(inner, kw) {
			return true
		}
	}
	for _, kw := range n.extra {
		if strings.Contains(inner, kw) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func atoiYear(s string) int {
	y := 0
	for _, r := range s {
		y = y*10 + int(r-'0')
	}
	return y
}
