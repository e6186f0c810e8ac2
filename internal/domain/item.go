package domain

// LibraryItem 是媒体服务器上的一个条目（电影或剧集）的弱引用。
//
// 不变量：
// - ID 为服务器侧不透明标识（Plex 的 ratingKey）；每次 run 重新解析，不做持久化
// - Index 只持有只读引用；服务器是条目数据的唯一属主
type LibraryItem struct {
	ID        string
	Title     string
	Year      int
	MediaType MediaType
}

// SeasonRef 指向某个剧集条目下的一季（仅 Show 存在）。
// ID 是该季自身的上传端点标识（setPoster 直接对它调用）。
type SeasonRef struct {
	ParentID     string
	SeasonNumber int
	ID           string
}

// Confidence 标记匹配置信度。
type Confidence string

const (
	// ConfidenceExact 表示 (title, year) 精确命中。
	ConfidenceExact Confidence = "exact"
	// ConfidenceFuzzy 表示放宽年份（或经由备选标题）后才命中。
	ConfidenceFuzzy Confidence = "fuzzy"
)

// Match 是 matcher 的产物，由 sync executor 一次性消费，不持久化。
//
// 不变量：Target 引用的条目在匹配时刻一定存在于 index（index 每次 run 重建，
// 不存在悬空引用）。Season 非 nil 时上传目标是该季，否则是 Item 本身。
type Match struct {
	Descriptor PosterDescriptor
	Item       LibraryItem
	Season     *SeasonRef
	Confidence Confidence
}

// TargetID 返回 setPoster 的目标标识（季优先于条目）。
func (m Match) TargetID() string {
	if m.Season != nil {
		return m.Season.ID
	}
	return m.Item.ID
}
