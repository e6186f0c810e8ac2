package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusApplied          = "applied"
	StatusMatched          = "matched" // 仅 dry-run：匹配成功，apply 时会尝试应用
	StatusSkippedUnchanged = "skipped_unchanged"
	StatusNotFound         = "not_found"
	StatusAmbiguous        = "ambiguous"
	StatusSeasonNotFound   = "season_not_found"
	StatusFetchFailed      = "fetch_failed"
	StatusTransformFailed  = "transform_failed"
	StatusUploadFailed     = "upload_failed"
	StatusCancelled        = "cancelled"
)

const (
	ErrCodeLibraryNotFound = "library_not_found"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
	ErrCodeConfigMissing   = "config_missing_field"
	ErrCodeFeedFailed      = "feed_failed"
)

// SyncOutcome 是一个 descriptor 的最终结果（一条 descriptor 恰好产生一条 outcome）。
//
// 约束：追加后不可变；失败条目的 Detail 必须包含原始 title/year/season，
// 让用户不依赖日志即可定位并修复源数据。
type SyncOutcome struct {
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	MediaType MediaType `json:"media_type"`
	Season    *int      `json:"season,omitempty"`

	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`

	// TargetID 是匹配到的服务器条目/季标识（匹配失败时为空）。
	TargetID string `json:"target_id,omitempty"`
	// LocalPath 是本地缓存文件路径（applied/skipped_unchanged 时非空）。
	LocalPath string `json:"local_path,omitempty"`
}

// OutcomeFor 以 descriptor 为锚点构造 outcome（其余字段由调用方补齐）。
func OutcomeFor(d PosterDescriptor, status, detail string) SyncOutcome {
	return SyncOutcome{
		Title:     d.Title,
		Year:      d.Year,
		MediaType: d.MediaType,
		Season:    d.Season,
		Status:    status,
		Detail:    detail,
	}
}

// RunReport 是对外稳定输出（stdout JSON / report 文件）的结构。
type RunReport struct {
	Source string `json:"source"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []SyncOutcome `json:"items"`
}

type ReportSummary struct {
	Applied          int `json:"applied"`
	Matched          int `json:"matched"`
	SkippedUnchanged int `json:"skipped_unchanged"`
	NotFound         int `json:"not_found"`
	Ambiguous        int `json:"ambiguous"`
	SeasonNotFound   int `json:"season_not_found"`
	FetchFailed      int `json:"fetch_failed"`
	TransformFailed  int `json:"transform_failed"`
	UploadFailed     int `json:"upload_failed"`
	Cancelled        int `json:"cancelled"`

	// Failed 是所有失败态（not_found/ambiguous/season_not_found/*_failed）的合计，
	// 供 CLI 决定退出码。
	Failed int `json:"failed"`
}

// Record 追加一条 outcome（append-only；不修改既有条目）。
func (r *RunReport) Record(o SyncOutcome) {
	r.Items = append(r.Items, o)
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 (title, year, season) 字典序；title=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if (a.Title == "") != (b.Title == "") {
			return b.Title == ""
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return seasonOrd(a.Season) < seasonOrd(b.Season)
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusApplied:
			s.Applied++
		case StatusMatched:
			s.Matched++
		case StatusSkippedUnchanged:
			s.SkippedUnchanged++
		case StatusNotFound:
			s.NotFound++
			s.Failed++
		case StatusAmbiguous:
			s.Ambiguous++
			s.Failed++
		case StatusSeasonNotFound:
			s.SeasonNotFound++
			s.Failed++
		case StatusFetchFailed:
			s.FetchFailed++
			s.Failed++
		case StatusTransformFailed:
			s.TransformFailed++
			s.Failed++
		case StatusUploadFailed:
			s.UploadFailed++
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	r.Summary = s
}

// seasonOrd 把 Season 映射为可比较整数：nil（整体封面）排在所有季之前。
func seasonOrd(s *int) int {
	if s == nil {
		return -1
	}
	return *s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
