package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示未找到配置文件（无 --config 时为 <cwd>/pps.json）。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissing 表示缺少必填字段。
	ErrCodeMissing = "config_missing_field"
)

const (
	// DefaultMoviesLibrary / DefaultSeriesLibrary 是库名的内置默认值。
	DefaultMoviesLibrary = "Movies"
	DefaultSeriesLibrary = "TV Shows"
	// DefaultJPEGQuality 是 JPEG 重编码质量的内置默认值。
	DefaultJPEGQuality = 85
	// DefaultTimeoutSeconds 是网络操作（抓取/下载/上传）的默认整请求超时。
	DefaultTimeoutSeconds = 30
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	ConfigPath string

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 pps.json 的解析结构。
type FileConfig struct {
	PlexBaseURL   string `json:"plex_base_url"`
	PlexToken     string `json:"plex_token"`
	MoviesLibrary string `json:"movies_library"`
	SeriesLibrary string `json:"series_library"`

	MoviesPosterDir string `json:"movies_poster_dir"`
	SeriesPosterDir string `json:"series_poster_dir"`

	JPEGQuality    int  `json:"jpeg_quality"`
	TimeoutSeconds int  `json:"timeout_seconds"`
	Apply          *bool `json:"apply"`

	UseTMDB    *bool  `json:"use_tmdb"`
	TMDBAPIKey string `json:"tmdb_api_key"`

	TitleStripSuffixes []string `json:"title_strip_suffixes"`

	Proxy      *ProxyConfig `json:"proxy"`
	ImageProxy bool         `json:"image_proxy"`

	ReportPath string `json:"report_path"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是校验并填充默认值后的最终配置。
// 不可变：构造后直接注入各 pipeline 构造函数，禁止中途再读配置。
type EffectiveConfig struct {
	PlexBaseURL   string
	PlexToken     string
	MoviesLibrary string
	SeriesLibrary string

	MoviesPosterDir string
	SeriesPosterDir string

	JPEGQuality int
	Timeout     time.Duration
	Apply       bool

	// AssistEnabled 为 true 时启用 TMDB 备选标题辅助匹配（use_tmdb 且 key 非空）。
	AssistEnabled bool
	TMDBAPIKey    string

	TitleStripSuffixes []string

	ProxyURL   string
	ImageProxy bool

	// ReportPath 非空且 apply 时，RunReport JSON 额外原子写入该文件。
	ReportPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code  string
	Path  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissing:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 %s", e.Code, e.Path, e.Field)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，校验后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：读取该文件（必须存在）
// 2) 否则：读取 <cwd>/pps.json（必须存在）
//
// 覆盖优先级（固定）：
// - apply：CLI --apply/--apply=false > config > 默认 false（dry-run）
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cfgPath := strings.TrimSpace(cli.ConfigPath)
	if cfgPath == "" {
		cwdAbs, err := filepath.Abs(cwd)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
		}
		cfgPath = filepath.Join(cwdAbs, "pps.json")
	}

	b, err := os.ReadFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return validate(cfgPath, cli, fc)
}

func validate(cfgPath string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	missing := func(field string) error {
		return &Error{Code: ErrCodeMissing, Path: cfgPath, Field: field}
	}
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(fc.PlexBaseURL), "/")
	if baseURL == "" {
		return EffectiveConfig{}, missing("plex_base_url")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return EffectiveConfig{}, invalid(fmt.Errorf("plex_base_url 无效：%q", fc.PlexBaseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return EffectiveConfig{}, invalid(fmt.Errorf("plex_base_url 必须是 http/https：%q", fc.PlexBaseURL))
	}

	token := strings.TrimSpace(fc.PlexToken)
	if token == "" {
		return EffectiveConfig{}, missing("plex_token")
	}
	if len(token) < 10 {
		return EffectiveConfig{}, invalid(fmt.Errorf("plex_token 疑似无效（过短）"))
	}

	moviesDir := strings.TrimSpace(fc.MoviesPosterDir)
	if moviesDir == "" {
		return EffectiveConfig{}, missing("movies_poster_dir")
	}
	if !filepath.IsAbs(moviesDir) {
		return EffectiveConfig{}, invalid(fmt.Errorf("movies_poster_dir 必须是绝对路径：%q", moviesDir))
	}
	seriesDir := strings.TrimSpace(fc.SeriesPosterDir)
	if seriesDir == "" {
		return EffectiveConfig{}, missing("series_poster_dir")
	}
	if !filepath.IsAbs(seriesDir) {
		return EffectiveConfig{}, invalid(fmt.Errorf("series_poster_dir 必须是绝对路径：%q", seriesDir))
	}

	moviesLib := strings.TrimSpace(fc.MoviesLibrary)
	if moviesLib == "" {
		moviesLib = DefaultMoviesLibrary
	}
	seriesLib := strings.TrimSpace(fc.SeriesLibrary)
	if seriesLib == "" {
		seriesLib = DefaultSeriesLibrary
	}

	quality := fc.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return EffectiveConfig{}, invalid(fmt.Errorf("jpeg_quality 必须在 1-100 之间，实际是 %d", fc.JPEGQuality))
	}

	timeoutS := fc.TimeoutSeconds
	if timeoutS == 0 {
		timeoutS = DefaultTimeoutSeconds
	}
	if timeoutS < 1 || timeoutS > 600 {
		return EffectiveConfig{}, invalid(fmt.Errorf("timeout_seconds 必须在 1-600 之间，实际是 %d", fc.TimeoutSeconds))
	}

	// apply：CLI > config > 默认 false。
	apply := false
	if fc.Apply != nil {
		apply = *fc.Apply
	}
	if cli.ApplySet {
		apply = cli.Apply
	}

	// use_tmdb 默认开启；但 key 为空时辅助匹配实际不可用（降级为关闭，不报错）。
	useTMDB := true
	if fc.UseTMDB != nil {
		useTMDB = *fc.UseTMDB
	}
	tmdbKey := strings.TrimSpace(fc.TMDBAPIKey)

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}
	if fc.ImageProxy && proxyURL == "" {
		return EffectiveConfig{}, invalid(fmt.Errorf("image_proxy=true 但 proxy.url 为空"))
	}

	reportPath := strings.TrimSpace(fc.ReportPath)
	if reportPath != "" && !filepath.IsAbs(reportPath) {
		return EffectiveConfig{}, invalid(fmt.Errorf("report_path 必须是绝对路径：%q", reportPath))
	}

	return EffectiveConfig{
		PlexBaseURL:        baseURL,
		PlexToken:          token,
		MoviesLibrary:      moviesLib,
		SeriesLibrary:      seriesLib,
		MoviesPosterDir:    filepath.Clean(moviesDir),
		SeriesPosterDir:    filepath.Clean(seriesDir),
		JPEGQuality:        quality,
		Timeout:            time.Duration(timeoutS) * time.Second,
		Apply:              apply,
		AssistEnabled:      useTMDB && tmdbKey != "",
		TMDBAPIKey:         tmdbKey,
		TitleStripSuffixes: append([]string(nil), fc.TitleStripSuffixes...),
		ProxyURL:           proxyURL,
		ImageProxy:         fc.ImageProxy,
		ReportPath:         reportPath,
	}, nil
}
