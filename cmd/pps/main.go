package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/PPS/internal/app/run"
	"github.com/John-Robertt/PPS/internal/assist"
	"github.com/John-Robertt/PPS/internal/config"
	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/feed"
	"github.com/John-Robertt/PPS/internal/infra/fsx"
	"github.com/John-Robertt/PPS/internal/infra/httpx"
	"github.com/John-Robertt/PPS/internal/match"
	"github.com/John-Robertt/PPS/internal/plex"
	"github.com/John-Robertt/PPS/internal/provider"
	"github.com/John-Robertt/PPS/internal/provider/posterdb"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: ra.ConfigPath,
		Apply:      ra.Apply,
		ApplySet:   ra.ApplySet,
	})
	if err != nil {
		emitReport(reportForConfigError(ra, err))
		return 1
	}

	// 海报根目录必须存在或可创建；dry-run 不动文件系统，不做该检查。
	if eff.Apply {
		for _, dir := range []string{eff.MoviesPosterDir, eff.SeriesPosterDir} {
			if err := fsx.EnsureDir(dir); err != nil {
				fmt.Fprintf(os.Stderr, "海报目录不可用：%v\n", err)
				return 1
			}
		}
	}

	reg, e := provider.NewRegistry(posterdb.Provider{})
	if e != nil {
		fmt.Fprintf(os.Stderr, "初始化 provider registry 失败：%v\n", e)
		return 1
	}

	pageClient, e := httpx.NewPageClient(eff.ProxyURL, eff.Timeout)
	if e != nil {
		fmt.Fprintf(os.Stderr, "初始化页面 client 失败：%v\n", e)
		return 1
	}
	imageClient, e := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy, eff.Timeout)
	if e != nil {
		fmt.Fprintf(os.Stderr, "初始化图片 client 失败：%v\n", e)
		return 1
	}

	var assister match.Assister
	if eff.AssistEnabled {
		assister = assist.New(eff.TMDBAPIKey, httpx.NewServerClient(eff.Timeout))
	}

	p := &run.Pipeline{
		Cfg:    eff,
		Reg:    reg,
		Server: plex.New(eff.PlexBaseURL, eff.PlexToken, httpx.NewServerClient(eff.Timeout)),
		Page:   pageClient,
		Image:  imageClient,
		Assist: assister,
	}

	var src feed.Source
	if ra.ImportPath != "" {
		src = feed.ImportFile{Path: ra.ImportPath, Supports: func(u string) bool {
			_, ok := reg.ForURL(u)
			return ok
		}}
	} else {
		src = feed.SingleURL{URL: ra.PageURL}
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr, err := p.Execute(context.Background(), src, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run 失败：%v\n", err)
		return 1
	}

	// apply 且配置了 report_path：报告额外原子落盘；dry-run 禁止落盘。
	if eff.Apply && eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告文件失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	PageURL    string
	ImportPath string
	ConfigPath string
	Apply      bool
	ApplySet   bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--import":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--import 需要一个值")
			}
			i++
			ra.ImportPath = args[i]
		case strings.HasPrefix(a, "--import="):
			ra.ImportPath = strings.TrimPrefix(a, "--import=")
		case a == "--config":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ra.ConfigPath = args[i]
		case strings.HasPrefix(a, "--config="):
			ra.ConfigPath = strings.TrimPrefix(a, "--config=")
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.PageURL != "" {
				return runArgs{}, fmt.Errorf("重复的页面 URL：%q 与 %q", ra.PageURL, a)
			}
			ra.PageURL = a
		}
	}

	if ra.PageURL == "" && ra.ImportPath == "" {
		return runArgs{}, fmt.Errorf("需要一个页面 URL 或 --import 文件")
	}
	if ra.PageURL != "" && ra.ImportPath != "" {
		return runArgs{}, fmt.Errorf("页面 URL 与 --import 不能同时指定")
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pps run <页面URL> [--config path] [--apply[=true|false]]
  pps run --import <文件> [--config path] [--apply[=true|false]]

命令：
  run    抓取海报页并同步到媒体库（默认 dry-run）

使用 "pps run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pps run <页面URL> [--config path] [--apply[=true|false]]
  pps run --import <文件> [--config path] [--apply[=true|false]]

参数：
  --import    批量导入文件：一行一个页面 URL（空行与 # 注释忽略）
  --config    配置文件路径（未指定则读 <当前目录>/pps.json）
  --apply     执行下载/写入/上传（默认 dry-run，只报告将发生的变更）；
              支持 --apply=false 覆盖配置中的 apply=true
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：applied=%d matched=%d skipped=%d failed=%d cancelled=%d\n",
			rr.Summary.Applied, rr.Summary.Matched, rr.Summary.SkippedUnchanged,
			rr.Summary.Failed, rr.Summary.Cancelled,
		)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if !isFailureStatus(it.Status) {
					continue
				}
				key := it.Title
				if key == "" {
					key = "<批次>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.Status, it.Detail)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：applied=%d matched=%d skipped=%d failed=%d cancelled=%d\n",
		rr.Summary.Applied, rr.Summary.Matched, rr.Summary.SkippedUnchanged,
		rr.Summary.Failed, rr.Summary.Cancelled,
	)
}

func isFailureStatus(s string) bool {
	switch s {
	case domain.StatusNotFound, domain.StatusAmbiguous, domain.StatusSeasonNotFound,
		domain.StatusFetchFailed, domain.StatusTransformFailed, domain.StatusUploadFailed:
		return true
	}
	return false
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	source := ra.PageURL
	if source == "" {
		source = ra.ImportPath
	}
	now := time.Now().UTC()
	rr := domain.RunReport{
		Source:     source,
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		// config.Error 的文本自带 error_code 前缀，detail 不再重复拼接。
		Items: []domain.SyncOutcome{{
			Status: domain.StatusNotFound,
			Detail: err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
