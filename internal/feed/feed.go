// Package feed 产出一次 run 要处理的源站页面 URL：
// 单个页面 URL，或批量导入文件（一行一个 URL）。
package feed

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source 是页面 URL 的来源。Name 用作 RunReport 的 source 字段。
type Source interface {
	Name() string
	PageURLs() ([]string, error)
}

// SingleURL 是命令行直接给定的一个页面。
type SingleURL struct {
	URL string
}

func (s SingleURL) Name() string { return s.URL }

func (s SingleURL) PageURLs() ([]string, error) {
	u := strings.TrimSpace(s.URL)
	if u == "" {
		return nil, errors.New("feed: 页面 URL 为空")
	}
	return []string{u}, nil
}

// ImportFile 是批量导入文件：一行一个页面 URL。
// 空行和 # 注释行跳过；没有任何 provider 支持的行静默忽略
// （导入文件常混有其他站点的收藏链接）。
type ImportFile struct {
	Path string
	// Supports 判断某行是否属于已注册 provider（通常是 Registry.Supports）。
	// 为 nil 时所有非注释行都保留。
	Supports func(pageURL string) bool
}

func (f ImportFile) Name() string { return f.Path }

func (f ImportFile) PageURLs() ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("feed: 导入文件不可读：%w", err)
	}
	defer file.Close()

	var out []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if f.Supports != nil && !f.Supports(line) {
			continue
		}
		// 同一 URL 重复出现只处理一次（保持首次出现的顺序）。
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("feed: 导入文件读取失败：%w", err)
	}
	return out, nil
}
