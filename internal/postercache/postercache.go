// Package postercache 管理本地海报缓存：确定性的目标路径 + 内容指纹。
//
// 路径布局（对齐常见媒体库资产目录约定）：
//
//	{root}/{Title (Year)}/poster.jpg            电影 / 剧集封面
//	{root}/{Title (Year)}/Season NN/poster.jpg  季海报（Specials 为 Season 00）
//
// 路径只由匹配到的库条目决定（库是事实来源，站点标题只用于匹配），
// 同一条目在任何 run 中都落到同一路径，指纹比较才有意义。
package postercache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/infra/fsx"
)

const posterName = "poster.jpg"

// Cache 是一个媒体类型的本地海报根目录。
type Cache struct {
	Root string
}

// PathFor 返回 match 的确定性本地路径。
func (c Cache) PathFor(m domain.Match) string {
	dir := filepath.Join(c.Root, itemDirName(m.Item))
	if m.Season != nil {
		dir = filepath.Join(dir, fmt.Sprintf("Season %02d", m.Season.SeasonNumber))
	}
	return filepath.Join(dir, posterName)
}

// Write 把海报字节原子写入 path（临时文件 + rename，父目录自动创建）。
func (c Cache) Write(path string, data []byte) error {
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), data)
}

// Fingerprint 是海报内容的指纹：长度 + 变换后字节的 SHA-256。
// 先比长度（零成本）再比摘要。
type Fingerprint struct {
	Size   int64
	SHA256 string
}

// FingerprintBytes 计算内存中字节的指纹。
func FingerprintBytes(b []byte) Fingerprint {
	sum := sha256.Sum256(b)
	return Fingerprint{Size: int64(len(b)), SHA256: hex.EncodeToString(sum[:])}
}

// ReadFingerprint 读取 path 上已有海报的指纹。
// 文件不存在返回 ok=false 且无错误；其他读取失败原样上报。
func ReadFingerprint(path string) (fp Fingerprint, ok bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Fingerprint{}, false, nil
	}
	if err != nil {
		return Fingerprint{}, false, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Fingerprint{}, false, err
	}
	return Fingerprint{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, true, nil
}

// itemDirName 生成 "Title (Year)" 形式的目录名（无年份时仅标题），
// 并剔除文件系统不接受的字符。
func itemDirName(it domain.LibraryItem) string {
	name := it.Title
	if it.Year > 0 {
		name = fmt.Sprintf("%s (%d)", it.Title, it.Year)
	}
	return sanitize(name)
}

var dirNameReplacer = strings.NewReplacer(
	":", "", "*", "", "?", "", `"`, "",
	"<", "", ">", "", "|", "", `\`, "", "/", "",
)

func sanitize(name string) string {
	s := dirNameReplacer.Replace(name)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .")
	if s == "" {
		s = "_"
	}
	return s
}
