// Package sync 实现单个 match 的应用：取图 → 压缩 → 指纹比对 →
// 本地原子写 → 上传。每一步失败都就地收敛为一条 SyncOutcome，
// 绝不向上抛错中断整个 run。
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/infra/imgx"
	"github.com/John-Robertt/PPS/internal/postercache"
)

// 下载图片的大小上限。海报通常在几 MB 以内，超过即视为异常响应。
const maxImageBytes = 32 << 20

// FetchError 表示图片下载失败（网络错误或非 2xx）。
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sync: 图片下载失败（%s）：%v", e.URL, e.Err)
	}
	return fmt.Sprintf("sync: 图片下载失败（%s）：HTTP %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Uploader 是应用阶段需要的服务器写操作（plex.Client 满足它）。
type Uploader interface {
	SetPoster(ctx context.Context, targetID string, image []byte) error
}

// Executor 按固定顺序应用一个 match。
type Executor struct {
	// Image 用于下载海报原图（带超时/重试的注入 client）。
	Image *http.Client
	// Uploader 执行 setPoster。上传不可盲目重放，这里不做重试。
	Uploader Uploader
	// Quality 是 JPEG 重编码质量（1-100）。
	Quality int
}

// Apply 应用一个 match 并返回最终 outcome。
//
// 顺序约束：
// - 指纹一致 => skipped_unchanged，零远端调用
// - 本地写在上传之前；上传失败保留本地文件（重跑时指纹仍不一致，会再次尝试上传）
func (e *Executor) Apply(ctx context.Context, m domain.Match, cache postercache.Cache) domain.SyncOutcome {
	d := m.Descriptor

	raw, err := e.fetch(ctx, d.ImageURL)
	if err != nil {
		// 条目中途被取消：标记 cancelled 而不是网络失败。
		if ctx.Err() != nil {
			return finish(m, "", domain.OutcomeFor(d, domain.StatusCancelled, ""))
		}
		return finish(m, "", domain.OutcomeFor(d, domain.StatusFetchFailed, detail(d, err)))
	}

	jpg, err := imgx.CompressJPEG(raw, e.Quality)
	if err != nil {
		return finish(m, "", domain.OutcomeFor(d, domain.StatusTransformFailed, detail(d, err)))
	}

	path := cache.PathFor(m)
	fp := postercache.FingerprintBytes(jpg)
	existing, ok, err := postercache.ReadFingerprint(path)
	if err == nil && ok && existing == fp {
		return finish(m, path, domain.OutcomeFor(d, domain.StatusSkippedUnchanged, ""))
	}
	// 指纹读取失败不阻断：继续走写入，真正的文件系统问题会在写入时暴露。

	if err := cache.Write(path, jpg); err != nil {
		return finish(m, "", domain.OutcomeFor(d, domain.StatusUploadFailed, detail(d, fmt.Errorf("本地写入失败：%w", err))))
	}

	if err := e.Uploader.SetPoster(ctx, m.TargetID(), jpg); err != nil {
		if ctx.Err() != nil {
			return finish(m, path, domain.OutcomeFor(d, domain.StatusCancelled, ""))
		}
		// 本地文件保留：下次 run 指纹仍与远端意图一致，会重试上传。
		return finish(m, path, domain.OutcomeFor(d, domain.StatusUploadFailed, detail(d, err)))
	}

	return finish(m, path, domain.OutcomeFor(d, domain.StatusApplied, ""))
}

func (e *Executor) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}

	c := e.Image
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}
	if len(b) > maxImageBytes {
		return nil, &FetchError{URL: imageURL, Err: fmt.Errorf("响应超过 %d 字节上限", maxImageBytes)}
	}
	return b, nil
}

func finish(m domain.Match, localPath string, o domain.SyncOutcome) domain.SyncOutcome {
	o.TargetID = m.TargetID()
	o.LocalPath = localPath
	return o
}

func detail(d domain.PosterDescriptor, err error) string {
	return fmt.Sprintf("%s：%v", d.Label(), err)
}
