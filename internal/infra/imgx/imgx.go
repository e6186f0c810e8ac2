package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（源站素材不一定总是 jpeg）
)

// CompressJPEG 把原始图片字节重编码为指定质量的 JPEG。
//
// 约束：
// - 输入允许是 JPEG/PNG（依赖标准库解码器）；无法解码即失败（确定性错误，不重试）
// - 输出固定为 JPEG；带 alpha 的输入先落到 RGBA 画布（jpeg 编码器不接受 alpha 语义）
// - quality 取值 1-100；越界视为调用方错误
func CompressJPEG(raw []byte, quality int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("输入图片为空")
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg 质量必须在 1-100 之间，实际是 %d", quality)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	// PNG 等可能带 alpha：统一铺到 RGBA 画布后再编码，行为可预测。
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
