package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("准备 PNG 失败：%v", err)
	}
	return buf.Bytes()
}

func TestCompressJPEG_PNGInput(t *testing.T) {
	out, err := CompressJPEG(pngBytes(t, 40, 60), 85)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("输出不是合法 JPEG：%v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 60 {
		t.Fatalf("尺寸不应变化：%v", img.Bounds())
	}
}

func TestCompressJPEG_Deterministic(t *testing.T) {
	src := pngBytes(t, 20, 30)
	a, err := CompressJPEG(src, 85)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := CompressJPEG(src, 85)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 指纹比较（SkippedUnchanged）依赖同输入同输出。
	if !bytes.Equal(a, b) {
		t.Fatalf("相同输入两次编码结果不一致")
	}
}

func TestCompressJPEG_UndecodableInput(t *testing.T) {
	if _, err := CompressJPEG([]byte("this is not an image"), 85); err == nil {
		t.Fatalf("非图片输入应失败")
	}
	if _, err := CompressJPEG(nil, 85); err == nil {
		t.Fatalf("空输入应失败")
	}
}

func TestCompressJPEG_QualityRange(t *testing.T) {
	src := pngBytes(t, 10, 10)
	if _, err := CompressJPEG(src, 0); err == nil {
		t.Fatalf("quality=0 应失败")
	}
	if _, err := CompressJPEG(src, 101); err == nil {
		t.Fatalf("quality=101 应失败")
	}
}
