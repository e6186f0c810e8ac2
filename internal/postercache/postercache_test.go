package postercache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/PPS/internal/domain"
)

func TestPathFor(t *testing.T) {
	c := Cache{Root: "/posters/movies"}

	movie := domain.Match{
		Item: domain.LibraryItem{ID: "100", Title: "Inception", Year: 2010, MediaType: domain.MediaTypeMovie},
	}
	if got := c.PathFor(movie); got != filepath.Join("/posters/movies", "Inception (2010)", "poster.jpg") {
		t.Fatalf("电影路径不正确：%q", got)
	}

	// 季海报带零填充的季目录；Specials 是 Season 00。
	tv := Cache{Root: "/posters/tv"}
	season := domain.Match{
		Item:   domain.LibraryItem{ID: "200", Title: "Severance", Year: 2022, MediaType: domain.MediaTypeShow},
		Season: &domain.SeasonRef{ParentID: "200", SeasonNumber: 2, ID: "203"},
	}
	if got := tv.PathFor(season); got != filepath.Join("/posters/tv", "Severance (2022)", "Season 02", "poster.jpg") {
		t.Fatalf("季路径不正确：%q", got)
	}

	specials := domain.Match{
		Item:   season.Item,
		Season: &domain.SeasonRef{ParentID: "200", SeasonNumber: 0, ID: "201"},
	}
	if got := tv.PathFor(specials); got != filepath.Join("/posters/tv", "Severance (2022)", "Season 00", "poster.jpg") {
		t.Fatalf("Specials 路径不正确：%q", got)
	}

	// 封面（无季）与无年份条目。
	cover := domain.Match{Item: domain.LibraryItem{ID: "201", Title: "Firefly", MediaType: domain.MediaTypeShow}}
	if got := tv.PathFor(cover); got != filepath.Join("/posters/tv", "Firefly", "poster.jpg") {
		t.Fatalf("封面路径不正确：%q", got)
	}
}

func TestPathFor_Sanitizes(t *testing.T) {
	c := Cache{Root: "/posters/movies"}
	m := domain.Match{
		Item: domain.LibraryItem{ID: "100", Title: `Mission: Impossible * "Fallout" <?>|\/`, Year: 2018},
	}
	if got := c.PathFor(m); got != filepath.Join("/posters/movies", "Mission Impossible Fallout (2018)", "poster.jpg") {
		t.Fatalf("清洗后路径不正确：%q", got)
	}
}

func TestFingerprintRoundTrip(t *testing.T) {
	root := t.TempDir()
	c := Cache{Root: root}
	m := domain.Match{Item: domain.LibraryItem{ID: "100", Title: "Heat", Year: 1995}}
	path := c.PathFor(m)

	// 不存在的文件：ok=false 且无错误。
	if _, ok, err := ReadFingerprint(path); ok || err != nil {
		t.Fatalf("不存在的文件应返回 ok=false：ok=%v err=%v", ok, err)
	}

	data := []byte("jpeg-bytes")
	if err := c.Write(path, data); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	got, ok, err := ReadFingerprint(path)
	if err != nil || !ok {
		t.Fatalf("读指纹失败：ok=%v err=%v", ok, err)
	}
	if want := FingerprintBytes(data); got != want {
		t.Fatalf("指纹不一致：%+v != %+v", got, want)
	}
	if other := FingerprintBytes([]byte("different")); got == other {
		t.Fatalf("不同内容的指纹不应相同")
	}
}

func TestWrite_Overwrites(t *testing.T) {
	root := t.TempDir()
	c := Cache{Root: root}
	path := filepath.Join(root, "X (2000)", "poster.jpg")

	if err := c.Write(path, []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := c.Write(path, []byte("v2")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "v2" {
		t.Fatalf("覆盖写失败：%q err=%v", string(b), err)
	}
}
