package index

import (
	"context"
	"errors"
	"testing"

	"github.com/John-Robertt/PPS/internal/domain"
	"github.com/John-Robertt/PPS/internal/plex"
	"github.com/John-Robertt/PPS/internal/title"
)

type stubServer struct {
	libs    []plex.Library
	items   map[string][]domain.LibraryItem
	seasons map[string][]domain.SeasonRef

	listItemsCalls   int
	listSeasonsCalls int
}

func (s *stubServer) ListLibraries(ctx context.Context) ([]plex.Library, error) {
	return s.libs, nil
}

func (s *stubServer) ListItems(ctx context.Context, libraryKey string) ([]domain.LibraryItem, error) {
	s.listItemsCalls++
	return s.items[libraryKey], nil
}

func (s *stubServer) ListSeasons(ctx context.Context, showID string) ([]domain.SeasonRef, error) {
	s.listSeasonsCalls++
	return s.seasons[showID], nil
}

func movieServer(items ...domain.LibraryItem) *stubServer {
	return &stubServer{
		libs:  []plex.Library{{Key: "1", Title: "Movies", MediaType: domain.MediaTypeMovie}},
		items: map[string][]domain.LibraryItem{"1": items},
	}
}

func mv(id, t string, y int) domain.LibraryItem {
	return domain.LibraryItem{ID: id, Title: t, Year: y, MediaType: domain.MediaTypeMovie}
}

func TestBuild_LibraryNotFound(t *testing.T) {
	srv := movieServer()
	_, err := Build(context.Background(), srv, "Nonexistent", domain.MediaTypeMovie, title.NewNormalizer(nil))
	var nf *LibraryNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("期望 LibraryNotFoundError，实际：%v", err)
	}

	// 名称相同但类型不同也算未找到（电影库不能冒充剧集库）。
	_, err = Build(context.Background(), srv, "Movies", domain.MediaTypeShow, title.NewNormalizer(nil))
	if !errors.As(err, &nf) {
		t.Fatalf("类型不匹配应视为库未找到，实际：%v", err)
	}
}

func TestLookup_ExactAndNormalized(t *testing.T) {
	srv := movieServer(mv("100", "The Matrix", 1999))
	x, err := Build(context.Background(), srv, "Movies", domain.MediaTypeMovie, title.NewNormalizer(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	// 大小写/空白/版本后缀差异折叠到同一 key。
	for _, q := range []string{"The Matrix", "the   matrix", "The Matrix (Director's Cut)"} {
		it, err := x.Lookup(q, 1999)
		if err != nil {
			t.Fatalf("Lookup(%q) 失败：%v", q, err)
		}
		if it.ID != "100" {
			t.Fatalf("Lookup(%q) 命中错误条目：%+v", q, it)
		}
	}

	if _, err := x.Lookup("Nonexistent", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际：%v", err)
	}
}

func TestLookup_YearDiscriminator(t *testing.T) {
	srv := movieServer(mv("100", "Dune", 1984), mv("101", "Dune", 2021))
	x, err := Build(context.Background(), srv, "Movies", domain.MediaTypeMovie, title.NewNormalizer(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	it, err := x.Lookup("Dune", 2021)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if it.ID != "101" {
		t.Fatalf("年份判别命中错误条目：%+v", it)
	}

	// 无年份且多候选：必须报歧义，绝不静默挑一个。
	_, err = x.Lookup("Dune", 0)
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("期望 AmbiguousError，实际：%v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Fatalf("候选列表不完整：%+v", amb.Candidates)
	}

	// 有年份但无精确命中：NotFound（放宽年份由 matcher 决定）。
	if _, err := x.Lookup("Dune", 1999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际：%v", err)
	}
}

func TestBuild_CollisionKeepsBothAsAmbiguity(t *testing.T) {
	// 两个条目规范化后 key 相同、年份也相同：碰撞必须保留为歧义标记。
	srv := movieServer(mv("100", "Crash", 2004), mv("101", "Crash (Director's Cut)", 2004))
	x, err := Build(context.Background(), srv, "Movies", domain.MediaTypeMovie, title.NewNormalizer(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	_, err = x.Lookup("Crash", 2004)
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("碰撞 key 必须报歧义，实际：%v", err)
	}
}

func TestBuild_YearInTitleBackfill(t *testing.T) {
	srv := movieServer(mv("100", "Heat (1995)", 0))
	x, err := Build(context.Background(), srv, "Movies", domain.MediaTypeMovie, title.NewNormalizer(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	it, err := x.Lookup("Heat", 1995)
	if err != nil {
		t.Fatalf("标题内年份应回填为判别项：%v", err)
	}
	if it.ID != "100" {
		t.Fatalf("命中错误条目：%+v", it)
	}
}

func TestLookupSeason_LazyAndMemoized(t *testing.T) {
	srv := &stubServer{
		libs: []plex.Library{{Key: "2", Title: "TV Shows", MediaType: domain.MediaTypeShow}},
		items: map[string][]domain.LibraryItem{"2": {
			{ID: "200", Title: "Severance", Year: 2022, MediaType: domain.MediaTypeShow},
		}},
		seasons: map[string][]domain.SeasonRef{"200": {
			{ParentID: "200", SeasonNumber: 0, ID: "201"},
			{ParentID: "200", SeasonNumber: 1, ID: "202"},
		}},
	}

	x, err := Build(context.Background(), srv, "TV Shows", domain.MediaTypeShow, title.NewNormalizer(nil))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// Build 阶段不得枚举季（懒加载契约）。
	if srv.listSeasonsCalls != 0 {
		t.Fatalf("Build 不应调用 ListSeasons，实际 %d 次", srv.listSeasonsCalls)
	}

	show, err := x.Lookup("Severance", 2022)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	s, err := x.LookupSeason(context.Background(), show, 1)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if s.ID != "202" {
		t.Fatalf("季解析不正确：%+v", s)
	}

	// 第二次查询走缓存，不再打网络。
	if _, err := x.LookupSeason(context.Background(), show, 0); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if srv.listSeasonsCalls != 1 {
		t.Fatalf("季列表应只枚举一次，实际 %d 次", srv.listSeasonsCalls)
	}

	// 缺失的季：NotFound（与剧集缺失是不同的失败）。
	if _, err := x.LookupSeason(context.Background(), show, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际：%v", err)
	}
}
