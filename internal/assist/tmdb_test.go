package assist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/PPS/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("key-abc", srv.Client())
	c.BaseURL = srv.URL
	return c, srv
}

func TestAlternativeTitles_Movie(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "key-abc" {
			t.Fatalf("api_key 不正确：%q", got)
		}
		switch r.URL.Path {
		case "/search/movie":
			if got := r.URL.Query().Get("query"); got != "Léon" {
				t.Fatalf("query 不正确：%q", got)
			}
			if got := r.URL.Query().Get("year"); got != "1994" {
				t.Fatalf("year 不正确：%q", got)
			}
			w.Write([]byte(`{"results":[{"id":101}]}`))
		case "/movie/101/alternative_titles":
			w.Write([]byte(`{"titles":[
				{"title":"Leon: The Professional"},
				{"title":"The Professional"},
				{"title":"Leon: The Professional"},
				{"title":"Léon"}
			]}`))
		default:
			t.Fatalf("非预期请求：%q", r.URL.Path)
		}
	})

	got, err := c.AlternativeTitles(context.Background(), domain.PosterDescriptor{
		Title: "Léon", Year: 1994, MediaType: domain.MediaTypeMovie,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 去重、剔除原标题后剩两个。
	if len(got) != 2 || got[0] != "Leon: The Professional" || got[1] != "The Professional" {
		t.Fatalf("别名列表不正确：%v", got)
	}
}

func TestAlternativeTitles_ShowUsesResultsField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/tv":
			if got := r.URL.Query().Get("first_air_date_year"); got != "2022" {
				t.Fatalf("剧集年份参数不正确：%q", got)
			}
			w.Write([]byte(`{"results":[{"id":202}]}`))
		case "/tv/202/alternative_titles":
			w.Write([]byte(`{"results":[{"title":"断绝"}]}`))
		default:
			t.Fatalf("非预期请求：%q", r.URL.Path)
		}
	})

	got, err := c.AlternativeTitles(context.Background(), domain.PosterDescriptor{
		Title: "Severance", Year: 2022, MediaType: domain.MediaTypeShow,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0] != "断绝" {
		t.Fatalf("别名列表不正确：%v", got)
	}
}

func TestSearch_RelaxesYearOnce(t *testing.T) {
	var searches []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			searches = append(searches, r.URL.Query().Get("year"))
			if r.URL.Query().Get("year") != "" {
				w.Write([]byte(`{"results":[]}`))
				return
			}
			w.Write([]byte(`{"results":[{"id":303}]}`))
		case "/movie/303/alternative_titles":
			w.Write([]byte(`{"titles":[{"title":"Alias"}]}`))
		default:
			t.Fatalf("非预期请求：%q", r.URL.Path)
		}
	})

	got, err := c.AlternativeTitles(context.Background(), domain.PosterDescriptor{
		Title: "Foo", Year: 2001, MediaType: domain.MediaTypeMovie,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(searches) != 2 || searches[0] != "2001" || searches[1] != "" {
		t.Fatalf("年份放宽顺序不正确：%v", searches)
	}
	if len(got) != 1 || got[0] != "Alias" {
		t.Fatalf("别名列表不正确：%v", got)
	}
}

func TestSearch_NoResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	_, err := c.AlternativeTitles(context.Background(), domain.PosterDescriptor{
		Title: "Nonexistent", MediaType: domain.MediaTypeMovie,
	})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("期望 ErrNoResult，实际：%v", err)
	}
}

func TestGetJSON_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.AlternativeTitles(context.Background(), domain.PosterDescriptor{
		Title: "Foo", MediaType: domain.MediaTypeMovie,
	})
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
