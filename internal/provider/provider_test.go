package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/John-Robertt/PPS/internal/domain"
)

type stubProvider struct {
	name string
	host string

	fetchErr error
	parseErr error

	html []byte
	ds   []domain.PosterDescriptor

	fetchCalls int
	parseCalls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Supports(pageURL string) bool {
	return strings.Contains(pageURL, p.host)
}

func (p *stubProvider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, error) {
	p.fetchCalls++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.html, nil
}

func (p *stubProvider) Parse(pageURL string, html []byte) ([]domain.PosterDescriptor, error) {
	p.parseCalls++
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.ds, nil
}

func TestFetchParse_PicksProviderByURL(t *testing.T) {
	a := &stubProvider{name: "a", host: "a.test", html: []byte("<html/>"), ds: []domain.PosterDescriptor{{Title: "X"}}}
	b := &stubProvider{name: "b", host: "b.test", html: []byte("<html/>"), ds: []domain.PosterDescriptor{{Title: "Y"}}}

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	ds, used, err := FetchParse(context.Background(), reg, "https://b.test/set/1", nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "b" {
		t.Fatalf("期望 used=b，实际=%q", used)
	}
	if len(ds) != 1 || ds[0].Title != "Y" {
		t.Fatalf("descriptor 不正确：%+v", ds)
	}
	if a.fetchCalls != 0 || b.fetchCalls != 1 {
		t.Fatalf("provider 选择错误：a=%d b=%d", a.fetchCalls, b.fetchCalls)
	}
}

func TestFetchParse_NoProviderForURL(t *testing.T) {
	reg, _ := NewRegistry(&stubProvider{name: "a", host: "a.test"})
	_, _, err := FetchParse(context.Background(), reg, "https://other.test/x", nil)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestFetchParse_WrapsStageErrors(t *testing.T) {
	fe := &stubProvider{name: "a", host: "a.test", fetchErr: errors.New("boom")}
	reg, _ := NewRegistry(fe)

	_, _, err := FetchParse(context.Background(), reg, "https://a.test/x", nil)
	var pe *Error
	if !errors.As(err, &pe) || pe.Stage != "fetch" {
		t.Fatalf("期望 fetch 阶段错误，实际：%v", err)
	}

	pe2 := &stubProvider{name: "b", host: "b.test", html: []byte("x"), parseErr: errors.New("bad html")}
	reg, _ = NewRegistry(pe2)
	_, _, err = FetchParse(context.Background(), reg, "https://b.test/x", nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Stage != "parse" {
		t.Fatalf("期望 parse 阶段错误，实际：%v", err)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&stubProvider{name: "a"}, &stubProvider{name: "a"})
	if err == nil {
		t.Fatalf("重复 provider 应报错")
	}
}
