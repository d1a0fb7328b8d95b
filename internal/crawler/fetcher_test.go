package crawler

import (
	"context"
	"errors"
	"testing"
)

// TestPageFetcher tests page retrieval and meta refresh following.
func TestPageFetcher(t *testing.T) {
	t.Parallel()

	t.Run("returns links of a plain page", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/", `<a href="/next">next</a><img src="/p.jpg">`)

		page, err := NewPageFetcher(web.client()).Fetch(context.Background(), "http://a.test/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Redirected() || page.URL != "http://a.test/" || page.StatusCode != 200 {
			t.Errorf("unexpected page %+v", page)
		}
		if len(page.Result.Links) != 1 || page.Result.Links[0] != "http://a.test/next" {
			t.Errorf("unexpected links %v", page.Result.Links)
		}
	})

	t.Run("meta refresh replaces the page", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/", `<meta http-equiv="refresh" content="0;url=http://b.test/"><a href="/hidden">x</a>`)
		web.page("b.test/", `<a href="/comic">comic</a>`)

		page, err := NewPageFetcher(web.client()).Fetch(context.Background(), "http://a.test/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.Redirected() || page.URL != "http://b.test/" {
			t.Fatalf("expected redirect to b.test, got %+v", page)
		}
		if len(page.Chain) != 2 || page.Chain[1] != "http://b.test/" {
			t.Errorf("unexpected chain %v", page.Chain)
		}
		if len(page.Result.Links) != 1 || page.Result.Links[0] != "http://b.test/comic" {
			t.Errorf("original page was scanned: %v", page.Result.Links)
		}
	})

	t.Run("refresh loop ends the chain", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/", `<meta http-equiv="refresh" content="0;url=/b">`)
		web.page("a.test/b", `<meta http-equiv="refresh" content="0;url=/"><a href="/c">c</a>`)

		page, err := NewPageFetcher(web.client()).Fetch(context.Background(), "http://a.test/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.URL != "http://a.test/b" || len(page.Chain) != 2 {
			t.Errorf("unexpected page %+v", page)
		}
		if web.hitCount("a.test/") != 1 {
			t.Errorf("start page fetched %d times", web.hitCount("a.test/"))
		}
	})

	t.Run("redirect limit", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/1", `<meta http-equiv="refresh" content="0;url=/2">`)
		web.page("a.test/2", `<meta http-equiv="refresh" content="0;url=/3">`)
		web.page("a.test/3", `<meta http-equiv="refresh" content="0;url=/4">`)
		web.page("a.test/4", `<p>end</p>`)

		f := NewPageFetcher(web.client(), WithFetcherMaxRedirects(2))
		page, err := f.Fetch(context.Background(), "http://a.test/1")
		if !errors.Is(err, ErrTooManyRedirects) {
			t.Fatalf("expected ErrTooManyRedirects, got %v", err)
		}
		if len(page.Chain) != 3 {
			t.Errorf("unexpected chain %v", page.Chain)
		}
		if web.hitCount("a.test/4") != 0 {
			t.Error("fetched beyond the redirect limit")
		}
	})

	t.Run("non success status", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		page, err := NewPageFetcher(web.client()).Fetch(context.Background(), "http://a.test/missing")
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
		}
		if page.StatusCode != 404 || page.Result != nil {
			t.Errorf("unexpected page %+v", page)
		}
	})
}
