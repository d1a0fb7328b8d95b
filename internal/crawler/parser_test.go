package crawler

import (
	"errors"
	"strings"
	"testing"
)

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts links and images", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title> Strip 12 </title></head><body>
			<a href="/strip/13">next</a>
			<a href="/strip/13">next again</a>
			<a href="#comments">comments</a>
			<a href="http://b.test/friend">friend</a>
			<a>no href</a>
			<img src="/img/12.png">
			<img src="">
			<img alt="no src">
		</body></html>`

		result, err := NewParser("http://a.test/strip/12").Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Strip 12" {
			t.Errorf("expected title 'Strip 12', got %q", result.Title)
		}
		wantLinks := []string{"http://a.test/strip/13", "http://b.test/friend"}
		if strings.Join(result.Links, " ") != strings.Join(wantLinks, " ") {
			t.Errorf("got links %v, want %v", result.Links, wantLinks)
		}
		if len(result.Images) != 1 || result.Images[0] != "/img/12.png" {
			t.Errorf("unexpected images %v", result.Images)
		}
		if result.Refresh != "" {
			t.Errorf("unexpected refresh %q", result.Refresh)
		}
	})

	t.Run("detects meta refresh", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><META HTTP-EQUIV="Refresh" CONTENT="0; URL='http://b.test/'"></head></html>`
		result, err := NewParser("http://a.test/").Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Refresh != "http://b.test/" {
			t.Errorf("got refresh %q", result.Refresh)
		}
	})

	t.Run("relative refresh target", func(t *testing.T) {
		t.Parallel()

		html := `<meta http-equiv="refresh" content="5;url=/new/home.html">`
		result, err := NewParser("http://a.test/old/").Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Refresh != "http://a.test/new/home.html" {
			t.Errorf("got refresh %q", result.Refresh)
		}
	})

	t.Run("reload without target is ignored", func(t *testing.T) {
		t.Parallel()

		html := `<meta http-equiv="refresh" content="30"><a href="/x">x</a>`
		result, err := NewParser("http://a.test/").Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Refresh != "" || len(result.Links) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

// TestRefreshTarget tests parsing of meta refresh content attributes.
func TestRefreshTarget(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		content  string
		expected string
		err      error
	}{
		{"0;url=http://b.test/", "http://b.test/", nil},
		{"0; URL=\"http://b.test/?a=1&b=2\"", "http://b.test/?a=1&b=2", nil},
		{"3;url= /next ", "/next", nil},
		{"10", "", ErrNoRedirectTarget},
		{"0;url=", "", ErrNoRedirectTarget},
	}

	for _, tc := range testCases {
		t.Run(tc.content, func(t *testing.T) {
			t.Parallel()
			got, err := RefreshTarget(tc.content)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}
