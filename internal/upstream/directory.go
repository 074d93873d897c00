package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// directoryLister lists the files of an HTTP directory index (HTML or plain
// text) or of a local file:// directory.
type directoryLister struct {
	client *RetryableHTTPClient
}

func (l *directoryLister) List(ctx context.Context, src *Source) ([]string, error) {
	if dir, ok := strings.CutPrefix(src.Listing, "file://"); ok {
		return listLocalDir(dir)
	}
	body, err := l.client.Fetch(ctx, src.Listing, nil)
	if err != nil {
		return nil, err
	}
	return parseDirectoryIndex(body)
}

func listLocalDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FetchError{URL: "file://" + dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// parseDirectoryIndex extracts file names from an index page. HTML pages
// contribute the last path segment of every link and every link text;
// anything else is read as whitespace-separated names.
func parseDirectoryIndex(body []byte) ([]string, error) {
	if !looksLikeHTML(body) {
		var names []string
		for _, field := range strings.Fields(string(body)) {
			names = append(names, path.Base(field))
		}
		return names, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var names []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if name := linkName(href); name != "" {
			names = append(names, name)
		}
		if text := strings.TrimSpace(s.Text()); text != "" && !strings.ContainsAny(text, " \t\n") {
			names = append(names, strings.TrimSuffix(text, "/"))
		}
	})
	return names, nil
}

// linkName returns the unescaped last path segment of href.
func linkName(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimSuffix(href, "/")
	if href == "" {
		return ""
	}
	name := path.Base(href)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(body[:min(len(body), 1024)])
	return bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<!doctype")) ||
		bytes.Contains(head, []byte("<a "))
}
