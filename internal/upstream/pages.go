package upstream

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
)

// gitwebNameXPath selects elements carrying the "name" class, which is how
// gitweb and cgit tag pages mark tag names.
const gitwebNameXPath = `//*[contains(concat(' ', normalize-space(@class), ' '), ' name ')]`

// gitwebLister reads the tags page of a gitweb or cgit instance.
type gitwebLister struct {
	client *RetryableHTTPClient
}

func (l *gitwebLister) List(ctx context.Context, src *Source) ([]string, error) {
	body, err := l.client.Fetch(ctx, src.Listing, nil)
	if err != nil {
		return nil, err
	}
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	nodes, err := htmlquery.QueryAll(doc, gitwebNameXPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
			names = append(names, text)
		}
	}
	return names, nil
}

// htmlLister applies the source's pattern to a whole page; capture group 1
// of every match is an entry.
type htmlLister struct {
	client *RetryableHTTPClient
}

func (l *htmlLister) List(ctx context.Context, src *Source) ([]string, error) {
	re, err := regexp.Compile(src.Options["pattern"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	body, err := l.client.Fetch(ctx, src.Listing, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range re.FindAllSubmatch(body, -1) {
		if len(m) > 1 && len(m[1]) > 0 {
			names = append(names, string(m[1]))
		}
	}
	return names, nil
}
