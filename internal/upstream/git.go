package upstream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

// gitLister reads tag names from a repository's ref advertisement, the
// equivalent of git ls-remote --tags.
// Each listing is bounded by timeout: the git transport has no deadline of
// its own.
type gitLister struct {
	listRefs func(ctx context.Context, url string) ([]string, error)
	timeout  time.Duration
}

type refsResult struct {
	refs []string
	err  error
}

func (l *gitLister) List(ctx context.Context, src *Source) ([]string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	done := make(chan refsResult, 1)
	go func() {
		refs, err := l.listRefs(ctx, src.Listing)
		done <- refsResult{refs: refs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &FetchError{URL: src.Listing, Err: r.err}
		}
		return tagNames(r.refs), nil
	case <-ctx.Done():
		return nil, &FetchError{URL: src.Listing, Err: ctx.Err()}
	}
}

// tagNames keeps refs/tags/ entries, dropping peeled ^{} duplicates.
func tagNames(refs []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ref := range refs {
		name, ok := strings.CutPrefix(ref, "refs/tags/")
		if !ok {
			continue
		}
		name = strings.TrimSuffix(name, "^{}")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// remoteRefs lists the refs advertised by the remote at url without
// cloning anything.
func remoteRefs(ctx context.Context, url string) ([]string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name().String())
	}
	return names, nil
}
