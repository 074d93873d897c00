package upstream

import (
	"context"
	"fmt"
)

// Lister returns the raw entries (file names or tag names) of a listing.
type Lister interface {
	List(ctx context.Context, src *Source) ([]string, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context, src *Source) ([]string, error)

// List calls f.
func (f ListerFunc) List(ctx context.Context, src *Source) ([]string, error) {
	return f(ctx, src)
}

// NewLister returns the built-in Lister for a strategy.
func NewLister(strategy string, client *RetryableHTTPClient) (Lister, error) {
	switch strategy {
	case StrategyDirectory:
		return &directoryLister{client: client}, nil
	case StrategyGitHub:
		return &githubLister{client: client}, nil
	case StrategyGitLab:
		return &gitlabLister{client: client}, nil
	case StrategyGitWeb:
		return &gitwebLister{client: client}, nil
	case StrategyGit:
		l := &gitLister{listRefs: remoteRefs}
		if client != nil {
			l.timeout = client.Config().Timeout
		}
		return l, nil
	case StrategyAnitya:
		return &anityaLister{client: client}, nil
	case StrategyHTML:
		return &htmlLister{client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoLister, strategy)
	}
}

// Strategies lists every strategy with a built-in Lister.
func Strategies() []string {
	return []string{
		StrategyDirectory, StrategyGitHub, StrategyGitLab, StrategyGitWeb,
		StrategyGit, StrategyAnitya, StrategyHTML,
	}
}
