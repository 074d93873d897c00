package upstream

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// tagsPerPage is the page size requested from forge tag APIs.
	tagsPerPage = 100
	// maxTagPages bounds how many pages of tags are read.
	maxTagPages = 10
)

// tagRef is the part of a forge tag object we need.
type tagRef struct {
	Name string `json:"name"`
}

// githubLister reads the GitHub REST tags endpoint.
type githubLister struct {
	client *RetryableHTTPClient
}

func (l *githubLister) List(ctx context.Context, src *Source) ([]string, error) {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if token := l.client.GetGitHubToken(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return listTagPages(ctx, l.client, src.Listing, headers)
}

// gitlabLister reads the GitLab REST tags endpoint of any instance.
type gitlabLister struct {
	client *RetryableHTTPClient
}

func (l *gitlabLister) List(ctx context.Context, src *Source) ([]string, error) {
	headers := map[string]string{}
	if l.client.gitlabToken != "" {
		headers["PRIVATE-TOKEN"] = l.client.gitlabToken
	}
	return listTagPages(ctx, l.client, src.Listing, headers)
}

// listTagPages reads pages of tag objects until a short page is returned.
func listTagPages(ctx context.Context, client *RetryableHTTPClient, listing string, headers map[string]string) ([]string, error) {
	var names []string
	for page := 1; page <= maxTagPages; page++ {
		pageURL := fmt.Sprintf("%s?per_page=%d&page=%d", listing, tagsPerPage, page)
		body, err := client.Fetch(ctx, pageURL, headers)
		if err != nil {
			return nil, err
		}
		var tags []tagRef
		if err := json.Unmarshal(body, &tags); err != nil {
			return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("failed to parse tags: %w", err)}
		}
		for _, t := range tags {
			names = append(names, t.Name)
		}
		if len(tags) < tagsPerPage {
			break
		}
	}
	return names, nil
}

// anityaProject is the release-monitoring.org project document.
type anityaProject struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Versions       []string `json:"versions"`
	StableVersions []string `json:"stable_versions"`
}

// anityaLister reads a release-monitoring.org project.
type anityaLister struct {
	client *RetryableHTTPClient
}

func (l *anityaLister) List(ctx context.Context, src *Source) ([]string, error) {
	body, err := l.client.Fetch(ctx, src.Listing, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var project anityaProject
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, &FetchError{URL: src.Listing, Err: fmt.Errorf("failed to parse project: %w", err)}
	}
	if src.Options["stable_only"] == "false" {
		return project.Versions, nil
	}
	return project.StableVersions, nil
}
