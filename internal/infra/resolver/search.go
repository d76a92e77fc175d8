package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// videoPattern matches the first watch link in a YouTube results page.
var videoPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

// Searcher finds the first YouTube video for a text query by scraping
// the results page. No API key needed.
type Searcher struct {
	BaseURL string
	Client  *http.Client
}

// NewSearcher creates a searcher against youtube.com.
func NewSearcher() *Searcher {
	return &Searcher{
		BaseURL: "https://www.youtube.com",
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FirstVideoURL returns the watch URL of the top search result.
func (s *Searcher) FirstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build search request")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("search failed: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read search response")
	}

	matches := videoPattern.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return "", errors.Wrapf(ErrNotFound, "query=%s", query)
	}
	return fmt.Sprintf("%s/watch?v=%s", "https://www.youtube.com", matches[1]), nil
}
