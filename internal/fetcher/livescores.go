package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"penalty-alerts/internal/match"
)

const livescoresPath = "/livescores/latest"

// LivescoresOptions parameterise the SportMonks livescores fetcher.
type LivescoresOptions struct {
	BaseURL           string
	APIKey            string
	Includes          string
	PerPage           int
	Timeout           time.Duration
	RequestsPerMinute int
	UserAgent         string
}

// Livescores polls the SportMonks latest-livescores endpoint.
type Livescores struct {
	opts    LivescoresOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewLivescores constructs a livescores fetcher.
func NewLivescores(opts LivescoresOptions, logger zerolog.Logger) *Livescores {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sportmonks.com/v3/football"
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}

	return &Livescores{
		opts:    opts,
		logger:  logger.With().Str("component", "livescores_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		baseURL: baseURL,
	}
}

// FetchLive performs one GET against the feed and decodes the match list.
func (l *Livescores) FetchLive(ctx context.Context) ([]match.Match, error) {
	if l.opts.APIKey == "" {
		return nil, fmt.Errorf("sportmonks api key not configured")
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("api_token", l.opts.APIKey)
	if l.opts.Includes != "" {
		params.Set("include", l.opts.Includes)
	}
	if l.opts.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(l.opts.PerPage))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+livescoresPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", livescoresPath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(body, 200)}
	}

	matches, err := Decode(body)
	if err != nil {
		return nil, err
	}
	l.logger.Debug().Int("matches", len(matches)).Msg("livescores fetched")
	return matches, nil
}

// HTTPError reports a non-200 answer from the feed.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sportmonks %s returned %d", livescoresPath, e.Status)
	}
	return fmt.Sprintf("sportmonks %s returned %d: %s", livescoresPath, e.Status, e.Body)
}

func truncate(b []byte, maxLen int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ MatchFetcher = (*Livescores)(nil)
