// Package seadex fetches candidate releases from the releases.moe index.
package seadex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/ratelimit"
	"github.com/seadexarr/seadexarr/internal/retry"
)

const (
	defaultBaseURL = "https://releases.moe"
	defaultTimeout = 30 * time.Second
	entriesPath    = "/api/collections/entries/records"
	maxErrorBody   = 512
)

// Client queries the release index. All calls go through the shared gate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	gate       ratelimit.Gate
	retry      retry.Config
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Gate       ratelimit.Gate
	Retry      retry.Config
	Logger     zerolog.Logger
}

// NewClient creates a new release index client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	gate := cfg.Gate
	if gate == nil {
		gate = ratelimit.NopGate{}
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		gate:       gate,
		retry:      retryCfg,
		logger: cfg.Logger.With().
			Str("component", "seadex-client").
			Str("url", baseURL).
			Logger(),
	}
}

// Fetch returns every candidate release indexed for an AniList ID. A title
// with no entry yields an empty slice and no error.
func (c *Client) Fetch(ctx context.Context, indexID int) ([]media.Candidate, error) {
	var list recordList

	err := retry.Do(ctx, fmt.Sprintf("seadex fetch %d", indexID), c.retry, func(ctx context.Context) error {
		return c.gate.Do(ctx, func(ctx context.Context) error {
			return c.getJSON(ctx, indexID, &list)
		})
	}, c.logger)
	if err != nil {
		return nil, &Error{Op: "fetch", IndexID: indexID, Err: err}
	}

	candidates := make([]media.Candidate, 0)
	for _, e := range list.Items {
		if e.Incomplete {
			c.logger.Debug().Int("alID", e.AlID).Msg("entry is marked incomplete")
		}
		for _, t := range e.Expand.Trs {
			candidates = append(candidates, c.toCandidate(indexID, t))
		}
	}

	c.logger.Debug().Int("alID", indexID).Int("candidates", len(candidates)).Msg("fetched release index entry")
	return candidates, nil
}

// EntryURL returns the public page for an AniList ID.
func (c *Client) EntryURL(indexID int) string {
	return fmt.Sprintf("%s/%d/", c.baseURL, indexID)
}

func (c *Client) toCandidate(indexID int, t torrent) media.Candidate {
	var size int64
	for _, f := range t.Files {
		size += f.Length
	}

	hash := t.InfoHash
	if hash == redactedHash {
		hash = ""
	}

	return media.Candidate{
		ID:           t.ID,
		IndexID:      indexID,
		Tracker:      t.Tracker,
		IsBest:       t.IsBest,
		IsDualAudio:  t.DualAudio,
		IsPublic:     IsPublicTracker(t.Tracker),
		ReleaseGroup: t.ReleaseGroup,
		URL:          c.absoluteURL(t.URL),
		InfoHash:     strings.ToLower(hash),
		Size:         size,
		FileCount:    len(t.Files),
		EntryURL:     c.EntryURL(indexID),
	}
}

// absoluteURL leaves full URLs alone and anchors relative tracker paths on the index host.
func (c *Client) absoluteURL(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return c.baseURL + "/" + strings.TrimPrefix(raw, "/")
}

func (c *Client) getJSON(ctx context.Context, indexID int, result interface{}) error {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("(alID=%d)", indexID))
	q.Set("expand", "trs")
	reqURL := c.baseURL + entriesPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Int("alID", indexID).Msg("executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Int("alID", indexID).
			Msg("request returned error status")
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
