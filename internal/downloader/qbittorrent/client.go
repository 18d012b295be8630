// Package qbittorrent submits releases through the qBittorrent Web API.
package qbittorrent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/downloader"
)

// ErrAuthFailed is returned when qBittorrent rejects the credentials.
var ErrAuthFailed = errors.New("qbittorrent authentication failed")

// errForbidden signals an expired session.
var errForbidden = errors.New("qbittorrent session forbidden")

// Config holds the configuration for a qBittorrent client.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Client implements downloader.Submitter against qBittorrent.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	loggedIn bool
}

// Compile-time check that Client implements Submitter.
var _ downloader.Submitter = (*Client)(nil)

// New creates a new qBittorrent client.
func New(cfg Config) *Client {
	jar, _ := cookiejar.New(nil)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	return &Client{
		baseURL:  baseURL,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: cfg.Logger.With().Str("component", "qbittorrent").Str("url", baseURL).Logger(),
	}
}

// Test verifies the client connection.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.withSession(ctx, func() ([]byte, error) {
		return c.get(ctx, "/api/v2/app/version", nil)
	})
	return err
}

// Submit adds the release unless its info hash is already known.
func (c *Client) Submit(ctx context.Context, req downloader.Request) error {
	cand := req.Candidate

	if cand.InfoHash != "" {
		present, err := c.has(ctx, cand.InfoHash)
		if err != nil {
			return fmt.Errorf("%w: %w", downloader.ErrSubmit, err)
		}
		if present {
			return downloader.ErrAlreadyPresent
		}
	}

	link, err := downloader.TorrentURL(cand)
	if err != nil {
		return fmt.Errorf("%w: %w", downloader.ErrSubmit, err)
	}

	body, err := c.withSession(ctx, func() ([]byte, error) {
		return c.add(ctx, link, req.Category)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", downloader.ErrSubmit, err)
	}
	if resp := strings.TrimSpace(string(body)); resp != "" && resp != "Ok." {
		return fmt.Errorf("%w: qbittorrent answered %q", downloader.ErrSubmit, resp)
	}

	c.logger.Info().
		Str("release", cand.ID).
		Str("group", cand.ReleaseGroup).
		Str("category", req.Category).
		Msg("added torrent")
	return nil
}

func (c *Client) has(ctx context.Context, hash string) (bool, error) {
	body, err := c.withSession(ctx, func() ([]byte, error) {
		return c.get(ctx, "/api/v2/torrents/info", url.Values{"hashes": {strings.ToLower(hash)}})
	})
	if err != nil {
		return false, err
	}

	var torrents []struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(body, &torrents); err != nil {
		return false, fmt.Errorf("failed to decode torrent list: %w", err)
	}
	return len(torrents) > 0, nil
}

func (c *Client) add(ctx context.Context, link, category string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("urls", link)
	if category != "" {
		_ = w.WriteField("category", category)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/torrents/add", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// withSession logs in when needed and retries once after a 403.
func (c *Client) withSession(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	if err := c.ensureLogin(ctx, false); err != nil {
		return nil, err
	}
	body, err := fn()
	if !errors.Is(err, errForbidden) {
		return body, err
	}

	c.logger.Debug().Msg("session expired, logging in again")
	if err := c.ensureLogin(ctx, true); err != nil {
		return nil, err
	}
	return fn()
}

func (c *Client) ensureLogin(ctx context.Context, force bool) error {
	if c.username == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn && !force {
		return nil
	}

	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL)

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return ErrAuthFailed
	}
	c.loggedIn = true
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, errForbidden
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("qbittorrent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
