package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/media"
)

var (
	// ErrAlreadyPresent means the torrent client already has the release.
	ErrAlreadyPresent = errors.New("release already present in torrent client")
	// ErrSubmit wraps every other submission failure.
	ErrSubmit = errors.New("failed to submit release")
	// ErrUnsupportedURL is returned when no downloadable link can be derived.
	ErrUnsupportedURL = errors.New("no downloadable link for release")
)

// Request is one release to hand to the torrent client.
type Request struct {
	Candidate media.Candidate
	Category  string
}

// Submitter hands releases to a torrent client.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

var nyaaView = regexp.MustCompile(`^(https?://(?:www\.)?nyaa\.(?:si|land))/view/(\d+)`)

// TorrentURL returns a link the torrent client can fetch: Nyaa view pages
// become .torrent downloads; otherwise a magnet link is built from the info hash.
func TorrentURL(c media.Candidate) (string, error) {
	if m := nyaaView.FindStringSubmatch(c.URL); m != nil {
		return fmt.Sprintf("%s/download/%s.torrent", m[1], m[2]), nil
	}
	if strings.HasPrefix(c.URL, "magnet:") || strings.HasSuffix(strings.ToLower(c.URL), ".torrent") {
		return c.URL, nil
	}
	if c.InfoHash != "" {
		return "magnet:?xt=urn:btih:" + url.QueryEscape(c.InfoHash), nil
	}
	return "", fmt.Errorf("%w: %s release %s (%s)", ErrUnsupportedURL, c.Tracker, c.ID, c.URL)
}

// DryRun logs what would be submitted.
type DryRun struct {
	Logger zerolog.Logger
}

func (d DryRun) Submit(_ context.Context, req Request) error {
	link, err := TorrentURL(req.Candidate)
	if err != nil {
		link = req.Candidate.URL
	}
	d.Logger.Info().
		Str("component", "dry-run").
		Str("release", req.Candidate.ID).
		Str("group", req.Candidate.ReleaseGroup).
		Str("url", link).
		Str("category", req.Category).
		Msg("dry run: would submit release")
	return nil
}
