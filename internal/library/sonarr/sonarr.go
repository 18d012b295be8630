// Package sonarr lists anime series and their episode inventory from Sonarr.
package sonarr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/seadexarr/seadexarr/internal/library"
)

// Client reads series from the Sonarr v3 API.
type Client struct {
	api       *library.APIClient
	animeOnly bool
}

// New creates a Sonarr client. With animeOnly set, only series whose type is
// "anime" are listed.
func New(cfg library.ClientConfig, animeOnly bool) *Client {
	return &Client{
		api:       library.NewAPIClient(library.AppSonarr, cfg),
		animeOnly: animeOnly,
	}
}

type apiSeries struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	TvdbID     int    `json:"tvdbId"`
	TmdbID     int    `json:"tmdbId"`
	ImdbID     string `json:"imdbId"`
	SeriesType string `json:"seriesType"`
	Monitored  bool   `json:"monitored"`
}

type apiEpisode struct {
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	Monitored     bool  `json:"monitored"`
	HasFile       bool  `json:"hasFile"`
	EpisodeFileID int64 `json:"episodeFileId"`
	EpisodeFile   *struct {
		ReleaseGroup string `json:"releaseGroup"`
	} `json:"episodeFile"`
}

// ListTitlesNeedingSync implements library.Provider.
func (c *Client) ListTitlesNeedingSync(ctx context.Context) ([]library.Entry, error) {
	var series []apiSeries
	if err := c.api.GetJSON(ctx, "/api/v3/series", &series); err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	logger := c.api.Logger()
	entries := make([]library.Entry, 0, len(series))
	for _, s := range series {
		if c.animeOnly && !strings.EqualFold(s.SeriesType, "anime") {
			continue
		}

		episodes, err := c.episodes(ctx, s.ID)
		if err != nil {
			return nil, err
		}

		entries = append(entries, library.Entry{
			App:      library.AppSonarr,
			ID:       s.ID,
			Title:    s.Title,
			TVDBID:   s.TvdbID,
			TMDBID:   s.TmdbID,
			IMDbID:   s.ImdbID,
			Episodes: episodes,
		})
	}

	logger.Debug().Int("series", len(entries)).Msg("listed series")
	return entries, nil
}

func (c *Client) episodes(ctx context.Context, seriesID int64) ([]library.Episode, error) {
	var raw []apiEpisode
	path := fmt.Sprintf("/api/v3/episode?seriesId=%d&includeImages=false&includeEpisodeFile=true", seriesID)
	if err := c.api.GetJSON(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}

	sort.Slice(raw, func(i, j int) bool {
		if raw[i].SeasonNumber != raw[j].SeasonNumber {
			return raw[i].SeasonNumber < raw[j].SeasonNumber
		}
		return raw[i].EpisodeNumber < raw[j].EpisodeNumber
	})

	episodes := make([]library.Episode, 0, len(raw))
	for _, ep := range raw {
		e := library.Episode{
			Season:    ep.SeasonNumber,
			Episode:   ep.EpisodeNumber,
			Monitored: ep.Monitored,
			HasFile:   ep.HasFile || ep.EpisodeFileID != 0,
		}
		if ep.EpisodeFile != nil {
			e.ReleaseGroup = ep.EpisodeFile.ReleaseGroup
		}
		episodes = append(episodes, e)
	}
	return episodes, nil
}
