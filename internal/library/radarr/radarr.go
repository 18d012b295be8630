// Package radarr lists movies and their file inventory from Radarr.
package radarr

import (
	"context"
	"fmt"

	"github.com/seadexarr/seadexarr/internal/library"
	"github.com/seadexarr/seadexarr/internal/media"
)

// Client reads movies from the Radarr v3 API.
type Client struct {
	api *library.APIClient
}

// New creates a Radarr client.
func New(cfg library.ClientConfig) *Client {
	return &Client{api: library.NewAPIClient(library.AppRadarr, cfg)}
}

type apiMovie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	TmdbID    int    `json:"tmdbId"`
	ImdbID    string `json:"imdbId"`
	Monitored bool   `json:"monitored"`
	HasFile   bool   `json:"hasFile"`
	MovieFile *struct {
		ReleaseGroup string `json:"releaseGroup"`
	} `json:"movieFile"`
}

// ListTitlesNeedingSync implements library.Provider.
func (c *Client) ListTitlesNeedingSync(ctx context.Context) ([]library.Entry, error) {
	var movies []apiMovie
	if err := c.api.GetJSON(ctx, "/api/v3/movie", &movies); err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	entries := make([]library.Entry, 0, len(movies))
	for _, m := range movies {
		file := library.Episode{
			Season:    media.MovieSeason,
			Episode:   media.MovieEpisode,
			Monitored: m.Monitored,
			HasFile:   m.HasFile,
		}
		if m.MovieFile != nil {
			file.ReleaseGroup = m.MovieFile.ReleaseGroup
		}

		entries = append(entries, library.Entry{
			App:      library.AppRadarr,
			ID:       m.ID,
			Title:    m.Title,
			TMDBID:   m.TmdbID,
			IMDbID:   m.ImdbID,
			Episodes: []library.Episode{file},
		})
	}

	logger := c.api.Logger()
	logger.Debug().Int("movies", len(entries)).Msg("listed movies")
	return entries, nil
}
