// Package library defines the view of Sonarr and Radarr content the sync run
// works from.
package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/seadexarr/seadexarr/internal/media"
)

// App identifies the library application an entry came from.
type App string

const (
	AppSonarr App = "sonarr"
	AppRadarr App = "radarr"
)

// Kind returns the media kind the app manages.
func (a App) Kind() media.Kind {
	if a == AppRadarr {
		return media.KindMovie
	}
	return media.KindSeries
}

// Entry is one series or movie in a library application.
type Entry struct {
	App    App
	ID     int64
	Title  string
	TVDBID int
	TMDBID int
	IMDbID string

	// Episodes is the existing inventory. Movies carry a single episode
	// addressed by media.MovieSeason/media.MovieEpisode.
	Episodes []Episode
}

// LibraryID is the namespaced ID used as the ledger join key.
func (e Entry) LibraryID() string {
	return fmt.Sprintf("%s:%d", e.App, e.ID)
}

// Kind returns the entry's media kind.
func (e Entry) Kind() media.Kind {
	return e.App.Kind()
}

// Episode is one episode of an entry and the file the library has for it.
type Episode struct {
	Season       int
	Episode      int
	Monitored    bool
	HasFile      bool
	ReleaseGroup string
}

// Provider lists titles that may need a release acquired.
type Provider interface {
	ListTitlesNeedingSync(ctx context.Context) ([]Entry, error)
}

// Multi concatenates providers and orders the result by title.
type Multi []Provider

// ListTitlesNeedingSync implements Provider. The first failing provider aborts the listing.
func (m Multi) ListTitlesNeedingSync(ctx context.Context) ([]Entry, error) {
	var all []Entry
	for _, p := range m {
		entries, err := p.ListTitlesNeedingSync(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Title) < strings.ToLower(all[j].Title)
	})
	return all, nil
}
