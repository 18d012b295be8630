package seadex

import "strings"

// recordList is a PocketBase list response from /api/collections/entries/records.
type recordList struct {
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	TotalItems int     `json:"totalItems"`
	Items      []entry `json:"items"`
}

type entry struct {
	ID         string `json:"id"`
	AlID       int    `json:"alID"`
	Comparison string `json:"comparison"`
	Incomplete bool   `json:"incomplete"`
	Notes      string `json:"notes"`
	Expand     struct {
		Trs []torrent `json:"trs"`
	} `json:"expand"`
}

type torrent struct {
	ID           string `json:"id"`
	Tracker      string `json:"tracker"`
	URL          string `json:"url"`
	InfoHash     string `json:"infoHash"`
	ReleaseGroup string `json:"releaseGroup"`
	IsBest       bool   `json:"isBest"`
	DualAudio    bool   `json:"dualAudio"`
	Files        []file `json:"files"`
}

type file struct {
	Length int64  `json:"length"`
	Name   string `json:"name"`
}

// publicTrackers are the trackers anyone can download from.
var publicTrackers = map[string]bool{
	"nyaa":       true,
	"animetosho": true,
	"anidex":     true,
	"rutracker":  true,
	"other":      true,
}

// IsPublicTracker reports whether a tracker name refers to a public tracker.
func IsPublicTracker(name string) bool {
	return publicTrackers[strings.ToLower(strings.TrimSpace(name))]
}

// redactedHash is what the index returns for private tracker hashes.
const redactedHash = "<redacted>"
