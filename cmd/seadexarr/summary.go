package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/orchestrator"
)

const maxEpisodesListed = 6

// renderSummary prints one line per title that needed attention followed by
// the aggregate counts. With all set, quiet titles are listed too.
func renderSummary(s *orchestrator.Summary, all bool) string {
	var b strings.Builder

	rows := make([][]string, 0, len(s.Titles))
	for _, t := range s.Titles {
		if !all && t.Status == orchestrator.StatusNoEpisodes {
			continue
		}
		rows = append(rows, []string{t.Title, string(t.Status), episodeSummary(t), releaseSummary(t), t.Error})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"Title", "Outcome", "Episodes", "Release", "Detail"},
			rows,
			nil,
		))
		b.WriteString("\n")
	}

	counts := s.Counts.Labelled()
	countRows := make([][]string, 0, len(counts)+1)
	for _, c := range counts {
		countRows = append(countRows, []string{c.Label, strconv.Itoa(c.Value)})
	}
	countRows = append(countRows, []string{"Ledger writes", strconv.Itoa(len(s.LedgerWrites))})
	b.WriteString(renderTable([]string{"Outcome", "Titles"}, countRows, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	if s.Cancelled {
		mode += " (cancelled)"
	}
	fmt.Fprintf(&b, "Run %s finished in %s%s", s.RunID, s.Duration().Round(time.Millisecond), mode)
	return b.String()
}

func episodeSummary(t orchestrator.TitleResult) string {
	if len(t.Episodes) == 0 {
		return ""
	}
	names := make([]string, 0, maxEpisodesListed)
	for i, ep := range t.Episodes {
		if i == maxEpisodesListed {
			names = append(names, fmt.Sprintf("+%d", len(t.Episodes)-maxEpisodesListed))
			break
		}
		names = append(names, episodeLabel(ep))
	}
	return strings.Join(names, " ")
}

func episodeLabel(ep orchestrator.EpisodeResult) string {
	key, err := ledger.ParseKey(ep.Key)
	if err != nil {
		return ep.Episode
	}
	return media.EpisodeLabel(key.Season, key.Episode)
}

func releaseSummary(t orchestrator.TitleResult) string {
	seen := map[string]bool{}
	var parts []string
	for _, ep := range t.Episodes {
		r := ep.Release
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		part := r.ReleaseGroup + " (" + r.Tracker
		if r.Size > 0 {
			part += ", " + humanize.IBytes(uint64(r.Size))
		}
		parts = append(parts, part+")")
	}
	return strings.Join(parts, ", ")
}
