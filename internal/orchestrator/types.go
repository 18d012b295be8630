package orchestrator

import (
	"time"

	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/notification"
)

// Status is the reason attached to every title and episode outcome.
type Status string

const (
	StatusNoMapping         Status = "skipped-no-mapping"
	StatusNoEpisodes        Status = "nothing-to-do"
	StatusInRadarr          Status = "skipped-in-radarr"
	StatusIndexUnavailable  Status = "index-unavailable"
	StatusNoCandidates      Status = "skipped-no-candidates"
	StatusDeferredCap       Status = "deferred-cap"
	StatusAlreadySatisfied  Status = "already-satisfied"
	StatusAlreadyHaveGroup  Status = "already-have-release"
	StatusSkippedUser       Status = "skipped-user"
	StatusChosenAuto        Status = "chosen-auto"
	StatusChosenInteractive Status = "chosen-interactive"
	StatusSuperseded        Status = "superseded"
	StatusWouldAcquire      Status = "would-acquire"
	StatusSubmitError       Status = "submit-error"
	StatusLedgerWriteError  Status = "ledger-write-error"
	StatusCancelled         Status = "cancelled"
	StatusFailed            Status = "failed"
)

// Failure reports whether the status is an error rather than a skip.
func (s Status) Failure() bool {
	switch s {
	case StatusIndexUnavailable, StatusSubmitError, StatusLedgerWriteError, StatusFailed:
		return true
	}
	return false
}

// EpisodeResult is the outcome for one episode of a title.
type EpisodeResult struct {
	Key     string           `json:"key"`
	Episode string           `json:"episode"`
	Status  Status           `json:"status"`
	Release *media.Candidate `json:"release,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// TitleResult is the outcome for one library title.
type TitleResult struct {
	LibraryID string          `json:"libraryId"`
	Title     string          `json:"title"`
	Status    Status          `json:"status"`
	Resolved  bool            `json:"resolved"`
	Error     string          `json:"error,omitempty"`
	Episodes  []EpisodeResult `json:"episodes,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Counts aggregates title outcomes by status.
type Counts struct {
	Resolved            int `json:"resolved"`
	SkippedNoMapping    int `json:"skippedNoMapping"`
	SkippedNoCandidates int `json:"skippedNoCandidates"`
	ChosenAuto          int `json:"chosenAuto"`
	ChosenInteractive   int `json:"chosenInteractive"`
	DeferredCap         int `json:"deferredCap"`
	AlreadySatisfied    int `json:"alreadySatisfied"`
	SkippedUser         int `json:"skippedUser"`
	NothingToDo         int `json:"nothingToDo"`
	SkippedInRadarr     int `json:"skippedInRadarr"`
	Failed              int `json:"failed"`
	Submitted           int `json:"submitted"`
}

func (c *Counts) add(r TitleResult) {
	if r.Resolved {
		c.Resolved++
	}
	switch r.Status {
	case StatusNoMapping:
		c.SkippedNoMapping++
	case StatusNoCandidates:
		c.SkippedNoCandidates++
	case StatusChosenAuto, StatusWouldAcquire:
		c.ChosenAuto++
	case StatusChosenInteractive:
		c.ChosenInteractive++
	case StatusDeferredCap:
		c.DeferredCap++
	case StatusAlreadySatisfied:
		c.AlreadySatisfied++
	case StatusSkippedUser:
		c.SkippedUser++
	case StatusNoEpisodes:
		c.NothingToDo++
	case StatusInRadarr:
		c.SkippedInRadarr++
	case StatusIndexUnavailable, StatusFailed, StatusCancelled, StatusLedgerWriteError, StatusSubmitError:
		c.Failed++
	}
}

// Labelled returns the counts in display order.
func (c Counts) Labelled() []notification.Count {
	return []notification.Count{
		{Label: "Resolved", Value: c.Resolved},
		{Label: "Chosen (auto)", Value: c.ChosenAuto},
		{Label: "Chosen (interactive)", Value: c.ChosenInteractive},
		{Label: "Releases submitted", Value: c.Submitted},
		{Label: "Already satisfied", Value: c.AlreadySatisfied},
		{Label: "Nothing to do", Value: c.NothingToDo},
		{Label: "Movie in Radarr", Value: c.SkippedInRadarr},
		{Label: "No mapping", Value: c.SkippedNoMapping},
		{Label: "No candidates", Value: c.SkippedNoCandidates},
		{Label: "Skipped by user", Value: c.SkippedUser},
		{Label: "Deferred (cap)", Value: c.DeferredCap},
		{Label: "Failed", Value: c.Failed},
	}
}

// Summary is the result of one run.
type Summary struct {
	RunID        string         `json:"runId"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	DryRun       bool           `json:"dryRun"`
	Cancelled    bool           `json:"cancelled"`
	Counts       Counts         `json:"counts"`
	Titles       []TitleResult  `json:"titles"`
	LedgerWrites []ledger.Entry `json:"ledgerWrites"`
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) event() notification.RunSummaryEvent {
	return notification.RunSummaryEvent{
		RunID:        s.RunID,
		Counts:       s.Counts.Labelled(),
		LedgerWrites: len(s.LedgerWrites),
		Duration:     s.Duration(),
		DryRun:       s.DryRun,
		Cancelled:    s.Cancelled,
	}
}
