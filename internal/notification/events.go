package notification

import (
	"time"

	"github.com/seadexarr/seadexarr/internal/media"
)

// EventType identifies the type of notification event
type EventType string

const (
	EventTitleChosen  EventType = "title_chosen"
	EventTitleSkipped EventType = "title_skipped"
	EventRunSummary   EventType = "run_summary"
)

// Event is one of TitleChosenEvent, TitleSkippedEvent or RunSummaryEvent.
type Event interface {
	EventType() EventType
}

// TitleChosenEvent is sent after a release was submitted for a title.
type TitleChosenEvent struct {
	RunID       string          `json:"runId"`
	Title       string          `json:"title"`
	LibraryID   string          `json:"libraryId"`
	Episodes    []string        `json:"episodes"`
	Release     media.Candidate `json:"release"`
	Interactive bool            `json:"interactive"`
	DryRun      bool            `json:"dryRun"`
	ChosenAt    time.Time       `json:"chosenAt"`
}

func (TitleChosenEvent) EventType() EventType { return EventTitleChosen }

// TitleSkippedEvent is sent when a title could not be processed.
type TitleSkippedEvent struct {
	RunID     string `json:"runId"`
	Title     string `json:"title"`
	LibraryID string `json:"libraryId"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

func (TitleSkippedEvent) EventType() EventType { return EventTitleSkipped }

// Count is one labelled number in a run summary.
type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// RunSummaryEvent is sent once at the end of every run.
type RunSummaryEvent struct {
	RunID        string        `json:"runId"`
	Counts       []Count       `json:"counts"`
	LedgerWrites int           `json:"ledgerWrites"`
	Duration     time.Duration `json:"duration"`
	DryRun       bool          `json:"dryRun"`
	Cancelled    bool          `json:"cancelled,omitempty"`
}

func (RunSummaryEvent) EventType() EventType { return EventRunSummary }
