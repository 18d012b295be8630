// Package selection turns a filtered candidate set into a single decision.
package selection

import (
	"context"
	"errors"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/media"
)

// Kind is the outcome type.
type Kind int

const (
	NoneFound Kind = iota
	Chosen
	AwaitingUserChoice
)

func (k Kind) String() string {
	switch k {
	case Chosen:
		return "chosen"
	case AwaitingUserChoice:
		return "awaiting-user-choice"
	default:
		return "none-found"
	}
}

// Outcome is the result of Resolve. It is a value only and never persisted.
type Outcome struct {
	Kind Kind
	// Candidate is set for Chosen.
	Candidate media.Candidate
	// Candidates is set for AwaitingUserChoice, in filtered order.
	Candidates []media.Candidate
}

// Resolve picks a release. With more than one survivor the first one wins
// unless the run is interactive, in which case the caller has to ask.
func Resolve(filtered []media.Candidate, cfg config.FilterConfig) Outcome {
	switch {
	case len(filtered) == 0:
		return Outcome{Kind: NoneFound}
	case len(filtered) == 1:
		return Outcome{Kind: Chosen, Candidate: filtered[0]}
	case cfg.Interactive:
		return Outcome{Kind: AwaitingUserChoice, Candidates: append([]media.Candidate(nil), filtered...)}
	default:
		return Outcome{Kind: Chosen, Candidate: filtered[0]}
	}
}

// Prompt is what a Chooser shows the user.
type Prompt struct {
	Title      string
	Episodes   []string
	Candidates []media.Candidate
}

// Chooser resumes an AwaitingUserChoice outcome. It returns false when the
// user skips.
type Chooser interface {
	Choose(ctx context.Context, prompt Prompt) (media.Candidate, bool, error)
}

// ErrInvalidChoice is returned when a chooser answers with a release that was not offered.
var ErrInvalidChoice = errors.New("chosen release was not offered")

// Ask runs the chooser for an awaiting outcome and checks the answer. Outcomes
// of other kinds are returned unchanged. A skip yields NoneFound with skipped set.
func Ask(ctx context.Context, o Outcome, prompt Prompt, chooser Chooser) (result Outcome, skipped bool, err error) {
	if o.Kind != AwaitingUserChoice {
		return o, false, nil
	}
	if chooser == nil {
		return Outcome{Kind: NoneFound}, true, nil
	}

	prompt.Candidates = o.Candidates
	c, ok, err := chooser.Choose(ctx, prompt)
	if err != nil {
		return Outcome{}, false, err
	}
	if !ok {
		return Outcome{Kind: NoneFound}, true, nil
	}
	for _, offered := range o.Candidates {
		if offered.ID == c.ID {
			return Outcome{Kind: Chosen, Candidate: offered}, false, nil
		}
	}
	return Outcome{}, false, ErrInvalidChoice
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, prompt Prompt) (media.Candidate, bool, error)

func (f ChooserFunc) Choose(ctx context.Context, prompt Prompt) (media.Candidate, bool, error) {
	return f(ctx, prompt)
}
