// Package filter narrows release candidates toward the best match for the
// user's preferences.
package filter

import (
	"fmt"
	"strings"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/media"
)

// Stage is one step of the pipeline. Stages never reorder candidates.
type Stage interface {
	Name() string
	Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate
}

// StageCount records how many candidates entered and left a stage.
type StageCount struct {
	Stage string
	In    int
	Out   int
}

// Trace is the per-stage record of one Apply call.
type Trace []StageCount

func (t Trace) String() string {
	parts := make([]string, 0, len(t))
	for _, c := range t {
		parts = append(parts, fmt.Sprintf("%s %d->%d", c.Stage, c.In, c.Out))
	}
	return strings.Join(parts, ", ")
}

// Pipeline runs stages in a fixed order, each consuming the previous output.
type Pipeline struct {
	stages []Stage
}

// New returns the standard pipeline: tracker, privacy, best tag, dual audio.
func New() *Pipeline {
	return NewPipeline(TrackerStage{}, PrivacyStage{}, BestStage{}, DualAudioStage{})
}

// NewPipeline builds a pipeline from explicit stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply filters candidates. The result is a new slice in input order.
func (p *Pipeline) Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate {
	out, _ := p.ApplyTrace(candidates, cfg)
	return out
}

// ApplyTrace is Apply plus the per-stage counts.
func (p *Pipeline) ApplyTrace(candidates []media.Candidate, cfg config.FilterConfig) ([]media.Candidate, Trace) {
	current := append([]media.Candidate(nil), candidates...)
	trace := make(Trace, 0, len(p.stages))
	for _, s := range p.stages {
		in := len(current)
		current = s.Apply(current, cfg)
		trace = append(trace, StageCount{Stage: s.Name(), In: in, Out: len(current)})
	}
	return current, trace
}

func keep(candidates []media.Candidate, pred func(media.Candidate) bool) []media.Candidate {
	out := make([]media.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// preferIf narrows to candidates matching pred only when at least one does.
func preferIf(candidates []media.Candidate, pred func(media.Candidate) bool) []media.Candidate {
	narrowed := keep(candidates, pred)
	if len(narrowed) == 0 {
		return candidates
	}
	return narrowed
}
