// Package tui provides the Bubble Tea release picker used in interactive mode.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/selection"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3")).
			Bold(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// ErrAborted is returned when the user quits the picker with ctrl+c.
var ErrAborted = errors.New("release selection aborted")

const maxEpisodesShown = 8

// Model is the Bubble Tea model for one prompt.
type Model struct {
	prompt  selection.Prompt
	cursor  int
	chosen  bool
	skipped bool
	aborted bool
}

// NewModel creates a picker for prompt.
func NewModel(prompt selection.Prompt) Model {
	return Model{prompt: prompt}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c":
		m.aborted = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.prompt.Candidates)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.prompt.Candidates) > 0 {
			m.chosen = true
			return m, tea.Quit
		}
	case "s", "esc", "q":
		m.skipped = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the prompt.
func (m Model) View() string {
	if m.chosen || m.skipped || m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.prompt.Title))
	b.WriteString("\n")
	if eps := m.prompt.Episodes; len(eps) > 0 {
		shown := eps
		if len(shown) > maxEpisodesShown {
			shown = shown[:maxEpisodesShown]
		}
		line := "Episodes: " + strings.Join(shown, ", ")
		if len(eps) > maxEpisodesShown {
			line += fmt.Sprintf(" (+%d more)", len(eps)-maxEpisodesShown)
		}
		b.WriteString(subtitleStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, c := range m.prompt.Candidates {
		line := describe(c)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("up/down: move  enter: choose  s: skip  ctrl+c: abort"))
	return boxStyle.Render(b.String())
}

func describe(c media.Candidate) string {
	parts := []string{c.ReleaseGroup, c.Tracker}
	if c.Size > 0 {
		parts = append(parts, humanize.IBytes(uint64(c.Size)))
	}
	if c.FileCount > 0 {
		parts = append(parts, fmt.Sprintf("%d files", c.FileCount))
	}
	line := strings.Join(parts, " | ")

	var tags []string
	if c.IsBest {
		tags = append(tags, "best")
	}
	if c.IsDualAudio {
		tags = append(tags, "dual audio")
	}
	if len(tags) > 0 {
		line += " " + tagStyle.Render("["+strings.Join(tags, ", ")+"]")
	}
	return line
}

// Result returns the finished model's answer.
func (m Model) Result() (media.Candidate, bool, error) {
	switch {
	case m.aborted:
		return media.Candidate{}, false, ErrAborted
	case m.chosen:
		return m.prompt.Candidates[m.cursor], true, nil
	default:
		return media.Candidate{}, false, nil
	}
}

// Chooser implements selection.Chooser with a terminal picker. Prompts from
// concurrent title workers are shown one at a time.
type Chooser struct {
	mu      sync.Mutex
	options []tea.ProgramOption
}

// NewChooser creates a chooser reading from in and drawing on out.
func NewChooser(in io.Reader, out io.Writer) *Chooser {
	return &Chooser{options: []tea.ProgramOption{tea.WithInput(in), tea.WithOutput(out)}}
}

// Choose implements selection.Chooser.
func (c *Chooser) Choose(ctx context.Context, prompt selection.Prompt) (media.Candidate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return media.Candidate{}, false, err
	}

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, c.options...)
	final, err := tea.NewProgram(NewModel(prompt), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return media.Candidate{}, false, ctxErr
		}
		return media.Candidate{}, false, fmt.Errorf("release picker: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return media.Candidate{}, false, fmt.Errorf("release picker: unexpected model %T", final)
	}
	return m.Result()
}
