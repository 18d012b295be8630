package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/notification"
)

// Discord embed colors
const (
	ColorSuccess = 0x2ECC71 // Green
	ColorWarning = 0xF1C40F // Yellow
	ColorDanger  = 0xE74C3C // Red
	ColorInfo    = 0x3498DB // Blue
)

const maxEpisodesListed = 10

// Settings contains Discord-specific configuration
type Settings struct {
	WebhookURL string `json:"webhookUrl"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Notifier sends notifications to Discord via webhook
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ notification.Notifier = (*Notifier)(nil)

// New creates a new Discord notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "discord").Str("name", name).Logger(),
	}
}

func (n *Notifier) Type() notification.NotifierType {
	return notification.NotifierDiscord
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, n.payload(Embed{
		Title:       "SeaDexArr Test Notification",
		Description: "This is a test notification from SeaDexArr.",
		Color:       ColorInfo,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}))
}

func (n *Notifier) Notify(ctx context.Context, event notification.Event) error {
	var embed Embed
	switch e := event.(type) {
	case notification.TitleChosenEvent:
		embed = n.chosenEmbed(e)
	case notification.TitleSkippedEvent:
		embed = n.skippedEmbed(e)
	case notification.RunSummaryEvent:
		embed = n.summaryEmbed(e)
	default:
		return fmt.Errorf("%w: %T", notification.ErrUnknownEvent, event)
	}
	return n.send(ctx, n.payload(embed))
}

func (n *Notifier) chosenEmbed(e notification.TitleChosenEvent) Embed {
	title := fmt.Sprintf("Release Added - %s", e.Title)
	if e.DryRun {
		title = fmt.Sprintf("Release Found (dry run) - %s", e.Title)
	}

	fields := []EmbedField{
		{Name: "Release Group", Value: valueOr(e.Release.ReleaseGroup, "Unknown"), Inline: true},
		{Name: "Tracker", Value: valueOr(e.Release.Tracker, "Unknown"), Inline: true},
	}
	if e.Release.Size > 0 {
		fields = append(fields, EmbedField{Name: "Size", Value: humanize.IBytes(uint64(e.Release.Size)), Inline: true})
	}

	var tags []string
	if e.Release.IsBest {
		tags = append(tags, "Best")
	}
	if e.Release.IsDualAudio {
		tags = append(tags, "Dual Audio")
	}
	if e.Interactive {
		tags = append(tags, "Picked manually")
	}
	if len(tags) > 0 {
		fields = append(fields, EmbedField{Name: "Tags", Value: strings.Join(tags, ", "), Inline: true})
	}
	if len(e.Episodes) > 0 {
		fields = append(fields, EmbedField{Name: "Episodes", Value: listEpisodes(e.Episodes)})
	}

	return Embed{
		Title:     truncate(title, 256),
		URL:       e.Release.EntryURL,
		Color:     ColorSuccess,
		Timestamp: e.ChosenAt.UTC().Format(time.RFC3339),
		Fields:    fields,
	}
}

func (n *Notifier) skippedEmbed(e notification.TitleSkippedEvent) Embed {
	description := e.Reason
	if e.Detail != "" {
		description = fmt.Sprintf("%s\n`%s`", e.Reason, truncate(e.Detail, 1000))
	}
	return Embed{
		Title:       truncate(fmt.Sprintf("Title Skipped - %s", e.Title), 256),
		Description: description,
		Color:       ColorWarning,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func (n *Notifier) summaryEmbed(e notification.RunSummaryEvent) Embed {
	fields := make([]EmbedField, 0, len(e.Counts)+1)
	for _, c := range e.Counts {
		fields = append(fields, EmbedField{Name: c.Label, Value: fmt.Sprintf("%d", c.Value), Inline: true})
	}
	fields = append(fields, EmbedField{Name: "Ledger writes", Value: fmt.Sprintf("%d", e.LedgerWrites), Inline: true})

	color := ColorInfo
	if e.Cancelled {
		color = ColorDanger
	}

	title := "Sync Complete"
	switch {
	case e.Cancelled:
		title = "Sync Cancelled"
	case e.DryRun:
		title = "Sync Complete (dry run)"
	}

	return Embed{
		Title:     title,
		Color:     color,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields:    fields,
		Footer:    &EmbedFooter{Text: fmt.Sprintf("Run %s took %s", e.RunID, e.Duration.Round(time.Second))},
	}
}

func (n *Notifier) payload(embed Embed) WebhookPayload {
	return WebhookPayload{
		Username:  n.getUsername(),
		AvatarURL: n.settings.AvatarURL,
		Embeds:    []Embed{embed},
	}
}

func (n *Notifier) getUsername() string {
	if n.settings.Username != "" {
		return n.settings.Username
	}
	return "SeaDexArr"
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	return nil
}

// WebhookPayload is the Discord webhook request body
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord embed object
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is a field in an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer section of an embed
type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

func listEpisodes(episodes []string) string {
	if len(episodes) <= maxEpisodesListed {
		return strings.Join(episodes, "\n")
	}
	shown := strings.Join(episodes[:maxEpisodesListed], "\n")
	return fmt.Sprintf("%s\n... and %d more", shown, len(episodes)-maxEpisodesListed)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
