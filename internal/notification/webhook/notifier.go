package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/notification"
)

// Settings contains webhook-specific configuration
type Settings struct {
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Notifier posts every event as JSON to a custom endpoint
type Notifier struct {
	name       string
	settings   Settings
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

var _ notification.Notifier = (*Notifier)(nil)

// New creates a new webhook notifier
func New(name string, settings Settings, httpClient *http.Client, logger zerolog.Logger) *Notifier {
	if settings.Method == "" {
		settings.Method = http.MethodPost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Notifier{
		name:       name,
		settings:   settings,
		httpClient: httpClient,
		logger:     logger.With().Str("notifier", "webhook").Str("name", name).Logger(),
		now:        time.Now,
	}
}

func (n *Notifier) Type() notification.NotifierType {
	return notification.NotifierWebhook
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, Payload{
		EventType:    "test",
		InstanceName: "SeaDexArr",
		Message:      "Test notification from SeaDexArr",
		Timestamp:    n.now().UTC(),
	})
}

func (n *Notifier) Notify(ctx context.Context, event notification.Event) error {
	payload := Payload{
		EventType:    string(event.EventType()),
		InstanceName: "SeaDexArr",
		Timestamp:    n.now().UTC(),
	}

	switch e := event.(type) {
	case notification.TitleChosenEvent:
		payload.Chosen = &e
	case notification.TitleSkippedEvent:
		payload.Skipped = &e
	case notification.RunSummaryEvent:
		payload.Summary = &e
	default:
		return fmt.Errorf("%w: %T", notification.ErrUnknownEvent, event)
	}
	return n.send(ctx, payload)
}

func (n *Notifier) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, n.settings.Method, n.settings.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Add basic auth if configured
	if n.settings.Username != "" && n.settings.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(n.settings.Username + ":" + n.settings.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	for key, value := range n.settings.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Payload is the JSON body posted for every event. Exactly one of the event
// sections is set.
type Payload struct {
	EventType    string    `json:"eventType"`
	InstanceName string    `json:"instanceName"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message,omitempty"`

	Chosen  *notification.TitleChosenEvent  `json:"chosen,omitempty"`
	Skipped *notification.TitleSkippedEvent `json:"skipped,omitempty"`
	Summary *notification.RunSummaryEvent   `json:"summary,omitempty"`
}
