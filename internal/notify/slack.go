package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const slackFooter = "E2E Self-Heal"

// SlackNotifier posts to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// SlackMessage is the webhook payload
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment carries the decision details in a colored block
type SlackAttachment struct {
	Fallback  string       `json:"fallback"`
	Color     string       `json:"color"`
	Title     string       `json:"title,omitempty"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField is one attachment field
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackNotifier creates a Slack notifier. An empty URL disables it.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SlackColor maps the level to an attachment color
func (l Level) SlackColor() string {
	switch l {
	case LevelSuccess:
		return "good"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// NewSlackMessage renders n as a single-attachment message
func NewSlackMessage(n Notification, at time.Time) SlackMessage {
	a := SlackAttachment{
		Fallback:  n.Title + ": " + n.Message,
		Color:     n.Level.SlackColor(),
		TitleLink: n.URL,
		Text:      n.Message,
		Footer:    slackFooter,
		Timestamp: at.Unix(),
	}
	if n.RunID != "" {
		a.Title = "Run " + n.RunID
	} else if n.URL != "" {
		a.Title = "Dashboard"
	}
	for _, f := range n.Fields {
		a.Fields = append(a.Fields, SlackField{Title: f.Title, Value: f.Value, Short: f.Short})
	}
	return SlackMessage{Text: n.Title, Attachments: []SlackAttachment{a}}
}

// Send posts the notification to the webhook
func (s *SlackNotifier) Send(ctx context.Context, n Notification) error {
	if s.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(NewSlackMessage(n, time.Now()))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}
