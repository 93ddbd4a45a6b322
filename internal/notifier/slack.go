package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rcl-research/rcl/internal/model"
)

// Ensure SlackNotifier implements model.RunNotifier.
var _ model.RunNotifier = (*SlackNotifier)(nil)

// SlackNotifier posts run summaries to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each run to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NotifyRun sends the run as a single Block Kit message. A 429 response is
// retried once after the Retry-After delay.
func (s *SlackNotifier) NotifyRun(run model.Run) error {
	body, err := json.Marshal(buildPayload(run))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		s.logger.Info("slack message sent", "run_id", run.ID, "retried", true)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info("slack message sent", "run_id", run.ID)
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a fabricated run through n to verify the integration works.
func SendTestMessage(n model.RunNotifier) error {
	var h model.History
	h.Append(map[string]float64{"loss": 0.69, "val_loss": 0.70})
	return n.NotifyRun(model.Run{
		ID:           "test-001",
		ModelName:    "integration-check",
		NumLabels:    2,
		Epochs:       1,
		ClassWeights: map[int]float64{0: 1, 1: 1},
		History:      h,
		CreatedAt:    time.Now().UTC(),
	})
}

func formatMetrics(h model.History) string {
	if h.Empty() {
		return "_no epochs recorded_"
	}
	var b strings.Builder
	for _, name := range h.Metrics() {
		v, _ := h.Last(name)
		fmt.Fprintf(&b, "• `%s`: %.4f\n", name, v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func buildPayload(run model.Run) slackPayload {
	finished := "unknown"
	if !run.CreatedAt.IsZero() {
		finished = run.CreatedAt.UTC().Format(time.RFC1123)
	}

	return slackPayload{Blocks: []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🧪 Training run complete: " + run.ModelName},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Run:*\n" + run.ID},
				{Type: "mrkdwn", Text: "*Labels:*\n" + strconv.Itoa(run.NumLabels)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Epochs:*\n" + strconv.Itoa(run.Epochs)},
				{Type: "mrkdwn", Text: "*Finished:*\n" + finished},
			},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: formatMetrics(run.History)},
		},
		{Type: "divider"},
	}}
}
