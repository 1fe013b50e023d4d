// Package notify delivers direct messages to users through the Slack Web API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/slacktip/tipbot/internal/metrics"
	"github.com/slacktip/tipbot/pkg/config"
)

// SlackNotifier sends direct messages via chat.postMessage. Each message
// first opens (or reuses) the IM conversation with the user.
type SlackNotifier struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSlackNotifier creates a notifier from the Slack configuration.
func NewSlackNotifier(cfg *config.SlackConfig, logger *zap.Logger) *SlackNotifier {
	return &SlackNotifier{
		apiURL: cfg.APIURL,
		token:  cfg.BotToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

func (n *SlackNotifier) call(ctx context.Context, method string, payload any) (*slackResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s returned error: %s", method, parsed.Error)
	}
	return &parsed, nil
}

// DirectMessage opens the IM channel with the user and posts the text.
func (n *SlackNotifier) DirectMessage(ctx context.Context, slackID, text string) error {
	opened, err := n.call(ctx, "conversations.open", map[string]any{
		"users": slackID,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to open conversation with %s: %w", slackID, err)
	}

	_, err = n.call(ctx, "chat.postMessage", map[string]any{
		"channel": opened.Channel.ID,
		"text":    text,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to message %s: %w", slackID, err)
	}

	metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	n.logger.Debug("Direct message sent", zap.String("slack_id", slackID))
	return nil
}

// NopNotifier drops every message. Used when no bot token is configured in
// development.
type NopNotifier struct{}

// DirectMessage discards the message.
func (NopNotifier) DirectMessage(ctx context.Context, slackID, text string) error {
	return nil
}
