package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4096

// WebhookError is a non-success response from the webhook.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// TeamsConfig configures a Teams notifier.
type TeamsConfig struct {
	WebhookURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Teams posts an Adaptive Card to an incoming webhook.
type Teams struct {
	webhookURL string
	httpClient *http.Client
}

// NewTeams creates a Teams notifier.
func NewTeams(cfg TeamsConfig) (*Teams, error) {
	if cfg.WebhookURL == "" {
		return nil, &models.ConfigurationError{Reason: "webhook URL is required"}
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("invalid webhook URL %q", cfg.WebhookURL)}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Teams{webhookURL: cfg.WebhookURL, httpClient: httpClient}, nil
}

// Name identifies the notifier in publication errors.
func (t *Teams) Name() string { return "teams" }

// Send posts the allocation card. 200 and 202 are success.
func (t *Teams) Send(ctx context.Context, rows []models.Row, dateLabel string) error {
	if err := t.doRequest(ctx, BuildCard(rows, dateLabel)); err != nil {
		return err
	}
	log.Printf("[notify] posted %d rows to teams webhook", len(rows))
	return nil
}

func (t *Teams) doRequest(ctx context.Context, requestBody any) error {
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("notify: failed to encode card: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("notify: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := t.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("notify: webhook request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("notify: failed to read response body: %w", err)
	}

	switch response.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return &WebhookError{StatusCode: response.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
}
