package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
)

// ErrNoWebhookURL is returned when no webhook URL is configured.
var ErrNoWebhookURL = errors.New("no webhook URL configured")

// GetWebhookURL returns the notification webhook URL.
// It checks in order: environment variable, config file.
func GetWebhookURL(cfg *Config) (string, error) {
	if u := os.Getenv("WEBHOOK_URL"); u != "" {
		return u, nil
	}

	if cfg != nil && cfg.Notify.WebhookURL != "" {
		u := os.ExpandEnv(cfg.Notify.WebhookURL)
		if u != "" && !strings.HasPrefix(u, "${") {
			return u, nil
		}
	}

	return "", ErrNoWebhookURL
}

// ValidateWebhookURL checks that u is an absolute http(s) URL.
// It does not contact the endpoint.
func ValidateWebhookURL(u string) error {
	if u == "" {
		return ErrNoWebhookURL
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return errors.New("invalid webhook URL: " + err.Error())
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("invalid webhook URL: expected http or https scheme")
	}
	if parsed.Host == "" {
		return errors.New("invalid webhook URL: missing host")
	}

	return nil
}

// MaskWebhookURL returns a version of the URL safe for display.
// The scheme and host are kept; the path, which carries the secret, is masked
// except for its last 4 characters.
func MaskWebhookURL(u string) string {
	if u == "" {
		return "(not set)"
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "***"
	}

	path := parsed.EscapedPath()
	if len(path) <= 8 {
		return parsed.Scheme + "://" + parsed.Host + "/***"
	}
	return parsed.Scheme + "://" + parsed.Host + "/..." + path[len(path)-4:]
}

// KeySource represents where a secret was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetWebhookURLSource returns where the webhook URL was sourced from.
func GetWebhookURLSource(cfg *Config) KeySource {
	if os.Getenv("WEBHOOK_URL") != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Notify.WebhookURL != "" {
		u := os.ExpandEnv(cfg.Notify.WebhookURL)
		if u != "" && !strings.HasPrefix(u, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
