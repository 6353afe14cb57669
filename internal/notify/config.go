package notify

import (
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
)

// Kind selects the Gateway implementation.
type Kind string

const (
	KindWebhook Kind = "webhook"
	KindSlack   Kind = "slack"
	KindNone    Kind = "none"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetries       = 1
	defaultRetryBackoff  = 2 * time.Second
	defaultLookupRetries = 10
	defaultLookupWait    = 15 * time.Second
	defaultCacheDir      = "cache"
)

type Config struct {
	Kind    Kind
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed send.
	Retries      int
	RetryBackoff time.Duration

	// Webhook relay
	WebhookURL string
	UserID     string

	// Slack bot
	BotToken      string
	Channel       string
	DMEmail       string
	CacheDir      string
	LookupRetries int
	LookupWait    time.Duration
	// APIURL overrides the Slack Web API base URL.
	APIURL string
}

func DefaultConfig() Config {
	return Config{
		Kind:          KindWebhook,
		Timeout:       defaultTimeout,
		Retries:       defaultRetries,
		RetryBackoff:  defaultRetryBackoff,
		CacheDir:      defaultCacheDir,
		LookupRetries: defaultLookupRetries,
		LookupWait:    defaultLookupWait,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Timeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value time.Duration
		}{
			Field: "notify_timeout",
			Value: c.Timeout,
		})
	}
	if c.Retries < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "notify_retries",
			Value: c.Retries,
		})
	}

	switch c.Kind {
	case KindWebhook:
		if c.WebhookURL == "" || c.UserID == "" {
			return errFactory.WithMessage(ErrMissingConfig, "GAS_WEBHOOK and SLACK_USER_ID must be set")
		}
	case KindSlack:
		if c.BotToken == "" {
			return errFactory.WithMessage(ErrMissingConfig, "SLACK_BOT_TOKEN must be set")
		}
		if c.Channel == "" && c.DMEmail == "" {
			return errFactory.WithMessage(ErrMissingConfig, "SLACK_CHANNEL or SLACK_DM_EMAIL must be set")
		}
	case KindNone:
	default:
		return errFactory.WithData(ErrInvalidKind, c.Kind)
	}

	return nil
}

// ValidateFileKind checks that Kind can deliver files. Credentials are left
// to Validate.
func (c Config) ValidateFileKind() error {
	errFactory := errors.New()

	switch c.Kind {
	case KindSlack, KindNone:
		return nil
	case KindWebhook:
		return errFactory.WithData(ErrFilesUnsupported, c.Kind)
	default:
		return errFactory.WithData(ErrInvalidKind, c.Kind)
	}
}
