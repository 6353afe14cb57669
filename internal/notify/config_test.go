package notify

import (
	"testing"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		code   errors.ErrorCode
	}{
		{"webhook ok", func(c *Config) { c.WebhookURL, c.UserID = "http://relay", "U1" }, ""},
		{"webhook missing user", func(c *Config) { c.WebhookURL = "http://relay" }, ErrMissingConfig},
		{"webhook missing url", func(c *Config) { c.UserID = "U1" }, ErrMissingConfig},
		{"slack channel", func(c *Config) { c.Kind, c.BotToken, c.Channel = KindSlack, "xoxb", "C1" }, ""},
		{"slack dm", func(c *Config) { c.Kind, c.BotToken, c.DMEmail = KindSlack, "xoxb", "a@b.c" }, ""},
		{"slack no token", func(c *Config) { c.Kind, c.Channel = KindSlack, "C1" }, ErrMissingConfig},
		{"slack no destination", func(c *Config) { c.Kind, c.BotToken = KindSlack, "xoxb" }, ErrMissingConfig},
		{"none", func(c *Config) { c.Kind = KindNone }, ""},
		{"unknown kind", func(c *Config) { c.Kind = "pager" }, ErrInvalidKind},
		{"bad timeout", func(c *Config) { c.Kind, c.Timeout = KindNone, 0 }, ErrInvalidConfig},
		{"negative retries", func(c *Config) { c.Kind, c.Retries = KindNone, -1 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestNewSelectsGateway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KindNone
	gw, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Discard{}, gw)

	cfg = DefaultConfig()
	cfg.WebhookURL, cfg.UserID = "http://relay", "U1"
	cfg.Retries = 0
	gw, err = New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Webhook{}, gw)

	cfg.Retries = 2
	gw, err = New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &retrying{}, gw)

	cfg = DefaultConfig()
	_, err = New(cfg, logger.Nop())
	assert.Equal(t, ErrMissingConfig, errors.CodeOf(err))
}

func TestValidateFileKind(t *testing.T) {
	tests := []struct {
		kind Kind
		code errors.ErrorCode
	}{
		{KindSlack, ""},
		{KindNone, ""},
		{KindWebhook, ErrFilesUnsupported},
		{"pager", ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Kind = tt.kind
			assert.Equal(t, tt.code, errors.CodeOf(cfg.ValidateFileKind()))
		})
	}
}

func TestNewFileGatewayRejectsWebhook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebhookURL, cfg.UserID = "http://relay", "U1"

	_, err := NewFileGateway(cfg, logger.Nop())
	require.Error(t, err)
	assert.Equal(t, ErrFilesUnsupported, errors.CodeOf(err))

	cfg.Kind, cfg.BotToken, cfg.Channel = KindSlack, "xoxb", "C1"
	gw, err := NewFileGateway(cfg, logger.Nop())
	require.NoError(t, err)
	assert.True(t, SupportsFiles(gw))

	cfg = DefaultConfig()
	cfg.Kind = KindSlack
	_, err = NewFileGateway(cfg, logger.Nop())
	assert.Equal(t, ErrMissingConfig, errors.CodeOf(err))
}
