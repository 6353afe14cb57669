package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/slack-go/slack"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Slack posts through the Slack Web API with a bot token. The destination is
// the configured channel, or a DM with the user owning DMEmail.
type Slack struct {
	api    *slack.Client
	cfg    Config
	logger logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	channel string
}

func NewSlack(cfg Config, log logger.Logger) *Slack {
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimSuffix(cfg.APIURL, "/")+"/"))
	}

	return &Slack{
		api:     slack.New(cfg.BotToken, opts...),
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
		channel: cfg.Channel,
	}
}

// SendText posts msg. Destination resolution and delivery share one
// Timeout budget.
func (s *Slack) SendText(ctx context.Context, msg string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	channel, err := s.destination(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("gateway", "slack").Msg("Failed to resolve destination")
		return false
	}

	_, ts, err := s.api.PostMessageContext(ctx, channel, slack.MsgOptionText(msg, false))
	if err != nil {
		s.logger.Error().Err(err).Str("gateway", "slack").Str("channel", channel).Msg("Failed to send message")
		return false
	}

	s.logger.Info().Str("gateway", "slack").Str("ts", ts).Msg("Message sent")

	return true
}

func (s *Slack) SendFile(ctx context.Context, path, title, caption string) bool {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error().Err(err).Str("gateway", "slack").Str("path", path).Msg("File to upload not found")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	channel, err := s.destination(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("gateway", "slack").Msg("Failed to resolve destination")
		return false
	}

	now := s.now()
	_, err = s.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		File:           path,
		FileSize:       int(info.Size()),
		Filename:       filepath.Base(path),
		Title:          RenderTemplate(title, now),
		InitialComment: RenderTemplate(caption, now),
		Channel:        channel,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("gateway", "slack").Str("path", path).Msg("Failed to upload file")
		return false
	}

	s.logger.Info().Str("gateway", "slack").Str("file", filepath.Base(path)).Msg("File sent")

	return true
}

func (s *Slack) SupportsFiles() bool { return true }

// RenderTemplate fills the {timestamp}, {date} and {time} placeholders.
func RenderTemplate(text string, now time.Time) string {
	return strings.NewReplacer(
		"{timestamp}", now.Format("2006-01-02 15:04:05"),
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15:04:05"),
	).Replace(text)
}

func (s *Slack) destination(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != "" {
		return s.channel, nil
	}

	userID, err := s.userID(ctx)
	if err != nil {
		return "", err
	}

	ch, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", errors.New().Wrap(ErrSendFailed, err)
	}

	s.channel = ch.ID

	return s.channel, nil
}

// userID resolves DMEmail through the on-disk cache, falling back to the API.
func (s *Slack) userID(ctx context.Context) (string, error) {
	cachePath := s.cachePath()

	if raw, err := os.ReadFile(cachePath); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			s.logger.Debug().Str("user_id", id).Msg("Loaded Slack user id from cache")
			return id, nil
		}
	}

	id, err := s.lookupUser(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), defaultDirPerm); err == nil {
		err = os.WriteFile(cachePath, []byte(id), defaultFilePerm)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", cachePath).Msg("Failed to cache Slack user id")
		}
	}

	return id, nil
}

// lookupUser retries transport failures only; API errors are final.
func (s *Slack) lookupUser(ctx context.Context) (string, error) {
	errFactory := errors.New()

	attempts := max(s.cfg.LookupRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errFactory.Wrap(ErrUserLookup, err)
		}

		user, err := s.api.GetUserByEmailContext(ctx, s.cfg.DMEmail)
		if err == nil {
			return user.ID, nil
		}

		var apiErr slack.SlackErrorResponse
		if errors.As(err, &apiErr) {
			return "", errFactory.Wrap(ErrUserLookup, err)
		}
		lastErr = err

		s.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("Slack user lookup failed, retrying")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", errFactory.Wrap(ErrUserLookup, ctx.Err())
		case <-time.After(s.cfg.LookupWait):
		}
	}

	return "", errFactory.Wrap(ErrUserLookup, lastErr)
}

func (s *Slack) cachePath() string {
	sum := sha256.Sum256([]byte(s.cfg.DMEmail))
	return filepath.Join(s.cfg.CacheDir, "user_id_"+hex.EncodeToString(sum[:])+".txt")
}
