package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

// Telegram rejects messages over 4096 characters; splitting a little short
// of that leaves room for the chunk counter suffix.
const maxMessageRunes = 4000

// Messages split into several chunks get a short pause between them so they
// arrive in order and under the bot rate limit.
const interChunkDelay = 1500 * time.Millisecond

// botAPI is the slice of tgbotapi.BotAPI the notifier uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendObserver counts delivery attempts; the metrics service satisfies it.
type SendObserver interface {
	ObserveTelegramSend(ok bool)
}

// Config tunes delivery.
type Config struct {
	ChatID     int64
	Retries    int
	RetryDelay time.Duration
}

// Notifier delivers report text and snapshot documents to a Telegram chat.
// Long texts are split at chunk boundaries and every chunk is retried
// independently; a chunk that exhausts its attempts fails the whole send.
type Notifier struct {
	bot      botAPI
	cfg      Config
	observer SendObserver
	logger   *zap.Logger
}

// New connects to the Telegram bot API with the given token. Observer and
// logger may be nil.
func New(token string, cfg Config, observer SendObserver, logger *zap.Logger) (*Notifier, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "telegram chat id is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotifyFailed.Code, appErrors.ErrNotifyFailed.Status, "connect telegram bot")
	}
	return newWithBot(bot, cfg, observer, logger), nil
}

func newWithBot(bot botAPI, cfg Config, observer SendObserver, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	return &Notifier{bot: bot, cfg: cfg, observer: observer, logger: logger}
}

// Send delivers the text, split into chunks when it exceeds the Telegram
// message limit.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	chunks := splitMessage(text, maxMessageRunes)
	for i, chunk := range chunks {
		if err := n.sendWithRetry(ctx, tgbotapi.NewMessage(n.cfg.ChatID, chunk)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrNotifyFailed.Code, appErrors.ErrNotifyFailed.Status,
				fmt.Sprintf("send message chunk %d/%d", i+1, len(chunks)))
		}
		if i < len(chunks)-1 {
			if err := sleepCtx(ctx, interChunkDelay); err != nil {
				return appErrors.Wrap(err, appErrors.ErrNotifyFailed.Code, appErrors.ErrNotifyFailed.Status, "send interrupted")
			}
		}
	}
	n.logger.Sugar().Infow("report delivered", "chunks", len(chunks), "chars", len([]rune(text)))
	return nil
}

// SendDocument uploads a file (the run snapshot) with a caption.
func (n *Notifier) SendDocument(ctx context.Context, filename string, payload []byte, caption string) error {
	if len(payload) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "document payload is empty")
	}
	doc := tgbotapi.NewDocument(n.cfg.ChatID, tgbotapi.FileBytes{Name: filename, Bytes: payload})
	doc.Caption = caption
	if err := n.sendWithRetry(ctx, doc); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotifyFailed.Code, appErrors.ErrNotifyFailed.Status,
			fmt.Sprintf("send document %s", filename))
	}
	n.logger.Sugar().Infow("document delivered", "file", filename, "bytes", len(payload))
	return nil
}

func (n *Notifier) sendWithRetry(ctx context.Context, msg tgbotapi.Chattable) error {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := n.bot.Send(msg)
		if n.observer != nil {
			n.observer.ObserveTelegramSend(err == nil)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		n.logger.Sugar().Warnw("telegram send failed",
			"attempt", attempt,
			"retries", n.cfg.Retries,
			"error", err,
		)
		if attempt < n.cfg.Retries {
			if err := sleepCtx(ctx, n.cfg.RetryDelay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// splitMessage cuts text into chunks of at most max runes, preferring to cut
// at a line break so a report section is not torn mid-line.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
