package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

type stubBot struct {
	sent     []tgbotapi.Chattable
	failures int
}

func (s *stubBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.failures > 0 {
		s.failures--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

type countingObserver struct {
	ok, failed int
}

func (c *countingObserver) ObserveTelegramSend(ok bool) {
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

func newNotifierForTest(bot *stubBot, observer SendObserver) *Notifier {
	return newWithBot(bot, Config{
		ChatID:     42,
		Retries:    3,
		RetryDelay: time.Millisecond,
	}, observer, zap.NewNop())
}

func TestSendSingleMessage(t *testing.T) {
	bot := &stubBot{}
	n := newNotifierForTest(bot, nil)

	require.NoError(t, n.Send(context.Background(), "2025-07-14 clock-in check summary"))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, int64(42), msg.ChatID)
	require.Equal(t, "2025-07-14 clock-in check summary", msg.Text)
}

func TestSendRetriesTransientFailure(t *testing.T) {
	bot := &stubBot{failures: 2}
	observer := &countingObserver{}
	n := newNotifierForTest(bot, observer)

	require.NoError(t, n.Send(context.Background(), "report"))
	require.Len(t, bot.sent, 1)
	require.Equal(t, 2, observer.failed)
	require.Equal(t, 1, observer.ok)
}

func TestSendExhaustsRetries(t *testing.T) {
	bot := &stubBot{failures: 10}
	n := newNotifierForTest(bot, nil)

	err := n.Send(context.Background(), "report")
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrNotifyFailed))
	require.Empty(t, bot.sent)
}

func TestSendSplitsLongMessage(t *testing.T) {
	bot := &stubBot{}
	n := newNotifierForTest(bot, nil)

	line := strings.Repeat("가나다라마바사아", 10) + "\n" // 81 runes per line
	long := strings.Repeat(line, 120)                // ~9720 runes

	require.NoError(t, n.Send(context.Background(), long))
	require.Len(t, bot.sent, 3)

	var rebuilt strings.Builder
	for _, c := range bot.sent {
		msg := c.(tgbotapi.MessageConfig)
		require.LessOrEqual(t, len([]rune(msg.Text)), maxMessageRunes)
		rebuilt.WriteString(msg.Text)
	}
	require.Equal(t, long, rebuilt.String())
}

func TestSendEmptyTextIsNoop(t *testing.T) {
	bot := &stubBot{}
	n := newNotifierForTest(bot, nil)

	require.NoError(t, n.Send(context.Background(), ""))
	require.Empty(t, bot.sent)
}

func TestSendHonorsCancelledContext(t *testing.T) {
	bot := &stubBot{failures: 10}
	n := newNotifierForTest(bot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Send(ctx, "report")
	require.Error(t, err)
	require.Empty(t, bot.sent)
}

func TestSendDocument(t *testing.T) {
	bot := &stubBot{}
	n := newNotifierForTest(bot, nil)

	payload := []byte("PK\x03\x04snapshot")
	err := n.SendDocument(context.Background(), "attendance_20250714.xlsx", payload, "2025-07-14")
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)

	doc, ok := bot.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	require.Equal(t, "2025-07-14", doc.Caption)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	require.Equal(t, "attendance_20250714.xlsx", file.Name)
	require.Equal(t, payload, file.Bytes)
}

func TestSendDocumentRejectsEmptyPayload(t *testing.T) {
	bot := &stubBot{}
	n := newNotifierForTest(bot, nil)

	err := n.SendDocument(context.Background(), "empty.xlsx", nil, "")
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSplitMessagePrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("x", 3990) + "\n" + strings.Repeat("y", 100)
	chunks := splitMessage(text, maxMessageRunes)

	require.Len(t, chunks, 2)
	require.True(t, strings.HasSuffix(chunks[0], "\n"))
	require.Equal(t, strings.Repeat("y", 100), chunks[1])
}

func TestSplitMessageShortTextUntouched(t *testing.T) {
	chunks := splitMessage("short", maxMessageRunes)
	require.Equal(t, []string{"short"}, chunks)
}
