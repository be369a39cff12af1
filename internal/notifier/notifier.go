// Package notifier renders a matcher verdict into a human-readable
// report and delivers it over Telegram.
package notifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/rs/zerolog"
)

const maxMessageLen = 4000 // Telegram message cap, minus formatting headroom

// Notifier delivers one rendered report per verdict, never batching across
// events.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	log     zerolog.Logger
}

// New builds a Notifier. When enabled is false, verdicts are still
// rendered and logged but never sent.
func New(token string, chatID string, enabled bool, logger zerolog.Logger) (*Notifier, error) {
	n := &Notifier{enabled: enabled, log: logger}
	if !enabled {
		return n, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
	}

	n.bot = bot
	n.chatID = id
	return n, nil
}

// Send renders v and delivers it. When notifications are disabled the
// verdict is logged but not sent; NO_CANDIDATES verdicts are
// never delivered either way.
func (n *Notifier) Send(v models.Verdict) error {
	if v.Status == models.VerdictNoCandidates {
		n.log.Info().Int64("event_id", v.EventID).Msg("no candidates, no report sent")
		return nil
	}

	report := Render(v)
	n.log.Info().Int64("event_id", v.EventID).Str("status", string(v.Status)).Msg("verdict rendered")

	if !n.enabled {
		return nil
	}

	for i, chunk := range splitOnCandidateBoundaries(report) {
		if err := n.sendWithRetry(chunk); err != nil {
			return fmt.Errorf("send report chunk %d: %w", i, err)
		}
	}
	return nil
}

// sendWithRetry delivers one chunk, retried under the same backoff policy
// as the upstream client: exhaustion is logged and
// dropped, never blocking the scheduler.
func (n *Notifier) sendWithRetry(text string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2

	op := func() error {
		msg := tgbotapi.NewMessage(n.chatID, text)
		_, err := n.bot.Send(msg)
		return err
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(b, 3)); err != nil {
		n.log.Warn().Err(err).Msg("notifier delivery exhausted retries, dropping")
		return nil
	}
	return nil
}

// Render builds the human-readable report body for a verdict.
func Render(v models.Verdict) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s vs %s (%s)\n", v.Home, v.Away, v.Competition)
	fmt.Fprintf(&sb, "status: %s\n", v.Status)
	fmt.Fprintf(&sb, "variation: Δ1=%s", v.Variation.One)
	if v.Variation.HasDraw() {
		fmt.Fprintf(&sb, " ΔX=%s", v.Variation.X)
	}
	fmt.Fprintf(&sb, " Δ2=%s\n", v.Variation.Two)

	if v.IsSuccess() {
		fmt.Fprintf(&sb, "prediction: winner=%s point_diff=%d (confidence %d%%, tier %s)\n",
			v.PredictedWinner, v.PredictedPointDiff, v.Confidence, v.ResultTier)
	}

	fmt.Fprintf(&sb, "candidates (%s):\n", v.VariationTier)
	for _, c := range v.Candidates {
		fmt.Fprintf(&sb, "- %s vs %s [%s]: Δ1=%s Δ2=%s winner=%s diff=%d symmetric=%t\n",
			c.Home, c.Away, c.Competition, c.DiffOne, c.DiffTwo, c.WinnerSide, c.PointDiff, c.Symmetric)
	}

	return sb.String()
}

// splitOnCandidateBoundaries splits a report exceeding maxMessageLen on
// line boundaries so no candidate entry is cut mid-line.
func splitOnCandidateBoundaries(report string) []string {
	if len(report) <= maxMessageLen {
		return []string{report}
	}

	lines := strings.Split(report, "\n")
	var chunks []string
	var current strings.Builder

	for _, line := range lines {
		if current.Len()+len(line)+1 > maxMessageLen && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
