// Package chat wraps the Telegram bot client with the retry/backoff and
// pace-limiting rules every send/edit/reply dispatch must follow.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// ErrExhausted is returned after 3 rate-limited attempts.
var ErrExhausted = errors.New("chat: exhausted retries after repeated rate limiting")

const maxAttempts = 3

// Sent describes the result of a successful dispatch.
type Sent struct {
	MessageID int
}

// Sender is the minimal Telegram surface the client needs; satisfied by
// *tgbotapi.BotAPI and by a fake in tests.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client dispatches text messages with retry-on-rate-limit and a
// defense-in-depth pace limiter in front of the retry loop.
type Client struct {
	sender  Sender
	limiter *rate.Limiter
}

// New wraps a Sender. ratePerSec/burst configure the pace limiter; pass 0
// for ratePerSec to disable pacing (rely solely on the publish scheduler's
// DB-evaluated gates).
func New(sender Sender, ratePerSec float64, burst int) *Client {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &Client{sender: sender, limiter: limiter}
}

// SendText sends chat text with parse mode, up to 3 attempts. On a
// RateLimited response, sleeps retry_after + U(0, 0.3*retry_after) and
// retries. Other platform errors bubble up without further retry.
func (c *Client) SendText(ctx context.Context, chatID int64, text, parseMode string, replyTo int, disablePreview bool) (*Sent, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = disablePreview
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	return c.dispatch(ctx, msg)
}

// EditText edits a previously sent message in place.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text, parseMode string) (*Sent, error) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode
	return c.dispatch(ctx, edit)
}

// ReplyText sends a reply-thread message anchored on an existing message.
func (c *Client) ReplyText(ctx context.Context, chatID int64, replyTo int, text, parseMode string) (*Sent, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.ReplyToMessageID = replyTo
	return c.dispatch(ctx, msg)
}

func (c *Client) dispatch(ctx context.Context, chattable tgbotapi.Chattable) (*Sent, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sent, err := c.sender.Send(chattable)
		if err == nil {
			return &Sent{MessageID: sent.MessageID}, nil
		}

		retryAfter, isRateLimited := rateLimitDelay(err)
		if !isRateLimited {
			return nil, fmt.Errorf("chat: send failed: %w", err)
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		jitter := time.Duration(rand.Float64() * 0.3 * float64(retryAfter))
		sleep := retryAfter + jitter
		slog.Warn("chat send rate limited, retrying", "attempt", attempt, "sleep", sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// rateLimitDelay inspects a tgbotapi error for Telegram's 429 rate-limit
// response; retry_after may legitimately be zero (retry immediately).
func rateLimitDelay(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second, true
	}
	return 0, false
}
