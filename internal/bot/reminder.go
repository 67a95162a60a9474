package bot

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikanbot/internal/commands"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/reconcile"
)

const (
	attemptTimeout = 12 * time.Second
	maxAttempts    = 2
	failureBackoff = 2 * time.Minute
)

// ReminderWorker periodically posts last month's unpaid settlements.
type ReminderWorker struct {
	session   ReminderSession
	reconcile *reconcile.Service
	render    *commands.Renderer
	channelID string
	interval  time.Duration
	loc       *time.Location
	now       func() time.Time
	jitter    func() time.Duration
}

// ReminderSession is the part of *discordgo.Session used to post reminders.
type ReminderSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func NewReminderWorker(session ReminderSession, svc *reconcile.Service, render *commands.Renderer, channelID string, interval time.Duration, loc *time.Location) *ReminderWorker {
	return &ReminderWorker{
		session:   session,
		reconcile: svc,
		render:    render,
		channelID: channelID,
		interval:  interval,
		loc:       loc,
		now:       time.Now,
		jitter: func() time.Duration {
			return time.Duration(300+rand.Intn(500)) * time.Millisecond
		},
	}
}

// Reminder builds a worker posting to the configured reminder channel, or
// nil when none is configured.
func (b *Bot) Reminder(svc *reconcile.Service, render *commands.Renderer, interval time.Duration, loc *time.Location) *ReminderWorker {
	if b.opts.ReminderChannelID == "" {
		return nil
	}
	return NewReminderWorker(b.session, svc, render, b.opts.ReminderChannelID, interval, loc)
}

// Run posts a reminder every interval until ctx is cancelled. A failed send
// is retried after a shorter backoff.
func (w *ReminderWorker) Run(ctx context.Context) error {
	if w == nil || w.interval <= 0 {
		return nil
	}
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			next := w.interval
			if err := w.tick(ctx); err != nil {
				slog.Error("reminder: failed to send", "channel", w.channelID, "error", err)
				next = min(failureBackoff, w.interval)
			}
			timer.Reset(next)
		}
	}
}

// tick posts the previous month's pending settlements. Only send failures
// are returned; load failures are logged and wait for the next interval.
func (w *ReminderWorker) tick(ctx context.Context) error {
	month := ledger.PreviousMonth(w.now(), w.loc)
	pending, err := w.reconcile.PendingSettlements(ctx, month)
	if err != nil {
		slog.Error("reminder: failed to load pending settlements", "month", month, "error", err)
		return nil
	}
	msg := w.render.Reminder(ctx, month, pending)
	if msg == "" {
		return nil
	}
	if err := w.sendWithRetry(ctx, msg+"\n\n※このメッセージは自動投稿です"); err != nil {
		return err
	}
	slog.Info("reminder: posted", "month", month, "pending", len(pending))
	return nil
}

func (w *ReminderWorker) sendWithRetry(ctx context.Context, content string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(w.channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(w.jitter())
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
