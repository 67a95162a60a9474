package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikanbot/internal/commands"
)

// Options configure where the bot listens and posts.
type Options struct {
	// ChannelID is the guild channel where plain messages drive the
	// conversation. DMs are always accepted.
	ChannelID string
	// ReminderChannelID receives settlement reminders; empty disables them.
	ReminderChannelID string
}

type Bot struct {
	session *discordgo.Session
	handler *commands.Handler
	opts    Options
}

func New(token string, handler *commands.Handler, opts Options) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		handler: handler,
		opts:    opts,
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return bot, nil
}

// Session exposes the underlying connection for workers that post messages.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Run connects and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	slog.Info("Discord bot is running")

	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}
