package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikanbot/internal/commands"
)

const handlerTimeout = 10 * time.Second

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	slog.Info("connected to Discord", "user", event.User.Username)

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			slog.Error("failed to register commands", "guild", guild.ID, "error", err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	slog.Info("guild available, ensuring commands", "guild", event.ID, "name", event.Name)
	if err := b.registerGuildCommands(event.ID); err != nil {
		slog.Error("failed to register commands", "guild", event.ID, "error", err)
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	cmds := commands.GetCommands()
	// Delete existing commands and register new ones
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, cmds)
	if err != nil {
		return err
	}

	slog.Info("registered application commands", "guild", guildID)
	return nil
}

// listensTo reports whether plain messages in m's channel drive the flow.
func (b *Bot) listensTo(m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return true
	}
	return b.opts.ChannelID != "" && m.ChannelID == b.opts.ChannelID
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !b.listensTo(m) {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ok, err := b.handler.IsParticipant(ctx, m.Author.ID)
	if err != nil {
		slog.Error("failed to check participant", "user", m.Author.ID, "error", err)
		return
	}
	if !ok {
		// Only answer strangers who address the bot directly.
		if m.GuildID == "" {
			b.send(s, m.ChannelID, commands.Message{Content: b.handler.RegistrationHint()})
		}
		return
	}

	msg, reply, err := b.handler.HandleText(ctx, m.Author.ID, content)
	if err != nil {
		slog.Error("failed to handle message", "user", m.Author.ID, "error", err)
		return
	}
	if reply {
		b.send(s, m.ChannelID, msg)
	}
}

func (b *Bot) send(s *discordgo.Session, channelID string, msg commands.Message) {
	if _, err := s.ChannelMessageSendComplex(channelID, msg.Send()); err != nil {
		slog.Error("failed to send message", "channel", channelID, "error", err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handler.HandleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handler.HandleComponent(ctx, s, i)
	}
}
