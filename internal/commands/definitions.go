package commands

import "github.com/bwmarrin/discordgo"

// CommandName is the single slash command the bot registers.
const CommandName = "warikan"

func GetCommands() []*discordgo.ApplicationCommand {
	monthOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "month",
		Description: "対象の月 (YYYY-MM)",
		Required:    false,
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandName,
			Description: "割り勘の記録と精算",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "支出の記録を始めます",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "cancel",
					Description: "入力中の記録をキャンセルします",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "summary",
					Description: "月の集計を表示します (省略時は今月)",
					Options:     []*discordgo.ApplicationCommandOption{monthOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "settle-done",
					Description: "自分の精算を完了にします (省略時は先月)",
					Options:     []*discordgo.ApplicationCommandOption{monthOption},
				},
			},
		},
	}
}
