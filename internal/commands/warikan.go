package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/conversation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/participant"
	"github.com/susu3304/warikanbot/internal/reconcile"
)

// Responder is the part of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Members reports whether an id belongs to a registered participant.
type Members interface {
	Get(ctx context.Context, id string) (participant.Participant, bool, error)
}

const failureText = "エラーが発生しました。時間をおいてもう一度お試しください。"

// Handler answers chat messages, button clicks and /warikan.
type Handler struct {
	engine      *conversation.Engine
	reconcile   *reconcile.Service
	members     Members
	render      *Renderer
	loc         *time.Location
	now         func() time.Time
	registerURL string
}

func NewHandler(engine *conversation.Engine, svc *reconcile.Service, members Members, render *Renderer, loc *time.Location, registerURL string) *Handler {
	return &Handler{
		engine:      engine,
		reconcile:   svc,
		members:     members,
		render:      render,
		loc:         loc,
		now:         time.Now,
		registerURL: registerURL,
	}
}

// RegistrationHint is shown to users who have not accepted an invitation.
func (h *Handler) RegistrationHint() string {
	return fmt.Sprintf("まだ参加登録されていません。招待リンクから登録してください: %s", h.registerURL)
}

// IsParticipant reports whether userID may use the bot.
func (h *Handler) IsParticipant(ctx context.Context, userID string) (bool, error) {
	_, ok, err := h.members.Get(ctx, userID)
	return ok, err
}

// HandleText runs a chat message through the conversation. ok is false when
// the message is not part of a flow and should be left unanswered.
func (h *Handler) HandleText(ctx context.Context, userID, text string) (msg Message, ok bool, err error) {
	trig := conversation.ParseText(text)
	reply, err := h.engine.Handle(ctx, userID, trig)
	if err != nil {
		return Message{}, false, err
	}
	if trig.Kind == conversation.TriggerText && reply.Notice == conversation.NoticeFlowError && reply.Prompt == conversation.PromptNone {
		// Ordinary chatter while idle.
		return Message{}, false, nil
	}
	return h.render.Reply(ctx, reply), true, nil
}

// HandleComponent handles a button click carrying an action payload.
func (h *Handler) HandleComponent(ctx context.Context, s Responder, i *discordgo.InteractionCreate) {
	user := InteractionUser(i)
	if user == nil {
		return
	}
	if !h.admit(ctx, s, i, user.ID) {
		return
	}

	trig, err := conversation.ParseAction(i.MessageComponentData().CustomID)
	if err != nil {
		slog.Warn("ignoring unknown button", "custom_id", i.MessageComponentData().CustomID, "error", err)
		respondEphemeral(s, i, "このボタンは使えません。")
		return
	}
	h.converse(ctx, s, i, user.ID, trig)
}

// HandleCommand handles /warikan and its subcommands.
func (h *Handler) HandleCommand(ctx context.Context, s Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != CommandName {
		return
	}
	user := InteractionUser(i)
	if user == nil {
		return
	}
	if len(data.Options) == 0 {
		respondEphemeral(s, i, "サブコマンドが指定されていません")
		return
	}
	if !h.admit(ctx, s, i, user.ID) {
		return
	}

	sub := data.Options[0]
	switch sub.Name {
	case "start":
		h.converse(ctx, s, i, user.ID, conversation.Start())
	case "cancel":
		h.converse(ctx, s, i, user.ID, conversation.Cancel())
	case "summary":
		month, ok := h.month(s, i, sub, ledger.CurrentMonth(h.now(), h.loc))
		if !ok {
			return
		}
		summary, err := h.reconcile.GenerateMonthlySummary(ctx, month)
		if err != nil {
			h.fail(s, i, "summary", err)
			return
		}
		respondText(s, i, h.render.Summary(ctx, summary))
	case "settle-done":
		month, ok := h.month(s, i, sub, ledger.PreviousMonth(h.now(), h.loc))
		if !ok {
			return
		}
		rec, err := h.reconcile.CompleteSettlement(ctx, user.ID, month, user.ID)
		switch {
		case err == nil:
			respondText(s, i, "精算を完了にしました。\n"+h.render.Settlement(ctx, rec))
		case apperrors.Is(err, apperrors.KindNotFound):
			respondEphemeral(s, i, fmt.Sprintf("%s の精算記録はありません。", month))
		case apperrors.Is(err, apperrors.KindInvalidTransition):
			respondEphemeral(s, i, "取り消された精算は完了にできません。")
		default:
			h.fail(s, i, "settle-done", err)
		}
	default:
		respondEphemeral(s, i, "未知のサブコマンドです")
	}
}

// admit answers non-participants with the registration hint.
func (h *Handler) admit(ctx context.Context, s Responder, i *discordgo.InteractionCreate, userID string) bool {
	ok, err := h.IsParticipant(ctx, userID)
	if err != nil {
		h.fail(s, i, "directory", err)
		return false
	}
	if !ok {
		respondEphemeral(s, i, h.RegistrationHint())
	}
	return ok
}

func (h *Handler) converse(ctx context.Context, s Responder, i *discordgo.InteractionCreate, userID string, trig conversation.Trigger) {
	reply, err := h.engine.Handle(ctx, userID, trig)
	if err != nil {
		h.fail(s, i, trig.Kind.String(), err)
		return
	}
	respond(s, i, h.render.Reply(ctx, reply).Response())
}

func (h *Handler) month(s Responder, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption, fallback string) (string, bool) {
	opt := getStringOption(sub.Options, "month")
	if opt == nil || *opt == "" {
		return fallback, true
	}
	month, err := ledger.ParseYearMonth(*opt)
	if err != nil {
		respondEphemeral(s, i, "月は YYYY-MM の形式で指定してください。")
		return "", false
	}
	return month, true
}

func (h *Handler) fail(s Responder, i *discordgo.InteractionCreate, op string, err error) {
	slog.Error("interaction failed", "op", op, "kind", apperrors.KindOf(err), "error", err)
	respondEphemeral(s, i, failureText)
}
