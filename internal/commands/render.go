package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikanbot/internal/conversation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/money"
	"github.com/susu3304/warikanbot/internal/reconcile"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// Discord allows five buttons per row and five rows per message.
const (
	buttonsPerRow = 5
	maxRows       = 5
)

// Names resolves participant ids to display names.
type Names interface {
	DisplayName(ctx context.Context, id string) string
}

// Renderer turns domain results into Discord messages.
type Renderer struct {
	catalog *ledger.Catalog
	names   Names
}

func NewRenderer(catalog *ledger.Catalog, names Names) *Renderer {
	return &Renderer{catalog: catalog, names: names}
}

// Message is text plus optional button rows.
type Message struct {
	Content    string
	Components []discordgo.MessageComponent
}

// Send converts m for ChannelMessageSendComplex.
func (m Message) Send() *discordgo.MessageSend {
	return &discordgo.MessageSend{Content: m.Content, Components: m.Components}
}

// Response converts m for an interaction reply.
func (m Message) Response() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: m.Content, Components: m.Components},
	}
}

var noticeText = map[conversation.Notice]string{
	conversation.NoticeAbandoned:           "記録を取りやめました。",
	conversation.NoticeCancelled:           "入力をキャンセルしました。",
	conversation.NoticeInvalidOperation:    "今はその操作はできません。",
	conversation.NoticeFlowError:           "入力の順番が違います。",
	conversation.NoticeParticipantMismatch: "選択中の人と違うボタンです。",
	conversation.NoticeUnknownParticipant:  "登録されていない人です。",
	conversation.NoticeMemoTooLong:         fmt.Sprintf("メモは%d文字以内で入力してください。", ledger.MaxMemoLength),
	conversation.NoticeInvalidAmount:       "金額は1以上の数字で入力してください (例: 1,200円)。",
}

// Reply renders a conversation reply: the notice first, then the question
// for the next step with its buttons.
func (r *Renderer) Reply(ctx context.Context, reply conversation.Reply) Message {
	var lines []string
	if reply.Notice == conversation.NoticeCommitted && reply.Entry != nil {
		lines = append(lines, "記録しました: "+r.entryLine(ctx, *reply.Entry))
	} else if text, ok := noticeText[reply.Notice]; ok {
		lines = append(lines, text)
	}

	s := reply.Session
	var components []discordgo.MessageComponent
	switch reply.Prompt {
	case conversation.PromptChooseParticipant:
		if len(reply.Participants) == 0 {
			lines = append(lines, "登録済みの参加者がいません。")
			break
		}
		lines = append(lines, "誰の支出ですか？")
		buttons := make([]discordgo.Button, 0, len(reply.Participants))
		for _, p := range reply.Participants {
			buttons = append(buttons, discordgo.Button{
				Label:    p.DisplayName,
				Style:    discordgo.PrimaryButton,
				CustomID: conversation.ChooseParticipant(p.ID).Payload(),
			})
		}
		components = rows(buttons, cancelButton())
	case conversation.PromptChooseCategory:
		lines = append(lines, fmt.Sprintf("%s さんの支出のカテゴリを選んでください。", r.names.DisplayName(ctx, s.ChosenParticipant)))
		buttons := make([]discordgo.Button, 0, len(r.catalog.Categories))
		for _, info := range r.catalog.Categories {
			buttons = append(buttons, discordgo.Button{
				Label:    r.catalog.Label(info.Key),
				Style:    discordgo.SecondaryButton,
				CustomID: conversation.ChooseCategory(info.Key, s.ChosenParticipant).Payload(),
			})
		}
		components = rows(buttons, backButton(), cancelButton())
	case conversation.PromptMemo:
		lines = append(lines, fmt.Sprintf("%s のメモを入力してください。", r.catalog.Label(s.ChosenCategory)))
		components = rows(nil, backButton(), cancelButton())
	case conversation.PromptAmount:
		lines = append(lines, "金額を入力してください。")
		components = rows(nil, backButton(), cancelButton())
	case conversation.PromptConfirm:
		lines = append(lines, "この内容で記録しますか？", r.sessionLine(ctx, s))
		components = rows([]discordgo.Button{
			{Label: "記録する", Style: discordgo.SuccessButton, CustomID: conversation.Confirm(true).Payload()},
			{Label: "やめる", Style: discordgo.DangerButton, CustomID: conversation.Confirm(false).Payload()},
		}, backButton())
	}
	return Message{Content: strings.Join(lines, "\n"), Components: components}
}

func (r *Renderer) entryLine(ctx context.Context, e ledger.Entry) string {
	line := fmt.Sprintf("%s / %s / %s", r.names.DisplayName(ctx, e.Owner), r.catalog.Label(e.Category), money.Format(e.Amount))
	if e.Memo != "" {
		line += " / " + e.Memo
	}
	return line
}

func (r *Renderer) sessionLine(ctx context.Context, s conversation.Session) string {
	var amount int64
	if s.Amount != nil {
		amount = *s.Amount
	}
	var memo string
	if s.Memo != nil {
		memo = *s.Memo
	}
	return r.entryLine(ctx, ledger.Entry{Owner: s.ChosenParticipant, Category: s.ChosenCategory, Amount: amount, Memo: memo})
}

// Summary renders a monthly summary.
func (r *Renderer) Summary(ctx context.Context, summary *reconcile.MonthlySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s の集計**\n", summary.YearMonth)
	if len(summary.Owners) == 0 {
		b.WriteString("記録はありません。")
		return b.String()
	}
	fmt.Fprintf(&b, "合計: %s\n", money.Format(summary.Total))
	for _, o := range summary.Owners {
		fmt.Fprintf(&b, "・%s: %s (%d件)\n", r.names.DisplayName(ctx, o.Owner), money.Format(o.Total), o.Count)
	}
	if len(summary.Categories) > 0 {
		b.WriteString("カテゴリ別:\n")
		for _, c := range summary.Categories {
			fmt.Fprintf(&b, "・%s: %s\n", r.catalog.Label(c.Category), money.Format(c.Amount))
		}
	}
	if d := summary.Diff; d != nil {
		switch {
		case !d.Resolved:
			fmt.Fprintf(&b, "精算: 相手が未確定です (%s さんの立替の半額 %s)\n", r.names.DisplayName(ctx, d.Payee), money.Format(d.Amount))
		case d.Amount == 0:
			b.WriteString("精算: 差額はありません\n")
		default:
			fmt.Fprintf(&b, "精算: %s さん → %s さん %s\n", r.names.DisplayName(ctx, d.Payer), r.names.DisplayName(ctx, d.Payee), money.Format(d.Amount))
		}
	}
	for _, rec := range summary.Settlements {
		fmt.Fprintf(&b, "・%s\n", r.settlementLine(ctx, rec))
	}
	for _, f := range summary.Failures {
		fmt.Fprintf(&b, "⚠ %s さんの精算記録を作成できませんでした\n", r.names.DisplayName(ctx, f.Participant))
	}
	return strings.TrimRight(b.String(), "\n")
}

var statusText = map[settlement.Status]string{
	settlement.StatusPending:   "未精算",
	settlement.StatusCompleted: "精算済み",
	settlement.StatusCancelled: "取消",
}

func (r *Renderer) settlementLine(ctx context.Context, rec settlement.Record) string {
	verb := "に支払う"
	if rec.Direction == settlement.DirectionReceive {
		verb = "から受け取る"
	}
	return fmt.Sprintf("%s さんが %s さん%s %s [%s]",
		r.names.DisplayName(ctx, rec.Participant), r.names.DisplayName(ctx, rec.Counterpart),
		verb, money.Format(rec.Amount), statusText[rec.Status])
}

// Settlement renders one settlement side.
func (r *Renderer) Settlement(ctx context.Context, rec settlement.Record) string {
	return fmt.Sprintf("%s の精算: %s", rec.YearMonth, r.settlementLine(ctx, rec))
}

// Reminder renders the pending sides of a month, or "" when none are left.
func (r *Renderer) Reminder(ctx context.Context, yearMonth string, pending []settlement.Record) string {
	var lines []string
	for _, rec := range pending {
		if rec.Direction != settlement.DirectionPay {
			continue
		}
		lines = append(lines, "・"+r.settlementLine(ctx, rec))
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("**%s の精算がまだです**\n%s\n支払ったら `/warikan settle-done month:%s` で完了にしてください。",
		yearMonth, strings.Join(lines, "\n"), yearMonth)
}

func rows(buttons []discordgo.Button, trailing ...discordgo.Button) []discordgo.MessageComponent {
	var out []discordgo.MessageComponent
	for start := 0; start < len(buttons) && len(out) < maxRows-1; start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, b)
		}
		out = append(out, row)
	}
	if len(trailing) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range trailing {
			row.Components = append(row.Components, b)
		}
		out = append(out, row)
	}
	return out
}

func backButton() discordgo.Button {
	return discordgo.Button{Label: "戻る", Style: discordgo.SecondaryButton, CustomID: conversation.Back().Payload()}
}

func cancelButton() discordgo.Button {
	return discordgo.Button{Label: "キャンセル", Style: discordgo.DangerButton, CustomID: conversation.Cancel().Payload()}
}
