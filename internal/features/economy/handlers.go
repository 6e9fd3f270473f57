// Package economy — handlers.go обрабатывает команды !баланс, !валюты, !топ,
// !домашка, !консультация и !отсыпать.
package economy

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
)

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service
	bot     common.Sender
	dir     common.Directory
}

// NewHandler создаёт обработчик экономики.
func NewHandler(service *Service, bot common.Sender, dir common.Directory) *Handler {
	return &Handler{service: service, bot: bot, dir: dir}
}

var earnTitles = map[ledger.Action]string{
	ledger.ActionHomework:    "📚 Домашка сдана!",
	ledger.ActionOfficeHours: "🧑‍🏫 Консультация пройдена!",
}

// HandleEarn обрабатывает !домашка и !консультация.
//
// Формат ответа:
//
//	📚 Домашка сдана!
//	+7 🪙 Gold (баланс: 🪙 12 Gold)
//	⏱ Следующая попытка через 6:00:00
func (h *Handler) HandleEarn(ctx context.Context, inv *common.Invocation, action ledger.Action) {
	res, err := h.service.Earn(ctx, common.Request{CommunityID: inv.ChatID, UserID: inv.UserID}, action)
	if res == nil {
		h.reply(inv, common.ErrorText(err))
		return
	}

	text := fmt.Sprintf("%s\n%s %s %s (баланс: %s)\n⏱ Следующая попытка через %s",
		earnTitles[action],
		common.FormatSigned(res.Amount), res.Currency.Emoji, res.Currency.Name,
		common.FormatAmount(res.Currency.Emoji, res.Balance, res.Currency.Name),
		common.FormatDuration(res.Next.Sub(h.service.now())),
	)
	h.reply(inv, common.WithWarning(text, err))
}

// HandleGive обрабатывает !отсыпать @user <валюта> <сумма> (или ответом на сообщение).
func (h *Handler) HandleGive(ctx context.Context, inv *common.Invocation) {
	target, args, err := h.dir.ResolveTarget(ctx, inv)
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	if len(args) < 2 {
		h.reply(inv, "Использование: !отсыпать @user <валюта> <сумма>")
		return
	}
	amount, err := common.ParseAmount(args[1])
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}

	res, err := h.service.Give(ctx, common.Request{
		CommunityID:  inv.ChatID,
		UserID:       inv.UserID,
		TargetUserID: target.UserID,
		TargetIsBot:  target.IsBot,
		Currency:     args[0],
		Amount:       amount,
	})
	if res == nil {
		h.reply(inv, common.ErrorText(err))
		return
	}

	text := fmt.Sprintf("✅ %s → %s: %s",
		h.dir.DisplayName(ctx, inv.UserID),
		h.dir.DisplayName(ctx, target.UserID),
		common.FormatAmount(res.Currency.Emoji, res.Amount, res.Currency.Name),
	)
	h.reply(inv, common.WithWarning(text, err))
}

// HandleBalance обрабатывает !баланс [@user].
func (h *Handler) HandleBalance(ctx context.Context, inv *common.Invocation) {
	req := common.Request{CommunityID: inv.ChatID, UserID: inv.UserID}
	if inv.ReplyTo != nil || len(inv.Args) > 0 {
		target, _, err := h.dir.ResolveTarget(ctx, inv)
		if err != nil {
			h.reply(inv, common.ErrorText(err))
			return
		}
		req.TargetUserID = target.UserID
	}

	view, err := h.service.Balances(req)
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💼 Баланс %s\n\n", h.dir.DisplayName(ctx, view.UserID)))
	for _, hld := range view.Holdings {
		sb.WriteString(common.FormatAmount(hld.Emoji, hld.Amount, hld.Currency) + "\n")
	}
	h.reply(inv, strings.TrimRight(sb.String(), "\n"))
}

// HandleCurrencies обрабатывает !валюты.
func (h *Handler) HandleCurrencies(_ context.Context, inv *common.Invocation) {
	list, err := h.service.Currencies(inv.ChatID)
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	var sb strings.Builder
	sb.WriteString("💱 Валюты чата:\n\n")
	for _, c := range list {
		sb.WriteString(fmt.Sprintf("%s %s\n", c.Emoji, c.Name))
	}
	h.reply(inv, strings.TrimRight(sb.String(), "\n"))
}

// HandleLeaderboard обрабатывает !топ <валюта>.
//
// Формат ответа:
//
//	🏆 Топ Gold
//	1. @alice — 🪙 120 Gold
//	2. @bob — 🪙 80 Gold
func (h *Handler) HandleLeaderboard(ctx context.Context, inv *common.Invocation) {
	if len(inv.Args) == 0 {
		h.reply(inv, "Использование: !топ <валюта>")
		return
	}
	lb, err := h.service.Leaderboard(inv.ChatID, inv.Args[0])
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	if len(lb.Holders) == 0 {
		h.reply(inv, fmt.Sprintf("Ни у кого ещё нет %s %s", lb.Currency.Emoji, lb.Currency.Name))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏆 Топ %s\n\n", lb.Currency.Name))
	for i, holder := range lb.Holders {
		sb.WriteString(fmt.Sprintf("%d. %s — %s\n", i+1,
			h.dir.DisplayName(ctx, holder.UserID),
			common.FormatAmount(lb.Currency.Emoji, holder.Amount, lb.Currency.Name)))
	}
	h.reply(inv, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) reply(inv *common.Invocation, text string) {
	common.SendText(h.bot, inv.ChatID, text)
}
