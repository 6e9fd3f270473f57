// Package casino — handlers.go обрабатывает команды !ставка и !джекпот.
package casino

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/currency-bot/internal/common"
)

// Handler обрабатывает команды казино.
type Handler struct {
	service *Service
	bot     common.Sender
}

// NewHandler создаёт обработчик казино.
func NewHandler(service *Service, bot common.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleGamble обрабатывает !ставка <валюта> <сумма>.
//
// Формат ответа:
//
//	🎲 Выигрыш! +20 🪙 Gold
//	📊 Баланс: 🪙 60 Gold
//	💰 ДЖЕКПОТ! Забираешь: 🪙 35 Gold, 💎 4 Gems
func (h *Handler) HandleGamble(ctx context.Context, inv *common.Invocation) {
	if len(inv.Args) < 2 {
		h.sendMessage(inv.ChatID, "Использование: !ставка <валюта> <сумма>")
		return
	}
	amount, err := common.ParseAmount(inv.Args[1])
	if err != nil {
		h.sendMessage(inv.ChatID, common.ErrorText(err))
		return
	}

	res, err := h.service.Gamble(ctx, common.Request{
		CommunityID: inv.ChatID,
		UserID:      inv.UserID,
		Currency:    inv.Args[0],
		Amount:      amount,
	})
	if res == nil {
		h.sendMessage(inv.ChatID, common.ErrorText(err))
		return
	}

	var sb strings.Builder
	if res.Won {
		sb.WriteString(fmt.Sprintf("🎲 Выигрыш! %s %s %s\n", common.FormatSigned(res.Bet), res.Currency.Emoji, res.Currency.Name))
	} else {
		sb.WriteString(fmt.Sprintf("🎲 Проигрыш. %s %s %s ушли в джекпот\n", common.FormatNumber(res.Bet), res.Currency.Emoji, res.Currency.Name))
	}
	sb.WriteString(fmt.Sprintf("📊 Баланс: %s", common.FormatAmount(res.Currency.Emoji, res.Balance, res.Currency.Name)))
	if res.JackpotTriggered() {
		parts := make([]string, 0, len(res.Jackpot))
		for _, p := range res.Jackpot {
			parts = append(parts, common.FormatAmount(p.Emoji, p.Amount, p.Currency))
		}
		sb.WriteString("\n💰 ДЖЕКПОТ! Забираешь: " + strings.Join(parts, ", "))
	}

	h.sendMessage(inv.ChatID, common.WithWarning(sb.String(), err))
}

// HandleJackpots обрабатывает !джекпот.
func (h *Handler) HandleJackpots(_ context.Context, inv *common.Invocation) {
	pots := h.service.Jackpots(inv.ChatID)
	if len(pots) == 0 {
		h.sendMessage(inv.ChatID, "💰 Джекпот пуст")
		return
	}
	var sb strings.Builder
	sb.WriteString("💰 Джекпот чата:\n\n")
	for _, p := range pots {
		sb.WriteString(common.FormatAmount(p.Emoji, p.Amount, p.Currency) + "\n")
	}
	h.sendMessage(inv.ChatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) sendMessage(chatID int64, text string) {
	common.SendText(h.bot, chatID, text)
}
