package trade

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
)

// CallbackPrefix — префикс callback data кнопок обмена.
const CallbackPrefix = "trade"

// Действия кнопок
const (
	callbackConfirm = "ok"
	callbackCancel  = "no"
)

// Handler обрабатывает !обмен и кнопки подтверждения.
type Handler struct {
	manager *Manager
	bot     common.Sender
	dir     common.Directory
}

// NewHandler создаёт обработчик обменов.
func NewHandler(manager *Manager, bot common.Sender, dir common.Directory) *Handler {
	return &Handler{manager: manager, bot: bot, dir: dir}
}

// HandleTrade обрабатывает !обмен @user <сколько даю> <валюта> <сколько хочу> <валюта>.
func (h *Handler) HandleTrade(ctx context.Context, inv *common.Invocation) {
	target, args, err := h.dir.ResolveTarget(ctx, inv)
	if err != nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}
	if len(args) < 4 {
		common.SendText(h.bot, inv.ChatID, "Использование: !обмен @user <сколько даю> <валюта> <сколько хочу> <валюта>")
		return
	}
	give, err := common.ParseAmount(args[0])
	if err != nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}
	want, err := common.ParseAmount(args[2])
	if err != nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}

	p, err := h.manager.Propose(ProposeRequest{
		CommunityID:  inv.ChatID,
		Initiator:    inv.UserID,
		Counterparty: target.UserID,
		GiveCurrency: args[1],
		GiveAmount:   give,
		WantCurrency: args[3],
		WantAmount:   want,
	})
	if err != nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}

	msg := tgbotapi.NewMessage(inv.ChatID, h.render(ctx, p))
	msg.ReplyMarkup = keyboard(p.ID)
	sent, err := h.bot.Send(msg)
	if err != nil {
		log.WithError(err).WithField("trade_id", p.ID).Error("Ошибка отправки предложения обмена")
		return
	}
	h.manager.SetMessage(p.ID, sent.MessageID)
}

// HandleCallback обрабатывает нажатие кнопки. action и id уже выделены из data.
func (h *Handler) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, action, id string) {
	var (
		p   *Proposal
		err error
	)
	switch action {
	case callbackConfirm:
		p, err = h.manager.Confirm(ctx, id, cb.From.ID)
	case callbackCancel:
		p, err = h.manager.Cancel(id, cb.From.ID)
	default:
		return
	}
	if p == nil {
		h.answer(cb, common.ErrorText(err))
		return
	}

	text := h.render(ctx, p)
	if errors.Is(err, common.ErrProposalExpired) {
		h.answer(cb, common.ErrorText(err))
	} else {
		h.answer(cb, "👌")
		text = common.WithWarning(text, err)
	}
	if cb.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	if p.Status == StatusPending {
		kb := keyboard(p.ID)
		edit.ReplyMarkup = &kb
	}
	if _, err := h.bot.Send(edit); err != nil {
		log.WithError(err).WithField("trade_id", p.ID).Warn("Не удалось обновить сообщение обмена")
	}
}

// NotifyExpired обновляет сообщения просроченных предложений.
func (h *Handler) NotifyExpired(ctx context.Context, expired []*Proposal) {
	for _, p := range expired {
		if p.MessageID == 0 {
			continue
		}
		edit := tgbotapi.NewEditMessageText(p.CommunityID, p.MessageID, h.render(ctx, p))
		if _, err := h.bot.Send(edit); err != nil {
			log.WithError(err).WithField("trade_id", p.ID).Warn("Не удалось обновить сообщение обмена")
		}
	}
}

func (h *Handler) render(ctx context.Context, p *Proposal) string {
	t := p.Terms
	text := fmt.Sprintf("🤝 Обмен: %s отдаёт %s, %s отдаёт %s\n",
		h.dir.DisplayName(ctx, p.Initiator), common.FormatAmount(t.GiveEmoji, t.GiveAmount, t.GiveCurrency),
		h.dir.DisplayName(ctx, p.Counterparty), common.FormatAmount(t.WantEmoji, t.WantAmount, t.WantCurrency))

	switch p.Status {
	case StatusPending:
		text += fmt.Sprintf("\n%s %s\n%s %s\n\n⏱ Нужны оба подтверждения",
			mark(p.InitiatorConfirmed), h.dir.DisplayName(ctx, p.Initiator),
			mark(p.CounterpartyConfirmed), h.dir.DisplayName(ctx, p.Counterparty))
	case StatusConfirmed:
		text += "\n✅ Обмен выполнен"
	case StatusCancelled:
		text += "\n❌ Обмен отменён"
	case StatusExpired:
		text += "\n⌛ Время на подтверждение вышло"
	}
	return text
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "⬜"
}

func keyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", CallbackPrefix+":"+callbackConfirm+":"+id),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", CallbackPrefix+":"+callbackCancel+":"+id),
	))
}

func (h *Handler) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}
