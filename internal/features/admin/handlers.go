// Package admin — handlers.go обрабатывает админ-команды: валюты, балансы,
// кулдауны, удаление валюты с подтверждением и вход по паролю.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
)

// CallbackPrefix — префикс callback data кнопок удаления валюты.
const CallbackPrefix = "rmcur"

const (
	callbackConfirm = "ok"
	callbackCancel  = "no"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	auth    *Auth
	access  *Access
	bot     common.Sender
	dir     common.Directory
}

// NewHandler создаёт обработчик админки.
func NewHandler(service *Service, auth *Auth, access *Access, bot common.Sender, dir common.Directory) *Handler {
	return &Handler{service: service, auth: auth, access: access, bot: bot, dir: dir}
}

// allowed проверяет права и отвечает отказом, если их нет.
func (h *Handler) allowed(ctx context.Context, inv *common.Invocation) bool {
	if inv.Private {
		h.reply(inv, "Эта команда работает только в чате сообщества")
		return false
	}
	if !h.access.IsPrivileged(ctx, inv.ChatID, inv.UserID) {
		log.WithFields(log.Fields{
			"community_id": inv.ChatID,
			"user_id":      inv.UserID,
		}).Debug("Админ-команда без прав")
		h.reply(inv, common.ErrorText(common.ErrNotAdmin))
		return false
	}
	return true
}

// HandleCreateCurrency обрабатывает !новаявалюта <название> <эмодзи>.
func (h *Handler) HandleCreateCurrency(ctx context.Context, inv *common.Invocation) {
	if !h.allowed(ctx, inv) {
		return
	}
	if len(inv.Args) < 2 {
		h.reply(inv, "Использование: !новаявалюта <название> <эмодзи>")
		return
	}
	cur, err := h.service.CreateCurrency(ctx, inv.ChatID, inv.Args[0], inv.Args[1])
	if cur.Name == "" {
		h.reply(inv, common.ErrorText(err))
		return
	}
	h.reply(inv, common.WithWarning(fmt.Sprintf("✅ Валюта %s %s создана", cur.Emoji, cur.Name), err))
}

// HandleRenameCurrency обрабатывает !переименовать <старое> <новое>.
func (h *Handler) HandleRenameCurrency(ctx context.Context, inv *common.Invocation) {
	if !h.allowed(ctx, inv) {
		return
	}
	if len(inv.Args) < 2 {
		h.reply(inv, "Использование: !переименовать <старое название> <новое название>")
		return
	}
	cur, err := h.service.RenameCurrency(ctx, inv.ChatID, inv.Args[0], inv.Args[1])
	if cur.Name == "" {
		h.reply(inv, common.ErrorText(err))
		return
	}
	h.reply(inv, common.WithWarning(fmt.Sprintf("✅ Валюта %s теперь называется %s %s", inv.Args[0], cur.Emoji, cur.Name), err))
}

// HandleSetBalance обрабатывает !выставить @user <валюта> <сумма>.
func (h *Handler) HandleSetBalance(ctx context.Context, inv *common.Invocation) {
	if !h.allowed(ctx, inv) {
		return
	}
	target, args, err := h.dir.ResolveTarget(ctx, inv)
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	if len(args) < 2 {
		h.reply(inv, "Использование: !выставить @user <валюта> <сумма>")
		return
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		h.reply(inv, common.ErrorText(common.ErrInvalidAmount))
		return
	}

	cur, err := h.service.SetBalance(ctx, common.Request{
		CommunityID:  inv.ChatID,
		UserID:       inv.UserID,
		TargetUserID: target.UserID,
		Currency:     args[0],
		Amount:       amount,
	})
	if cur.Name == "" {
		h.reply(inv, common.ErrorText(err))
		return
	}
	text := fmt.Sprintf("✅ Баланс %s: %s",
		h.dir.DisplayName(ctx, target.UserID), common.FormatAmount(cur.Emoji, amount, cur.Name))
	h.reply(inv, common.WithWarning(text, err))
}

// HandleSetCooldown обрабатывает !кулдаун [<действие> <секунды>].
// Без аргументов показывает текущие значения.
func (h *Handler) HandleSetCooldown(ctx context.Context, inv *common.Invocation) {
	if !h.allowed(ctx, inv) {
		return
	}
	if len(inv.Args) == 0 {
		h.reply(inv, h.renderCooldowns(inv.ChatID))
		return
	}
	if len(inv.Args) < 2 {
		h.reply(inv, "Использование: !кулдаун <homework|officehours|rob> <секунды>")
		return
	}
	action, err := ledger.ParseAction(inv.Args[0])
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	seconds, err := strconv.ParseInt(inv.Args[1], 10, 64)
	if err != nil {
		h.reply(inv, "❌ Кулдаун задаётся целым числом секунд")
		return
	}

	if seconds > int64(ledger.MaxCooldown/time.Second) {
		h.reply(inv, common.ErrorText(common.ErrInvalidCooldown))
		return
	}

	d := time.Duration(seconds) * time.Second
	err = h.service.SetCooldown(ctx, inv.ChatID, action, d)
	if common.IsRejection(err) {
		h.reply(inv, common.ErrorText(err))
		return
	}
	text := fmt.Sprintf("✅ Кулдаун %s: %s", action, common.FormatDuration(d))
	h.reply(inv, common.WithWarning(text, err))
}

func (h *Handler) renderCooldowns(communityID int64) string {
	cds := h.service.Cooldowns(communityID)
	var sb strings.Builder
	sb.WriteString("⏱ Кулдауны:\n")
	for _, a := range ledger.Actions {
		sb.WriteString(fmt.Sprintf("\n%s: %s", a, common.FormatDuration(cds[a])))
	}
	return sb.String()
}

// HandleRemoveCurrency обрабатывает !удалитьвалюту <название>: отправляет
// кнопки подтверждения, нажать которые может только автор команды.
func (h *Handler) HandleRemoveCurrency(ctx context.Context, inv *common.Invocation) {
	if !h.allowed(ctx, inv) {
		return
	}
	if len(inv.Args) < 1 {
		h.reply(inv, "Использование: !удалитьвалюту <название>")
		return
	}
	r, err := h.service.RequestRemoval(inv.ChatID, inv.UserID, inv.Args[0])
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}

	msg := tgbotapi.NewMessage(inv.ChatID, h.render(r))
	msg.ReplyMarkup = keyboard(r.ID)
	sent, err := h.bot.Send(msg)
	if err != nil {
		log.WithError(err).WithField("removal_id", r.ID).Error("Ошибка отправки подтверждения удаления")
		return
	}
	h.service.SetMessage(r.ID, sent.MessageID)
}

// HandleCallback обрабатывает нажатие кнопки. action и id уже выделены из data.
func (h *Handler) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, action, id string) {
	var (
		r   *Removal
		err error
	)
	switch action {
	case callbackConfirm:
		r, err = h.service.ConfirmRemoval(ctx, id, cb.From.ID)
	case callbackCancel:
		r, err = h.service.CancelRemoval(id, cb.From.ID)
	default:
		return
	}
	if r == nil {
		h.answer(cb, common.ErrorText(err))
		return
	}

	text := h.render(r)
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
	if _, err := h.bot.Send(edit); err != nil {
		log.WithError(err).WithField("removal_id", r.ID).Warn("Не удалось обновить сообщение удаления")
	}
}

// NotifyExpired обновляет сообщения просроченных запросов.
func (h *Handler) NotifyExpired(_ context.Context, expired []*Removal) {
	for _, r := range expired {
		if r.MessageID == 0 {
			continue
		}
		edit := tgbotapi.NewEditMessageText(r.CommunityID, r.MessageID, h.render(r))
		if _, err := h.bot.Send(edit); err != nil {
			log.WithError(err).WithField("removal_id", r.ID).Warn("Не удалось обновить сообщение удаления")
		}
	}
}

// HandleLogin обрабатывает /login <пароль> в личке с ботом.
func (h *Handler) HandleLogin(_ context.Context, inv *common.Invocation) {
	if !inv.Private {
		// пароль в общем чате уже скомпрометирован, но хотя бы уберём его
		h.deleteMessage(inv)
		h.reply(inv, "🔒 Вход только в личных сообщениях с ботом")
		return
	}
	if len(inv.Args) < 1 {
		h.reply(inv, "Использование: /login <пароль>")
		return
	}

	expires, err := h.auth.Login(inv.UserID, strings.Join(inv.Args, " "))
	h.deleteMessage(inv)
	if err != nil {
		h.reply(inv, common.ErrorText(err))
		return
	}
	h.reply(inv, fmt.Sprintf("✅ Вход выполнен. Сессия действует до %s", expires.Format("02.01.2006 15:04")))
}

// HandleLogout обрабатывает /logout.
func (h *Handler) HandleLogout(_ context.Context, inv *common.Invocation) {
	if h.auth.Logout(inv.UserID) {
		h.reply(inv, "👋 Сессия завершена")
		return
	}
	h.reply(inv, "Активной сессии нет")
}

func (h *Handler) render(r *Removal) string {
	name := strings.TrimSpace(r.Emoji + " " + r.Currency)
	switch r.Status {
	case RemovalPending:
		return fmt.Sprintf("🗑 Удалить валюту %s?\nВсе балансы и джекпот сгорят.\n\n⏱ Подтверди в течение %s",
			name, common.FormatDuration(h.service.timeout))
	case RemovalConfirmed:
		return fmt.Sprintf("🗑 Валюта %s удалена, сгорело %s", name, common.FormatNumber(r.Burned))
	case RemovalCancelled:
		return fmt.Sprintf("❌ Удаление валюты %s отменено", name)
	case RemovalExpired:
		return fmt.Sprintf("⌛ Удаление валюты %s не подтверждено вовремя", name)
	}
	return name
}

func keyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", CallbackPrefix+":"+callbackConfirm+":"+id),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", CallbackPrefix+":"+callbackCancel+":"+id),
	))
}

func (h *Handler) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

func (h *Handler) deleteMessage(inv *common.Invocation) {
	if inv.MessageID == 0 {
		return
	}
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(inv.ChatID, inv.MessageID)); err != nil {
		log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
	}
}

func (h *Handler) reply(inv *common.Invocation, text string) {
	common.SendText(h.bot, inv.ChatID, text)
}
