package shop

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/currency-bot/internal/common"
)

// Handler обрабатывает !магазин, !купить, !использовать и !инвентарь.
type Handler struct {
	service *Service
	bot     common.Sender
	dir     common.Directory
}

// NewHandler создаёт обработчик магазина.
func NewHandler(service *Service, bot common.Sender, dir common.Directory) *Handler {
	return &Handler{service: service, bot: bot, dir: dir}
}

// HandleCatalog показывает каталог.
func (h *Handler) HandleCatalog(_ context.Context, inv *common.Invocation) {
	var sb strings.Builder
	sb.WriteString("🏪 Магазин (цена в любой валюте чата):\n\n")
	for _, it := range Catalog {
		sb.WriteString(fmt.Sprintf("%s %s — %s, %s\n", it.Emoji, it.Name, common.FormatNumber(it.Price), it.Description))
	}
	sb.WriteString("\n!купить <предмет> <валюта>")
	common.SendText(h.bot, inv.ChatID, sb.String())
}

// HandleBuy обрабатывает !купить <предмет> <валюта>.
func (h *Handler) HandleBuy(ctx context.Context, inv *common.Invocation) {
	if len(inv.Args) < 2 {
		common.SendText(h.bot, inv.ChatID, "Использование: !купить <предмет> <валюта>")
		return
	}
	res, err := h.service.Buy(ctx, common.Request{
		CommunityID: inv.ChatID,
		UserID:      inv.UserID,
		Item:        inv.Args[0],
		Currency:    inv.Args[1],
	})
	if res == nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}
	text := fmt.Sprintf("🛒 Куплено: %s %s (в инвентаре: %d)\n📊 Баланс: %s",
		res.Item.Emoji, res.Item.Name, res.Quantity,
		common.FormatAmount(res.Currency.Emoji, res.Balance, res.Currency.Name))
	common.SendText(h.bot, inv.ChatID, common.WithWarning(text, err))
}

// HandleUse обрабатывает !использовать <предмет>.
func (h *Handler) HandleUse(ctx context.Context, inv *common.Invocation) {
	if len(inv.Args) < 1 {
		common.SendText(h.bot, inv.ChatID, "Использование: !использовать <предмет>")
		return
	}
	res, err := h.service.Use(ctx, common.Request{CommunityID: inv.ChatID, UserID: inv.UserID, Item: inv.Args[0]})
	if res == nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}

	var text string
	switch res.Item.Effect {
	case EffectCooldownReset:
		text = "☕ Кофе выпит, можно снова идти на дело"
	case EffectShield:
		text = "🛡️ Щит поднят, следующее ограбление будет отбито"
	}
	text += fmt.Sprintf(" (осталось: %d)", res.Remaining)
	common.SendText(h.bot, inv.ChatID, common.WithWarning(text, err))
}

// HandleInventory обрабатывает !инвентарь [@user].
func (h *Handler) HandleInventory(ctx context.Context, inv *common.Invocation) {
	req := common.Request{CommunityID: inv.ChatID, UserID: inv.UserID}
	if inv.ReplyTo != nil || len(inv.Args) > 0 {
		target, _, err := h.dir.ResolveTarget(ctx, inv)
		if err != nil {
			common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
			return
		}
		req.TargetUserID = target.UserID
	}

	view := h.service.Inventory(req)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎒 Инвентарь %s\n\n", h.dir.DisplayName(ctx, view.UserID)))
	if len(view.Items) == 0 {
		sb.WriteString("пусто\n")
	}
	for _, st := range view.Items {
		emoji := ""
		if it, ok := Lookup(st.Item); ok {
			emoji = it.Emoji + " "
		}
		sb.WriteString(fmt.Sprintf("%s%s × %d\n", emoji, st.Item, st.Quantity))
	}
	if len(view.Buffs) > 0 {
		sb.WriteString("\nАктивно: " + strings.Join(view.Buffs, ", "))
	}
	common.SendText(h.bot, inv.ChatID, strings.TrimRight(sb.String(), "\n"))
}
