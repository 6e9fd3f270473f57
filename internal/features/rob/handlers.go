package rob

import (
	"context"
	"fmt"

	"serotonyl.ru/currency-bot/internal/common"
)

// Handler обрабатывает !ограбить.
type Handler struct {
	service *Service
	bot     common.Sender
	dir     common.Directory
}

// NewHandler создаёт обработчик ограблений.
func NewHandler(service *Service, bot common.Sender, dir common.Directory) *Handler {
	return &Handler{service: service, bot: bot, dir: dir}
}

// HandleRob обрабатывает !ограбить @user (или ответом на сообщение).
func (h *Handler) HandleRob(ctx context.Context, inv *common.Invocation) {
	target, _, err := h.dir.ResolveTarget(ctx, inv)
	if err != nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}

	res, err := h.service.Rob(ctx, common.Request{
		CommunityID:  inv.ChatID,
		UserID:       inv.UserID,
		TargetUserID: target.UserID,
		TargetIsBot:  target.IsBot,
	})
	if res == nil {
		common.SendText(h.bot, inv.ChatID, common.ErrorText(err))
		return
	}

	robber, victim := h.dir.DisplayName(ctx, inv.UserID), h.dir.DisplayName(ctx, target.UserID)
	var text string
	switch {
	case res.Blocked:
		text = fmt.Sprintf("🛡️ %s был под щитом. Щит сгорел, %s уходит ни с чем", victim, robber)
	case res.Success:
		text = fmt.Sprintf("🦹 %s обчистил %s на %s", robber, victim,
			common.FormatAmount(res.Currency.Emoji, res.Amount, res.Currency.Name))
	case res.Penalty > 0:
		text = fmt.Sprintf("🚓 %s попался! Штраф %s ушёл в джекпот", robber,
			common.FormatAmount(res.Currency.Emoji, res.Penalty, res.Currency.Name))
	default:
		text = fmt.Sprintf("🚓 %s попался, но штрафовать нечего", robber)
	}
	common.SendText(h.bot, inv.ChatID, common.WithWarning(text, err))
}
