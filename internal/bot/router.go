package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/admin"
	"serotonyl.ru/currency-bot/internal/features/casino"
	"serotonyl.ru/currency-bot/internal/features/economy"
	"serotonyl.ru/currency-bot/internal/features/rob"
	"serotonyl.ru/currency-bot/internal/features/shop"
	"serotonyl.ru/currency-bot/internal/features/trade"
	"serotonyl.ru/currency-bot/internal/ledger"
)

// CommandFunc обрабатывает разобранную команду.
type CommandFunc func(ctx context.Context, inv *common.Invocation)

// CallbackFunc обрабатывает нажатие inline-кнопки.
type CallbackFunc func(ctx context.Context, cb *tgbotapi.CallbackQuery, action, id string)

// Handlers — обработчики фич, которые подключает роутер.
type Handlers struct {
	Economy *economy.Handler
	Casino  *casino.Handler
	Rob     *rob.Handler
	Shop    *shop.Handler
	Trade   *trade.Handler
	Admin   *admin.Handler

	// Для !найти
	EconomyService *economy.Service
	ShopService    *shop.Service
}

type route struct {
	fn          CommandFunc
	privateOnly bool
	anywhere    bool // работает и в личке, и в чате
}

// Router сопоставляет команды и callback-кнопки обработчикам.
type Router struct {
	bot       common.Sender
	routes    map[string]route
	callbacks map[string]CallbackFunc
}

// NewRouter регистрирует все команды бота. Каждая команда доступна
// по русскому и английскому имени.
func NewRouter(bot common.Sender, h Handlers) *Router {
	r := &Router{
		bot:       bot,
		routes:    make(map[string]route),
		callbacks: make(map[string]CallbackFunc),
	}

	earn := func(action ledger.Action) CommandFunc {
		return func(ctx context.Context, inv *common.Invocation) {
			h.Economy.HandleEarn(ctx, inv, action)
		}
	}

	r.handle(earn(ledger.ActionHomework), "домашка", "homework")
	r.handle(earn(ledger.ActionOfficeHours), "консультация", "officehours")
	r.handle(h.Economy.HandleGive, "отсыпать", "give")
	r.handle(h.Economy.HandleBalance, "баланс", "balance", "bal")
	r.handle(h.Economy.HandleCurrencies, "валюты", "currencies")
	r.handle(h.Economy.HandleLeaderboard, "топ", "leaderboard", "top")

	r.handle(h.Casino.HandleGamble, "ставка", "gamble", "bet")
	r.handle(h.Casino.HandleJackpots, "джекпот", "jackpot")

	r.handle(h.Rob.HandleRob, "ограбить", "rob")

	r.handle(h.Shop.HandleCatalog, "магазин", "shop")
	r.handle(h.Shop.HandleBuy, "купить", "buy")
	r.handle(h.Shop.HandleUse, "использовать", "use")
	r.handle(h.Shop.HandleInventory, "инвентарь", "inventory", "inv")

	r.handle(h.Trade.HandleTrade, "обмен", "trade")

	r.handle(h.Admin.HandleCreateCurrency, "новаявалюта", "addcurrency")
	r.handle(h.Admin.HandleRenameCurrency, "переименовать", "renamecurrency")
	r.handle(h.Admin.HandleRemoveCurrency, "удалитьвалюту", "removecurrency")
	r.handle(h.Admin.HandleSetBalance, "выставить", "setbalance")
	r.handle(h.Admin.HandleSetCooldown, "кулдаун", "setcooldown")

	r.routes["login"] = route{fn: h.Admin.HandleLogin, anywhere: true}
	r.routes["logout"] = route{fn: h.Admin.HandleLogout, privateOnly: true}

	suggest := func(ctx context.Context, inv *common.Invocation) {
		r.handleSuggest(inv, h.EconomyService, h.ShopService)
	}
	r.handle(suggest, "найти", "suggest")

	for _, name := range []string{"start", "help", "помощь"} {
		r.routes[name] = route{fn: r.handleHelp, anywhere: true}
	}

	r.callbacks[trade.CallbackPrefix] = h.Trade.HandleCallback
	r.callbacks[admin.CallbackPrefix] = h.Admin.HandleCallback
	return r
}

func (r *Router) handle(fn CommandFunc, names ...string) {
	for _, name := range names {
		r.routes[name] = route{fn: fn}
	}
}

// Has сообщает, знает ли роутер команду.
func (r *Router) Has(cmd string) bool {
	_, ok := r.routes[cmd]
	return ok
}

// Route вызывает обработчик команды. Неизвестные команды игнорируются.
func (r *Router) Route(ctx context.Context, cmd string, inv *common.Invocation) bool {
	rt, ok := r.routes[cmd]
	if !ok {
		return false
	}

	log.WithFields(log.Fields{
		"cmd":          cmd,
		"args":         inv.Args,
		"community_id": inv.ChatID,
		"user_id":      inv.UserID,
	}).Debug("routing command")

	switch {
	case rt.anywhere:
	case rt.privateOnly && !inv.Private:
		common.SendText(r.bot, inv.ChatID, "🔒 Эта команда работает только в личных сообщениях с ботом")
		return true
	case !rt.privateOnly && inv.Private:
		common.SendText(r.bot, inv.ChatID, "Валюты живут в чатах: добавь бота в группу и пиши команды там")
		return true
	}

	rt.fn(ctx, inv)
	return true
}

// RouteCallback передаёт нажатие кнопки фиче по префиксу data.
func (r *Router) RouteCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) bool {
	prefix, action, id, ok := ParseCallback(cb.Data)
	if !ok {
		return false
	}
	fn, ok := r.callbacks[prefix]
	if !ok {
		return false
	}
	fn(ctx, cb, action, id)
	return true
}

func (r *Router) handleSuggest(inv *common.Invocation, eco *economy.Service, sh *shop.Service) {
	query := strings.Join(inv.Args, " ")
	var currencies, items []string
	if eco != nil {
		currencies = eco.Autocomplete(inv.ChatID, query)
	}
	if sh != nil {
		items = sh.Autocomplete(query)
	}
	if len(currencies) == 0 && len(items) == 0 {
		common.SendText(r.bot, inv.ChatID, "🔍 Ничего не найдено")
		return
	}

	var sb strings.Builder
	if len(currencies) > 0 {
		sb.WriteString(fmt.Sprintf("💱 Валюты: %s\n", strings.Join(currencies, ", ")))
	}
	if len(items) > 0 {
		sb.WriteString(fmt.Sprintf("🏪 Предметы: %s\n", strings.Join(items, ", ")))
	}
	common.SendText(r.bot, inv.ChatID, strings.TrimSpace(sb.String()))
}

const helpText = `💰 Бот валют сообщества

Заработок:
!домашка, !консультация — случайная награда раз в кулдаун

Валюты:
!баланс [@user] — балансы
!валюты — валюты чата
!топ <валюта> — таблица лидеров
!отсыпать @user <валюта> <сумма> — перевод
!обмен @user <даю> <валюта> <хочу> <валюта> — обмен с подтверждением

Риск:
!ставка <валюта> <сумма> — 50/50 и шанс на джекпот
!джекпот — накопленные джекпоты
!ограбить @user — украсть до 50 монет

Магазин:
!магазин, !купить <предмет> <валюта>, !использовать <предмет>, !инвентарь
!найти <текст> — подсказка названий

Админы:
!новаявалюта <название> <эмодзи>, !переименовать <старое> <новое>
!удалитьвалюту <название>, !выставить @user <валюта> <сумма>
!кулдаун [<действие> <секунды>]
/login <пароль> — вход в личке`

func (r *Router) handleHelp(_ context.Context, inv *common.Invocation) {
	common.SendText(r.bot, inv.ChatID, helpText)
}
