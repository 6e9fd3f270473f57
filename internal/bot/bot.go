// Package bot содержит главный модуль бота: long polling, фильтр доступа,
// разбор команд и маршрутизацию по обработчикам фич.
package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/bot/filters"
	"serotonyl.ru/currency-bot/internal/bot/middleware"
	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/config"
	"serotonyl.ru/currency-bot/internal/features/members"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	filter        *filters.AccessFilter
	router        *Router
	memberHandler *members.Handler
	parser        *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт бота. api нужен только для Start.
func New(api *tgbotapi.BotAPI, cfg *config.Config, filter *filters.AccessFilter,
	router *Router, memberHandler *members.Handler) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		filter:        filter,
		router:        router,
		memberHandler: memberHandler,
		parser:        NewCommandParser(),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
// Перед возвратом дожидается уже запущенных обработчиков.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer func() {
					<-b.inflight
					b.wg.Done()
				}()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic(log.Fields{"update_id": update.UpdateID})

	if cb := update.CallbackQuery; cb != nil {
		middleware.LogCallback(cb)
		if !b.router.RouteCallback(ctx, cb) {
			log.WithField("data", cb.Data).Debug("unknown callback")
		}
		return
	}

	message := update.Message
	if message == nil {
		return
	}

	if len(message.NewChatMembers) > 0 {
		if b.filter.CheckAccess(message) {
			b.memberHandler.HandleNewChatMembers(ctx, message.NewChatMembers)
		}
		return
	}
	if message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.filter.CheckAccess(message) {
		return
	}
	b.memberHandler.HandleMessage(ctx, message)

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	inv := &common.Invocation{
		ChatID:    message.Chat.ID,
		UserID:    message.From.ID,
		MessageID: message.MessageID,
		Args:      args,
		Private:   message.Chat.IsPrivate(),
	}
	if message.ReplyToMessage != nil {
		inv.ReplyTo = message.ReplyToMessage.From
	}
	b.router.Route(ctx, cmd, inv)
}
