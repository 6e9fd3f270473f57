// Package filters решает, какие сообщения бот вообще обрабатывает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// AccessFilter пропускает сообщения людей из групп и личных чатов.
// Каналы, боты и служебные сообщения без автора отсекаются.
type AccessFilter struct {
	// если не пусто, работаем только в этих чатах (личка разрешена всегда)
	allowed map[int64]struct{}
}

// NewAccessFilter создаёт фильтр. Пустой список = любые группы.
func NewAccessFilter(allowedChats []int64) *AccessFilter {
	f := &AccessFilter{}
	if len(allowedChats) > 0 {
		f.allowed = make(map[int64]struct{}, len(allowedChats))
		for _, id := range allowedChats {
			f.allowed[id] = struct{}{}
		}
	}
	return f
}

// CheckAccess сообщает, стоит ли обрабатывать сообщение.
func (f *AccessFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "AccessFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "AccessFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: nil message.From (service/channel message?)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "AccessFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	if message.From.IsBot {
		logger.Debug("deny: bot sender")
		return false
	}

	switch {
	case message.Chat.IsPrivate():
		return true
	case message.Chat.IsGroup(), message.Chat.IsSuperGroup():
		if f.allowed == nil {
			return true
		}
		if _, ok := f.allowed[message.Chat.ID]; ok {
			return true
		}
		logger.Info("deny: chat not in allow list")
		return false
	}

	logger.Debug("deny: unsupported chat type")
	return false
}
