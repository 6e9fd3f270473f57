// Package middleware содержит промежуточные обработчики для логирования
// и восстановления после паники.
package middleware

import (
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}

	fields := log.Fields{
		"chat_id": message.Chat.ID,
		"text":    truncate(message.Text, maxLoggedText),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(cb *tgbotapi.CallbackQuery) {
	if cb == nil {
		return
	}
	fields := log.Fields{"data": cb.Data}
	if cb.From != nil {
		fields["user_id"] = cb.From.ID
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		fields["chat_id"] = cb.Message.Chat.ID
	}
	log.WithFields(fields).Debug("Нажата кнопка")
}

// truncate обрезает строку до n рун, не разрезая UTF-8.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
