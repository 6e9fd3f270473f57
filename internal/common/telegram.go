package common

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender — часть *tgbotapi.BotAPI, которой пользуются обработчики.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Invocation — команда из чата после разбора префикса.
type Invocation struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Args      []string
	ReplyTo   *tgbotapi.User // автор сообщения, на которое ответили
	Private   bool
}

// Target — пользователь, на которого направлена команда.
type Target struct {
	UserID int64
	IsBot  bool
	Name   string
}

// Directory находит цель команды и показывает имена пользователей.
type Directory interface {
	// ResolveTarget берёт цель из ответа на сообщение или из первого аргумента
	// (@username или числовой ID) и возвращает оставшиеся аргументы.
	ResolveTarget(ctx context.Context, inv *Invocation) (*Target, []string, error)
	DisplayName(ctx context.Context, userID int64) string
}

// SendText отправляет простое текстовое сообщение.
func SendText(s Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// ErrorText превращает ошибку действия в ответ пользователю.
func ErrorText(err error) string {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindPrecondition:
		return "❌ " + capitalize(err.Error())
	case KindPersistence:
		return "⚠️ Действие выполнено, но сохранить его не удалось. Повторим попытку позже."
	}
	switch {
	case errors.Is(err, ErrNotAdmin), errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrLoginDisabled):
		return "⛔ " + capitalize(err.Error())
	}
	return "❌ Внутренняя ошибка, попробуй позже"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}
