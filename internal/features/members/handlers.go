// Package members — handlers.go обрабатывает Telegram-события, связанные с участниками.
package members

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Handler обрабатывает события участников.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик событий участников.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleNewChatMembers запоминает вступивших в чат пользователей.
func (h *Handler) HandleNewChatMembers(ctx context.Context, newMembers []tgbotapi.User) {
	for i := range newMembers {
		user := &newMembers[i]
		if err := h.service.EnsureMember(ctx, user); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Ошибка регистрации нового участника")
		}
	}
}

// HandleMessage запоминает автора сообщения и того, кому он ответил.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	for _, u := range []*tgbotapi.User{msg.From, replyAuthor(msg)} {
		if u == nil {
			continue
		}
		if err := h.service.EnsureMember(ctx, u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("Не удалось сохранить участника")
		}
	}
}

func replyAuthor(msg *tgbotapi.Message) *tgbotapi.User {
	if msg.ReplyToMessage == nil {
		return nil
	}
	return msg.ReplyToMessage.From
}
