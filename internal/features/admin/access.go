package admin

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/config"
)

// ChatMembers — часть *tgbotapi.BotAPI для проверки прав в чате.
type ChatMembers interface {
	GetChatMember(c tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Access решает, может ли пользователь управлять валютами сообщества:
// создатель или администратор чата, ID из ADMIN_IDS или активная сессия.
type Access struct {
	members ChatMembers
	auth    *Auth
	cfg     *config.Config
}

// NewAccess создаёт проверку прав.
func NewAccess(members ChatMembers, auth *Auth, cfg *config.Config) *Access {
	return &Access{members: members, auth: auth, cfg: cfg}
}

// IsPrivileged проверяет права пользователя в чате.
func (a *Access) IsPrivileged(_ context.Context, chatID, userID int64) bool {
	if a.cfg != nil && a.cfg.IsAdminID(userID) {
		return true
	}
	if a.auth != nil && a.auth.HasSession(userID) {
		return true
	}
	if a.members == nil {
		return false
	}

	member, err := a.members.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"community_id": chatID,
			"user_id":      userID,
		}).Warn("Не удалось получить права участника")
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}
