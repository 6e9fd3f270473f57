// Package members — service.go находит участников по ответу, @username или ID
// и кэширует их, чтобы не ходить в БД на каждое сообщение.
package members

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
)

// Service управляет участниками и реализует common.Directory.
type Service struct {
	repo Repository
	now  func() time.Time

	mu    sync.RWMutex
	cache map[int64]*Member
}

// NewService создаёт сервис участников.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, cache: make(map[int64]*Member)}
}

// EnsureMember запоминает автора сообщения. В БД пишем только если
// данные изменились с прошлого раза.
func (s *Service) EnsureMember(ctx context.Context, u *tgbotapi.User) error {
	if u == nil {
		return nil
	}
	m := &Member{
		UserID:    u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}

	s.mu.RLock()
	cached, ok := s.cache[u.ID]
	s.mu.RUnlock()
	if ok && cached.sameAs(m) {
		return nil
	}

	m.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, m); err != nil {
		return fmt.Errorf("ошибка сохранения участника: %w", err)
	}
	s.remember(m)

	if !ok {
		log.WithFields(log.Fields{
			"user_id":  u.ID,
			"username": u.UserName,
		}).Debug("Участник сохранён")
	}
	return nil
}

// GetByUserID возвращает участника по Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	s.mu.RLock()
	m, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.remember(m)
	return m, nil
}

// GetByUsername возвращает участника по @username (с @ или без).
func (s *Service) GetByUsername(ctx context.Context, username string) (*Member, error) {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return nil, common.ErrUserNotFound
	}
	m, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.remember(m)
	return m, nil
}

// ResolveTarget берёт цель из ответа на сообщение или из первого аргумента:
// @username или числовой Telegram ID.
func (s *Service) ResolveTarget(ctx context.Context, inv *common.Invocation) (*common.Target, []string, error) {
	if u := inv.ReplyTo; u != nil {
		if err := s.EnsureMember(ctx, u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("Не удалось сохранить участника")
		}
		m, _ := s.GetByUserID(ctx, u.ID)
		return toTarget(u.ID, m), inv.Args, nil
	}
	if len(inv.Args) == 0 {
		return nil, inv.Args, common.ErrUserNotFound
	}

	arg, rest := inv.Args[0], inv.Args[1:]
	if strings.HasPrefix(arg, "@") {
		m, err := s.GetByUsername(ctx, arg)
		if err != nil {
			return nil, inv.Args, err
		}
		return toTarget(m.UserID, m), rest, nil
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nil, inv.Args, common.ErrUserNotFound
	}
	m, err := s.GetByUserID(ctx, id)
	if err != nil && !errors.Is(err, common.ErrUserNotFound) {
		return nil, inv.Args, err
	}
	// Незнакомый ID тоже годится: бот мог ещё не видеть этого участника
	return toTarget(id, m), rest, nil
}

// DisplayName возвращает имя для вывода: @username, имя или id.
func (s *Service) DisplayName(ctx context.Context, userID int64) string {
	m, err := s.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, common.ErrUserNotFound) {
			log.WithError(err).WithField("user_id", userID).Debug("Не удалось получить имя участника")
		}
		return fallbackName(userID)
	}
	if name := m.DisplayName(); name != "" {
		return name
	}
	return fallbackName(userID)
}

func (s *Service) remember(m *Member) {
	s.mu.Lock()
	s.cache[m.UserID] = m
	s.mu.Unlock()
}

func toTarget(userID int64, m *Member) *common.Target {
	t := &common.Target{UserID: userID, Name: fallbackName(userID)}
	if m != nil {
		t.IsBot = m.IsBot
		if name := m.DisplayName(); name != "" {
			t.Name = name
		}
	}
	return t
}

func fallbackName(userID int64) string {
	return fmt.Sprintf("id%d", userID)
}
