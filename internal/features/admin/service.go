// Package admin — service.go содержит админ-операции над валютами сообщества
// и запросы на удаление валюты с подтверждением.
package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Service управляет валютами и настройками кулдаунов сообщества.
type Service struct {
	store   *ledger.Store
	saver   ledger.Saver
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	removals map[string]*Removal
}

// NewService создаёт админ-сервис. timeout <= 0 заменяется на DefaultRemovalTimeout.
func NewService(store *ledger.Store, saver ledger.Saver, m *metrics.Metrics, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultRemovalTimeout
	}
	return &Service{
		store:    store,
		saver:    saver,
		metrics:  m,
		timeout:  timeout,
		now:      time.Now,
		removals: make(map[string]*Removal),
	}
}

// CreateCurrency добавляет валюту в сообщество.
func (s *Service) CreateCurrency(ctx context.Context, communityID int64, name, emoji string) (ledger.Currency, error) {
	name = strings.TrimSpace(name)
	emoji = strings.TrimSpace(emoji)
	err := s.store.Update(func(tx *ledger.Tx) error {
		return tx.CreateCurrency(communityID, name, emoji)
	})
	if err != nil {
		s.reject("currency_create", communityID, err)
		return ledger.Currency{}, err
	}
	log.WithFields(log.Fields{
		"community_id": communityID,
		"currency":     name,
		"emoji":        emoji,
	}).Info("Валюта создана")
	return ledger.Currency{CommunityID: communityID, Name: name, Emoji: emoji}, s.save(ctx, "currency_create")
}

// RenameCurrency переименовывает валюту, сохраняя балансы, джекпот и эмодзи.
func (s *Service) RenameCurrency(ctx context.Context, communityID int64, oldName, newName string) (ledger.Currency, error) {
	newName = strings.TrimSpace(newName)
	var cur ledger.Currency
	err := s.store.Update(func(tx *ledger.Tx) error {
		old, err := tx.RequireCurrency(communityID, oldName)
		if err != nil {
			return err
		}
		if err := tx.RenameCurrency(communityID, old.Name, newName); err != nil {
			return err
		}
		cur, _ = tx.Currency(communityID, newName)
		return nil
	})
	if err != nil {
		s.reject("currency_rename", communityID, err)
		return ledger.Currency{}, err
	}
	log.WithFields(log.Fields{
		"community_id": communityID,
		"from":         oldName,
		"currency":     newName,
	}).Info("Валюта переименована")
	return cur, s.save(ctx, "currency_rename")
}

// SetBalance выставляет баланс пользователя. Отрицательные значения запрещены.
func (s *Service) SetBalance(ctx context.Context, req common.Request) (ledger.Currency, error) {
	if req.Amount < 0 {
		s.reject("set_balance", req.CommunityID, common.ErrNegativeBalance)
		return ledger.Currency{}, common.ErrNegativeBalance
	}
	var cur ledger.Currency
	var before int64
	err := s.store.Update(func(tx *ledger.Tx) error {
		var err error
		if cur, err = tx.RequireCurrency(req.CommunityID, req.Currency); err != nil {
			return err
		}
		before = tx.Balance(req.CommunityID, cur.Name, req.TargetUserID)
		return tx.SetBalance(req.CommunityID, cur.Name, req.TargetUserID, req.Amount)
	})
	if err != nil {
		s.reject("set_balance", req.CommunityID, err)
		return ledger.Currency{}, err
	}

	if d := req.Amount - before; d > 0 {
		s.metrics.Minted("admin", d)
	} else if d < 0 {
		s.metrics.Burned("admin", -d)
	}
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"admin_id":     req.UserID,
		"user_id":      req.TargetUserID,
		"currency":     cur.Name,
		"amount":       req.Amount,
	}).Info("Баланс выставлен администратором")
	return cur, s.save(ctx, "set_balance")
}

// SetCooldown задаёт кулдаун действия в сообществе.
func (s *Service) SetCooldown(ctx context.Context, communityID int64, action ledger.Action, d time.Duration) error {
	err := s.store.Update(func(tx *ledger.Tx) error {
		return tx.SetCooldown(communityID, action, d)
	})
	if err != nil {
		s.reject("set_cooldown", communityID, err)
		return err
	}
	log.WithFields(log.Fields{
		"community_id": communityID,
		"action":       action,
		"cooldown":     d,
	}).Info("Кулдаун изменён")
	return s.save(ctx, "set_cooldown")
}

// Cooldowns возвращает действующие кулдауны сообщества.
func (s *Service) Cooldowns(communityID int64) map[ledger.Action]time.Duration {
	out := make(map[ledger.Action]time.Duration, len(ledger.Actions))
	_ = s.store.View(func(tx *ledger.Tx) error {
		for _, a := range ledger.Actions {
			out[a] = tx.Cooldown(communityID, a)
		}
		return nil
	})
	return out
}

// RequestRemoval открывает запрос на удаление валюты. Удаление произойдёт,
// только если автор подтвердит его до дедлайна.
func (s *Service) RequestRemoval(communityID, requester int64, currency string) (*Removal, error) {
	var cur ledger.Currency
	err := s.store.View(func(tx *ledger.Tx) error {
		var err error
		cur, err = tx.RequireCurrency(communityID, currency)
		return err
	})
	if err != nil {
		s.reject("currency_remove", communityID, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, r := range s.removals {
		if r.CommunityID == communityID && r.Currency == cur.Name && !r.IsExpired(now) {
			s.reject("currency_remove", communityID, common.ErrRemovalPending)
			return nil, common.ErrRemovalPending
		}
	}

	r := &Removal{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		Currency:    cur.Name,
		Emoji:       cur.Emoji,
		Requester:   requester,
		Deadline:    now.Add(s.timeout),
		Status:      RemovalPending,
	}
	s.removals[r.ID] = r
	log.WithFields(log.Fields{
		"community_id": communityID,
		"user_id":      requester,
		"currency":     cur.Name,
		"removal_id":   r.ID,
	}).Info("Запрошено удаление валюты")

	cp := *r
	return &cp, nil
}

// SetMessage запоминает сообщение с кнопками запроса.
func (s *Service) SetMessage(id string, messageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.removals[id]; ok {
		r.MessageID = messageID
	}
}

// ConfirmRemoval удаляет валюту вместе с балансами и джекпотом.
// После дедлайна возвращает копию просроченного запроса и ErrProposalExpired.
func (s *Service) ConfirmRemoval(ctx context.Context, id string, userID int64) (*Removal, error) {
	r, err := s.confirmRemoval(id, userID)
	if err != nil || r.Status != RemovalConfirmed {
		return r, err
	}
	// сохраняем без s.mu
	return r, s.save(ctx, "currency_remove")
}

func (s *Service) confirmRemoval(id string, userID int64) (*Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.removals[id]
	if !ok {
		return nil, common.ErrRemovalNotFound
	}
	if err := r.Confirm(userID, s.now()); err != nil {
		return s.closeWithError(r, err)
	}

	var burned int64
	err := s.store.Update(func(tx *ledger.Tx) error {
		var err error
		burned, err = tx.DeleteCurrency(r.CommunityID, r.Currency)
		return err
	})
	if err != nil {
		// валюту успели удалить или переименовать
		r.Status = RemovalCancelled
		s.closeIfDone(r)
		s.reject("currency_remove", r.CommunityID, err)
		return nil, err
	}

	r.Burned = burned
	s.closeIfDone(r)
	s.metrics.Burned("removal", burned)
	log.WithFields(log.Fields{
		"community_id": r.CommunityID,
		"user_id":      userID,
		"currency":     r.Currency,
		"amount":       burned,
	}).Info("Валюта удалена")

	cp := *r
	return &cp, nil
}

// CancelRemoval отменяет запрос. Чужие попытки отклоняются без изменений.
func (s *Service) CancelRemoval(id string, userID int64) (*Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.removals[id]
	if !ok {
		return nil, common.ErrRemovalNotFound
	}
	if err := r.Cancel(userID, s.now()); err != nil {
		return s.closeWithError(r, err)
	}
	s.closeIfDone(r)
	log.WithFields(log.Fields{"removal_id": id, "user_id": userID}).Info("Удаление валюты отменено")
	cp := *r
	return &cp, nil
}

// closeWithError закрывает запрос после отказа. Просроченный возвращается
// копией, чтобы обработчик убрал кнопки с его сообщения.
func (s *Service) closeWithError(r *Removal, err error) (*Removal, error) {
	s.closeIfDone(r)
	if r.Status != RemovalExpired {
		return nil, err
	}
	s.metrics.Expired("removal", 1)
	log.WithFields(log.Fields{
		"community_id": r.CommunityID,
		"removal_id":   r.ID,
	}).Info("Запрос на удаление валюты просрочен")
	cp := *r
	return &cp, err
}

// GetRemoval возвращает копию запроса.
func (s *Service) GetRemoval(id string) (*Removal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.removals[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// ExpireRemovals закрывает просроченные запросы и возвращает их.
func (s *Service) ExpireRemovals() []*Removal {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*Removal
	for id, r := range s.removals {
		if r.IsExpired(now) {
			r.Status = RemovalExpired
			delete(s.removals, id)
			cp := *r
			out = append(out, &cp)
		}
	}
	s.metrics.Expired("removal", len(out))
	return out
}

// PendingRemovals — количество открытых запросов.
func (s *Service) PendingRemovals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removals)
}

func (s *Service) closeIfDone(r *Removal) {
	if r.Status != RemovalPending {
		delete(s.removals, r.ID)
	}
}

func (s *Service) save(ctx context.Context, action string) error {
	if err := s.saver.Flush(ctx); err != nil {
		s.metrics.Action(action, metrics.OutcomeSaveFail)
		return err
	}
	s.metrics.Action(action, metrics.OutcomeOK)
	return nil
}

func (s *Service) reject(action string, communityID int64, err error) {
	s.metrics.Action(action, metrics.OutcomeRejected)
	log.WithFields(log.Fields{
		"community_id": communityID,
		"action":       action,
	}).WithError(err).Debug("Админ-действие отклонено")
}
