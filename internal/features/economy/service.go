// Package economy — service.go содержит бизнес-логику экономики.
// Все изменения идут через ledger.Store.Update, после чего состояние сохраняется.
package economy

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Service управляет заработком, переводами и просмотром балансов.
type Service struct {
	store   *ledger.Store
	saver   ledger.Saver
	rng     common.Rand
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService создаёт сервис экономики.
func NewService(store *ledger.Store, saver ledger.Saver, rng common.Rand, m *metrics.Metrics) *Service {
	return &Service{store: store, saver: saver, rng: rng, metrics: m, now: time.Now}
}

// Earn выполняет homework или officehours: случайная валюта сообщества,
// случайная сумма из [EarnMin, EarnMax], затем кулдаун.
func (s *Service) Earn(ctx context.Context, req common.Request, action ledger.Action) (*EarnResult, error) {
	if action != ledger.ActionHomework && action != ledger.ActionOfficeHours {
		return nil, common.ErrUnknownAction
	}

	now := s.now()
	var res EarnResult
	err := s.store.Update(func(tx *ledger.Tx) error {
		currencies := tx.Currencies(req.CommunityID)
		if len(currencies) == 0 {
			return common.ErrNoCurrencies
		}
		gate := tx.Gate(req.CommunityID, req.UserID, action, now)
		if err := gate.Err(action); err != nil {
			return err
		}

		cur := currencies[s.rng.IntN(len(currencies))]
		amount := common.RandRange(s.rng, EarnMin, EarnMax)
		balance, err := tx.AdjustBalance(req.CommunityID, cur.Name, req.UserID, amount)
		if err != nil {
			return err
		}
		if err := tx.SetLastUsed(req.CommunityID, req.UserID, action, now); err != nil {
			return err
		}

		res = EarnResult{
			Action:   action,
			Currency: cur,
			Amount:   amount,
			Balance:  balance,
			Next:     now.Add(gate.Cooldown),
		}
		return nil
	})
	if err != nil {
		s.reject(string(action), req, err)
		return nil, err
	}

	s.metrics.Minted(string(action), res.Amount)
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"action":       action,
		"currency":     res.Currency.Name,
		"amount":       res.Amount,
	}).Info("Награда начислена")

	return &res, s.save(ctx, string(action))
}

// Give переводит валюту другому пользователю. Сумма пары не меняется.
func (s *Service) Give(ctx context.Context, req common.Request) (*GiveResult, error) {
	if req.TargetUserID == req.UserID {
		s.reject("give", req, common.ErrSelfTarget)
		return nil, common.ErrSelfTarget
	}
	if req.Amount <= 0 {
		s.reject("give", req, common.ErrInvalidAmount)
		return nil, common.ErrInvalidAmount
	}

	var res GiveResult
	err := s.store.Update(func(tx *ledger.Tx) error {
		cur, err := tx.RequireCurrency(req.CommunityID, req.Currency)
		if err != nil {
			return err
		}
		have := tx.Balance(req.CommunityID, cur.Name, req.UserID)
		if have < req.Amount {
			return &common.BalanceError{Currency: cur.Name, Have: have, Need: req.Amount}
		}

		res.Currency = cur
		res.Amount = req.Amount
		if res.SenderBalance, err = tx.AdjustBalance(req.CommunityID, cur.Name, req.UserID, -req.Amount); err != nil {
			return err
		}
		if res.ReceiverBalance, err = tx.AdjustBalance(req.CommunityID, cur.Name, req.TargetUserID, req.Amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.reject("give", req, err)
		return nil, err
	}

	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"from":         req.UserID,
		"to":           req.TargetUserID,
		"currency":     res.Currency.Name,
		"amount":       res.Amount,
	}).Info("Перевод выполнен")

	return &res, s.save(ctx, "give")
}

// Balances возвращает балансы пользователя (TargetUserID, иначе UserID).
func (s *Service) Balances(req common.Request) (*BalanceView, error) {
	userID := req.UserID
	if req.TargetUserID != 0 {
		userID = req.TargetUserID
	}
	view := &BalanceView{UserID: userID}
	err := s.store.View(func(tx *ledger.Tx) error {
		view.Holdings = tx.Holdings(req.CommunityID, userID)
		if len(view.Holdings) == 0 {
			return common.ErrNoCurrencies
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Currencies возвращает валюты сообщества.
func (s *Service) Currencies(communityID int64) ([]ledger.Currency, error) {
	var out []ledger.Currency
	err := s.store.View(func(tx *ledger.Tx) error {
		out = tx.Currencies(communityID)
		if len(out) == 0 {
			return common.ErrNoCurrencies
		}
		return nil
	})
	return out, err
}

// Leaderboard возвращает LeaderboardSize крупнейших держателей валюты.
func (s *Service) Leaderboard(communityID int64, currency string) (*Leaderboard, error) {
	var lb Leaderboard
	err := s.store.View(func(tx *ledger.Tx) error {
		cur, err := tx.RequireCurrency(communityID, currency)
		if err != nil {
			return err
		}
		lb.Currency = cur
		lb.Holders = tx.Holders(communityID, cur.Name)
		if len(lb.Holders) > LeaderboardSize {
			lb.Holders = lb.Holders[:LeaderboardSize]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lb, nil
}

// Autocomplete подсказывает названия валют сообщества.
func (s *Service) Autocomplete(communityID int64, query string) []string {
	var names []string
	_ = s.store.View(func(tx *ledger.Tx) error {
		for _, c := range tx.Currencies(communityID) {
			names = append(names, c.Name)
		}
		return nil
	})
	return common.MatchNames(names, query)
}

func (s *Service) save(ctx context.Context, action string) error {
	if err := s.saver.Flush(ctx); err != nil {
		s.metrics.Action(action, metrics.OutcomeSaveFail)
		return err
	}
	s.metrics.Action(action, metrics.OutcomeOK)
	return nil
}

func (s *Service) reject(action string, req common.Request, err error) {
	s.metrics.Action(action, metrics.OutcomeRejected)
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"action":       action,
	}).WithError(err).Debug("Действие отклонено")
}
