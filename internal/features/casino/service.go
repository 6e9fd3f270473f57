// Package casino — service.go: логика ставки и розыгрыша джекпота.
package casino

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Service проводит ставки.
type Service struct {
	store   *ledger.Store
	saver   ledger.Saver
	rng     common.Rand
	metrics *metrics.Metrics
}

// NewService создаёт сервис казино.
func NewService(store *ledger.Store, saver ledger.Saver, rng common.Rand, m *metrics.Metrics) *Service {
	return &Service{store: store, saver: saver, rng: rng, metrics: m}
}

// Gamble ставит req.Amount валюты req.Currency.
//
// Выигрыш удваивает ставку (монеты создаются, а не берутся из джекпота)
// и с шансом JackpotChance забирает все положительные джекпоты сообщества.
// Проигрыш переносит ставку в джекпот валюты.
func (s *Service) Gamble(ctx context.Context, req common.Request) (*GambleResult, error) {
	if req.Amount <= 0 {
		s.reject(req, common.ErrInvalidAmount)
		return nil, common.ErrInvalidAmount
	}

	var res GambleResult
	err := s.store.Update(func(tx *ledger.Tx) error {
		cur, err := tx.RequireCurrency(req.CommunityID, req.Currency)
		if err != nil {
			return err
		}
		have := tx.Balance(req.CommunityID, cur.Name, req.UserID)
		if have < req.Amount {
			return &common.BalanceError{Currency: cur.Name, Have: have, Need: req.Amount}
		}
		res = GambleResult{Currency: cur, Bet: req.Amount}

		if s.rng.Float64() >= WinChance {
			if res.Balance, err = tx.AdjustBalance(req.CommunityID, cur.Name, req.UserID, -req.Amount); err != nil {
				return err
			}
			res.Pot, err = tx.AdjustPot(req.CommunityID, cur.Name, req.Amount)
			return err
		}

		res.Won = true
		if _, err = tx.AdjustBalance(req.CommunityID, cur.Name, req.UserID, req.Amount); err != nil {
			return err
		}
		if s.rng.Float64() < JackpotChance(req.Amount) {
			if res.Jackpot, err = sweepPots(tx, req.CommunityID, req.UserID); err != nil {
				return err
			}
		}
		res.Balance = tx.Balance(req.CommunityID, cur.Name, req.UserID)
		res.Pot = tx.Pot(req.CommunityID, cur.Name)
		return nil
	})
	if err != nil {
		s.reject(req, err)
		return nil, err
	}

	fields := log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"currency":     res.Currency.Name,
		"amount":       res.Bet,
		"won":          res.Won,
	}
	if res.Won {
		s.metrics.Minted("gamble", res.Bet)
		s.metrics.Action("gamble", metrics.OutcomeWin)
	} else {
		s.metrics.Action("gamble", metrics.OutcomeLoss)
	}
	if res.JackpotTriggered() {
		s.metrics.JackpotPayout()
		fields["jackpot"] = res.Jackpot
	}
	log.WithFields(fields).Info("Ставка сыграна")

	if err := s.saver.Flush(ctx); err != nil {
		s.metrics.Action("gamble", metrics.OutcomeSaveFail)
		return &res, err
	}
	return &res, nil
}

// sweepPots переводит все положительные джекпоты сообщества победителю и обнуляет их.
func sweepPots(tx *ledger.Tx, communityID, userID int64) ([]ledger.Holding, error) {
	pots := tx.Pots(communityID)
	for _, pot := range pots {
		if _, err := tx.AdjustPot(communityID, pot.Currency, -pot.Amount); err != nil {
			return nil, err
		}
		if _, err := tx.AdjustBalance(communityID, pot.Currency, userID, pot.Amount); err != nil {
			return nil, err
		}
	}
	return pots, nil
}

// Jackpots возвращает текущие джекпоты сообщества.
func (s *Service) Jackpots(communityID int64) []ledger.Holding {
	var out []ledger.Holding
	_ = s.store.View(func(tx *ledger.Tx) error {
		out = tx.Pots(communityID)
		return nil
	})
	return out
}

func (s *Service) reject(req common.Request, err error) {
	s.metrics.Action("gamble", metrics.OutcomeRejected)
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"currency":     req.Currency,
		"amount":       req.Amount,
	}).WithError(err).Debug("Ставка отклонена")
}
