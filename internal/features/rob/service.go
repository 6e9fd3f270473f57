package rob

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Service проводит ограбления.
type Service struct {
	store   *ledger.Store
	saver   ledger.Saver
	rng     common.Rand
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService создаёт сервис ограблений.
func NewService(store *ledger.Store, saver ledger.Saver, rng common.Rand, m *metrics.Metrics) *Service {
	return &Service{store: store, saver: saver, rng: rng, metrics: m, now: time.Now}
}

// Rob пытается украсть у req.TargetUserID случайную валюту.
//
// Порядок проверок: цель не бот, цель не сам грабитель, в сообществе есть валюты,
// кулдаун rob открыт. Щит цели сгорает и блокирует попытку без кулдауна.
// Если у цели ничего нет, попытка отклоняется без кулдауна.
func (s *Service) Rob(ctx context.Context, req common.Request) (*Result, error) {
	switch {
	case req.TargetIsBot:
		s.reject(req, common.ErrBotTarget)
		return nil, common.ErrBotTarget
	case req.TargetUserID == 0:
		s.reject(req, common.ErrUserNotFound)
		return nil, common.ErrUserNotFound
	case req.TargetUserID == req.UserID:
		s.reject(req, common.ErrSelfTarget)
		return nil, common.ErrSelfTarget
	}

	now := s.now()
	var res Result
	err := s.store.Update(func(tx *ledger.Tx) error {
		c, actor, target := req.CommunityID, req.UserID, req.TargetUserID

		if !tx.HasCurrencies(c) {
			return common.ErrNoCurrencies
		}
		if err := tx.Gate(c, actor, ledger.ActionRob, now).Err(ledger.ActionRob); err != nil {
			return err
		}

		shielded, err := tx.RemoveBuff(c, target, ledger.BuffShield)
		if err != nil {
			return err
		}
		if shielded {
			res.Blocked = true
			return nil
		}

		var candidates []ledger.Currency
		for _, cur := range tx.Currencies(c) {
			if tx.Balance(c, cur.Name, target) > 0 {
				candidates = append(candidates, cur)
			}
		}
		if len(candidates) == 0 {
			return common.ErrNothingToSteal
		}

		cur := candidates[s.rng.IntN(len(candidates))]
		res.Currency = cur
		res.Amount = common.RandRange(s.rng, 1, min(MaxTake, tx.Balance(c, cur.Name, target)))

		if s.rng.Float64() < SuccessChance {
			res.Success = true
			if _, err := tx.AdjustBalance(c, cur.Name, target, -res.Amount); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(c, cur.Name, actor, res.Amount); err != nil {
				return err
			}
		} else if have := tx.Balance(c, cur.Name, actor); have > 0 {
			res.Penalty = common.RandRange(s.rng, 1, min(MaxTake, have))
			if _, err := tx.AdjustBalance(c, cur.Name, actor, -res.Penalty); err != nil {
				return err
			}
			if _, err := tx.AdjustPot(c, cur.Name, res.Penalty); err != nil {
				return err
			}
		}

		res.ActorBalance = tx.Balance(c, cur.Name, actor)
		res.TargetBalance = tx.Balance(c, cur.Name, target)
		res.Pot = tx.Pot(c, cur.Name)
		return tx.SetLastUsed(c, actor, ledger.ActionRob, now)
	})
	if err != nil {
		s.reject(req, err)
		return nil, err
	}

	fields := log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"target_id":    req.TargetUserID,
	}
	switch {
	case res.Blocked:
		s.metrics.Action("rob", metrics.OutcomeBlocked)
		log.WithFields(fields).Info("Ограбление отбито щитом")
	case res.Success:
		s.metrics.Action("rob", metrics.OutcomeWin)
		fields["currency"], fields["amount"] = res.Currency.Name, res.Amount
		log.WithFields(fields).Info("Ограбление удалось")
	default:
		s.metrics.Action("rob", metrics.OutcomeLoss)
		fields["currency"], fields["penalty"] = res.Currency.Name, res.Penalty
		log.WithFields(fields).Info("Ограбление провалилось")
	}

	if err := s.saver.Flush(ctx); err != nil {
		s.metrics.Action("rob", metrics.OutcomeSaveFail)
		return &res, err
	}
	return &res, nil
}

func (s *Service) reject(req common.Request, err error) {
	s.metrics.Action("rob", metrics.OutcomeRejected)
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"target_id":    req.TargetUserID,
	}).WithError(err).Debug("Ограбление отклонено")
}
