package shop

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Service продаёт и применяет предметы.
type Service struct {
	store   *ledger.Store
	saver   ledger.Saver
	metrics *metrics.Metrics
}

// NewService создаёт сервис магазина.
func NewService(store *ledger.Store, saver ledger.Saver, m *metrics.Metrics) *Service {
	return &Service{store: store, saver: saver, metrics: m}
}

// Buy покупает req.Item за req.Currency. Цена сгорает.
func (s *Service) Buy(ctx context.Context, req common.Request) (*BuyResult, error) {
	item, ok := Lookup(req.Item)
	if !ok {
		s.reject("buy", req, common.ErrItemNotFound)
		return nil, common.ErrItemNotFound
	}

	var res BuyResult
	err := s.store.Update(func(tx *ledger.Tx) error {
		cur, err := tx.RequireCurrency(req.CommunityID, req.Currency)
		if err != nil {
			return err
		}
		have := tx.Balance(req.CommunityID, cur.Name, req.UserID)
		if have < item.Price {
			return &common.BalanceError{Currency: cur.Name, Have: have, Need: item.Price}
		}
		if res.Balance, err = tx.AdjustBalance(req.CommunityID, cur.Name, req.UserID, -item.Price); err != nil {
			return err
		}
		if err := tx.AddItem(req.CommunityID, req.UserID, item.Name, 1); err != nil {
			return err
		}
		res.Item = item
		res.Currency = cur
		res.Quantity = tx.Quantity(req.CommunityID, req.UserID, item.Name)
		return nil
	})
	if err != nil {
		s.reject("buy", req, err)
		return nil, err
	}

	s.metrics.Burned("shop", item.Price)
	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"item":         item.Name,
		"currency":     res.Currency.Name,
		"amount":       item.Price,
	}).Info("Покупка в магазине")

	return &res, s.save(ctx, "buy")
}

// Use применяет предмет из инвентаря.
func (s *Service) Use(ctx context.Context, req common.Request) (*UseResult, error) {
	item, ok := Lookup(req.Item)
	if !ok {
		s.reject("use", req, common.ErrItemNotFound)
		return nil, common.ErrItemNotFound
	}

	var res UseResult
	err := s.store.Update(func(tx *ledger.Tx) error {
		if tx.Quantity(req.CommunityID, req.UserID, item.Name) == 0 {
			return common.ErrItemNotOwned
		}
		switch item.Effect {
		case EffectCooldownReset:
			if err := tx.ClearLastUsed(req.CommunityID, req.UserID, ledger.ActionRob); err != nil {
				return err
			}
		case EffectShield:
			if err := tx.AddBuff(req.CommunityID, req.UserID, ledger.BuffShield); err != nil {
				return err
			}
		}
		if err := tx.RemoveItem(req.CommunityID, req.UserID, item.Name, 1); err != nil {
			return err
		}
		res.Item = item
		res.Remaining = tx.Quantity(req.CommunityID, req.UserID, item.Name)
		return nil
	})
	if err != nil {
		s.reject("use", req, err)
		return nil, err
	}

	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"user_id":      req.UserID,
		"item":         item.Name,
	}).Info("Предмет использован")

	return &res, s.save(ctx, "use")
}

// Inventory возвращает инвентарь пользователя (TargetUserID, иначе UserID).
func (s *Service) Inventory(req common.Request) *InventoryView {
	view := &InventoryView{UserID: req.UserID}
	if req.TargetUserID != 0 {
		view.UserID = req.TargetUserID
	}
	_ = s.store.View(func(tx *ledger.Tx) error {
		view.Items = tx.Inventory(req.CommunityID, view.UserID)
		view.Buffs = tx.Buffs(req.CommunityID, view.UserID)
		return nil
	})
	return view
}

// Autocomplete подсказывает названия предметов.
func (s *Service) Autocomplete(query string) []string {
	names := make([]string, 0, len(Catalog))
	for _, it := range Catalog {
		names = append(names, it.Name)
	}
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
		"item":         req.Item,
	}).WithError(err).Debug("Действие магазина отклонено")
}
