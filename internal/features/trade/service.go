package trade

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// ProposeRequest — параметры нового обмена.
type ProposeRequest struct {
	CommunityID  int64
	Initiator    int64
	Counterparty int64
	GiveCurrency string
	GiveAmount   int64
	WantCurrency string
	WantAmount   int64
}

// Manager хранит открытые предложения и исполняет их.
type Manager struct {
	store   *ledger.Store
	saver   ledger.Saver
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time

	// вызывается перед фиксацией обмена, только в тестах
	beforeCommit func(tx *ledger.Tx) error

	mu        sync.Mutex
	proposals map[string]*Proposal
}

// NewManager создаёт менеджер обменов. timeout <= 0 заменяется на DefaultTimeout.
func NewManager(store *ledger.Store, saver ledger.Saver, m *metrics.Metrics, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		store:     store,
		saver:     saver,
		metrics:   m,
		timeout:   timeout,
		now:       time.Now,
		proposals: make(map[string]*Proposal),
	}
}

// Propose проверяет условия и открывает предложение.
func (m *Manager) Propose(req ProposeRequest) (*Proposal, error) {
	if req.Initiator == req.Counterparty {
		return nil, common.ErrSameParty
	}
	if req.GiveAmount <= 0 || req.WantAmount <= 0 {
		return nil, common.ErrInvalidAmount
	}

	var terms Terms
	err := m.store.View(func(tx *ledger.Tx) error {
		give, err := tx.RequireCurrency(req.CommunityID, req.GiveCurrency)
		if err != nil {
			return err
		}
		want, err := tx.RequireCurrency(req.CommunityID, req.WantCurrency)
		if err != nil {
			return err
		}
		terms = Terms{
			GiveCurrency: give.Name, GiveEmoji: give.Emoji, GiveAmount: req.GiveAmount,
			WantCurrency: want.Name, WantEmoji: want.Emoji, WantAmount: req.WantAmount,
		}
		return checkFunds(tx, req.CommunityID, req.Initiator, req.Counterparty, terms)
	})
	if err != nil {
		m.metrics.Action("trade", metrics.OutcomeRejected)
		return nil, err
	}

	p := &Proposal{
		ID:           uuid.NewString(),
		CommunityID:  req.CommunityID,
		Initiator:    req.Initiator,
		Counterparty: req.Counterparty,
		Terms:        terms,
		Status:       StatusPending,
		Deadline:     m.now().Add(m.timeout),
	}

	m.mu.Lock()
	m.proposals[p.ID] = p
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"community_id": req.CommunityID,
		"trade_id":     p.ID,
		"initiator":    req.Initiator,
		"counterparty": req.Counterparty,
	}).Info("Предложение обмена создано")

	cp := *p
	return &cp, nil
}

// SetMessage запоминает сообщение с кнопками предложения.
func (m *Manager) SetMessage(id string, messageID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.proposals[id]; ok {
		p.MessageID = messageID
	}
}

// Confirm отмечает согласие стороны. Когда согласны обе, обмен исполняется:
// балансы проверяются заново, и четыре изменения применяются вместе.
// Если проверка не прошла, предложение закрывается.
// Если дедлайн уже прошёл, возвращается копия просроченного предложения
// вместе с ErrProposalExpired, чтобы обработчик обновил сообщение.
func (m *Manager) Confirm(ctx context.Context, id string, userID int64) (*Proposal, error) {
	p, err := m.confirm(id, userID)
	if err != nil || p.Status != StatusConfirmed {
		return p, err
	}

	// сохраняем уже без m.mu
	if err := m.saver.Flush(ctx); err != nil {
		m.metrics.Action("trade", metrics.OutcomeSaveFail)
		return p, err
	}
	m.metrics.Action("trade", metrics.OutcomeOK)
	return p, nil
}

// confirm меняет состояние под m.mu и возвращает копию предложения.
func (m *Manager) confirm(id string, userID int64) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return nil, common.ErrProposalNotFound
	}
	ready, err := p.Confirm(userID, m.now())
	if err != nil {
		return m.closeWithError(p, err)
	}
	if !ready {
		cp := *p
		return &cp, nil
	}

	err = m.store.Update(func(tx *ledger.Tx) error {
		return m.execute(tx, p)
	})
	if err != nil {
		p.Status = StatusCancelled
		m.closeIfDone(p)
		m.metrics.Action("trade", metrics.OutcomeRejected)
		log.WithField("trade_id", id).WithError(err).Info("Обмен не состоялся")
		return nil, err
	}

	p.Status = StatusConfirmed
	m.closeIfDone(p)
	log.WithFields(log.Fields{
		"community_id": p.CommunityID,
		"trade_id":     p.ID,
		"give":         p.Terms.GiveAmount,
		"give_cur":     p.Terms.GiveCurrency,
		"want":         p.Terms.WantAmount,
		"want_cur":     p.Terms.WantCurrency,
	}).Info("Обмен выполнен")

	cp := *p
	return &cp, nil
}

// closeWithError закрывает предложение после отказа. Просроченное
// возвращается копией: его сообщение ещё висит с кнопками.
func (m *Manager) closeWithError(p *Proposal, err error) (*Proposal, error) {
	m.closeIfDone(p)
	if p.Status != StatusExpired {
		return nil, err
	}
	m.metrics.Expired("trade", 1)
	log.WithField("trade_id", p.ID).Info("Предложение обмена просрочено")
	cp := *p
	return &cp, err
}

func (m *Manager) execute(tx *ledger.Tx, p *Proposal) error {
	t := p.Terms
	if _, err := tx.RequireCurrency(p.CommunityID, t.GiveCurrency); err != nil {
		return err
	}
	if _, err := tx.RequireCurrency(p.CommunityID, t.WantCurrency); err != nil {
		return err
	}
	if err := checkFunds(tx, p.CommunityID, p.Initiator, p.Counterparty, t); err != nil {
		return err
	}

	deltas := []struct {
		currency string
		user     int64
		delta    int64
	}{
		{t.GiveCurrency, p.Initiator, -t.GiveAmount},
		{t.WantCurrency, p.Counterparty, -t.WantAmount},
		{t.GiveCurrency, p.Counterparty, t.GiveAmount},
		{t.WantCurrency, p.Initiator, t.WantAmount},
	}
	for _, d := range deltas {
		if _, err := tx.AdjustBalance(p.CommunityID, d.currency, d.user, d.delta); err != nil {
			return err
		}
	}
	if m.beforeCommit != nil {
		return m.beforeCommit(tx)
	}
	return nil
}

func checkFunds(tx *ledger.Tx, communityID, initiator, counterparty int64, t Terms) error {
	if have := tx.Balance(communityID, t.GiveCurrency, initiator); have < t.GiveAmount {
		return &common.BalanceError{Currency: t.GiveCurrency, Have: have, Need: t.GiveAmount}
	}
	if have := tx.Balance(communityID, t.WantCurrency, counterparty); have < t.WantAmount {
		return &common.BalanceError{Currency: t.WantCurrency, Have: have, Need: t.WantAmount}
	}
	return nil
}

// Cancel отменяет предложение по просьбе одной из сторон.
func (m *Manager) Cancel(id string, userID int64) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return nil, common.ErrProposalNotFound
	}
	if err := p.Cancel(userID, m.now()); err != nil {
		return m.closeWithError(p, err)
	}
	m.closeIfDone(p)
	log.WithFields(log.Fields{"trade_id": id, "user_id": userID}).Info("Обмен отменён")
	cp := *p
	return &cp, nil
}

// Get возвращает копию предложения.
func (m *Manager) Get(id string) (*Proposal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Expire закрывает просроченные предложения и возвращает их.
func (m *Manager) Expire() []*Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []*Proposal
	for id, p := range m.proposals {
		if p.IsExpired(now) {
			p.Status = StatusExpired
			delete(m.proposals, id)
			cp := *p
			out = append(out, &cp)
		}
	}
	m.metrics.Expired("trade", len(out))
	return out
}

// Pending — количество открытых предложений.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proposals)
}

func (m *Manager) closeIfDone(p *Proposal) {
	if p.Status != StatusPending {
		delete(m.proposals, p.ID)
	}
}
