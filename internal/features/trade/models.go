// Package trade — двусторонний обмен валютами с подтверждением обеих сторон.
package trade

import (
	"time"

	"serotonyl.ru/currency-bot/internal/common"
)

// DefaultTimeout — сколько живёт неподтверждённое предложение.
const DefaultTimeout = 60 * time.Second

// Status — состояние предложения.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	}
	return "unknown"
}

// Terms — условия обмена: инициатор отдаёт Give, получает Want.
type Terms struct {
	GiveCurrency string
	GiveEmoji    string
	GiveAmount   int64
	WantCurrency string
	WantEmoji    string
	WantAmount   int64
}

// Proposal — предложение обмена.
type Proposal struct {
	ID           string
	CommunityID  int64
	Initiator    int64
	Counterparty int64
	Terms        Terms
	Status       Status
	Deadline     time.Time

	InitiatorConfirmed    bool
	CounterpartyConfirmed bool

	// Сообщение с кнопками, чтобы обновить его после закрытия
	MessageID int
}

// IsParty сообщает, участвует ли пользователь в обмене.
func (p *Proposal) IsParty(userID int64) bool {
	return userID == p.Initiator || userID == p.Counterparty
}

// IsExpired — дедлайн прошёл, а предложение ещё открыто.
func (p *Proposal) IsExpired(now time.Time) bool {
	return p.Status == StatusPending && !now.Before(p.Deadline)
}

func (p *Proposal) check(userID int64, now time.Time) error {
	if p.IsExpired(now) {
		p.Status = StatusExpired
	}
	switch p.Status {
	case StatusPending:
	case StatusExpired:
		return common.ErrProposalExpired
	default:
		return common.ErrProposalClosed
	}
	if !p.IsParty(userID) {
		return common.ErrNotParticipant
	}
	return nil
}

// Confirm отмечает согласие стороны. ready = обе стороны согласны.
// Статус при этом не меняется: исполнение делает Manager.
func (p *Proposal) Confirm(userID int64, now time.Time) (ready bool, err error) {
	if err := p.check(userID, now); err != nil {
		return false, err
	}
	if userID == p.Initiator {
		p.InitiatorConfirmed = true
	} else {
		p.CounterpartyConfirmed = true
	}
	return p.InitiatorConfirmed && p.CounterpartyConfirmed, nil
}

// Cancel отменяет предложение. Может любая из сторон.
func (p *Proposal) Cancel(userID int64, now time.Time) error {
	if err := p.check(userID, now); err != nil {
		return err
	}
	p.Status = StatusCancelled
	return nil
}
