// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Kind — категория отказа.
type Kind int

const (
	KindInternal     Kind = iota // Нарушение инварианта или неизвестная ошибка
	KindValidation               // Некорректный ввод
	KindNotFound                 // Валюта, предмет, предложение не найдены
	KindPrecondition             // Не хватает средств, кулдаун, дубликат и т.п.
	KindPersistence              // Состояние изменено, но не сохранено
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// KindOf возвращает категорию ошибки (с учётом обёрток).
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// IsRejection — отказ, который пользователь может исправить сам.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindPrecondition:
		return true
	}
	return false
}

// Ошибки валидации
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = newError(KindValidation, "сумма должна быть положительной")
	// ErrSelfTarget — действие направлено на самого себя
	ErrSelfTarget = newError(KindValidation, "нельзя выбрать целью самого себя")
	// ErrBotTarget — цель является ботом
	ErrBotTarget = newError(KindValidation, "нельзя выбрать целью бота")
	// ErrNegativeCooldown — отрицательная длительность кулдауна
	ErrNegativeCooldown = newError(KindValidation, "кулдаун должен быть 0 или больше")
	// ErrInvalidCooldown — кулдаун длиннее года или не в целых секундах
	ErrInvalidCooldown = newError(KindValidation, "кулдаун задаётся целым числом секунд, не больше года")
	// ErrNegativeBalance — попытка выставить отрицательный баланс
	ErrNegativeBalance = newError(KindValidation, "баланс не может быть отрицательным")
	// ErrInvalidEmoji — эмодзи не распознано
	ErrInvalidEmoji = newError(KindValidation, "некорректное эмодзи: нужен Unicode-эмодзи или <:name:id>")
	// ErrInvalidName — пустое или слишком длинное название
	ErrInvalidName = newError(KindValidation, "некорректное название (1–32 символа, без пробелов)")
	// ErrUnknownAction — действие без кулдауна
	ErrUnknownAction = newError(KindValidation, "неизвестное действие (homework, officehours, rob)")
	// ErrSameParty — обе стороны обмена совпадают
	ErrSameParty = newError(KindValidation, "нельзя меняться с самим собой")
)

// Ошибки «не найдено»
var (
	// ErrCurrencyNotFound — валюты нет в сообществе
	ErrCurrencyNotFound = newError(KindNotFound, "валюта не найдена")
	// ErrNoCurrencies — в сообществе ещё нет ни одной валюты
	ErrNoCurrencies = newError(KindNotFound, "в этом чате ещё нет валют")
	// ErrItemNotFound — предмета нет в магазине
	ErrItemNotFound = newError(KindNotFound, "такого предмета нет в магазине")
	// ErrItemNotOwned — предмета нет в инвентаре
	ErrItemNotOwned = newError(KindNotFound, "у тебя нет такого предмета")
	// ErrNothingToSteal — у цели нет ни одной монеты
	ErrNothingToSteal = newError(KindNotFound, "у цели нечего красть")
	// ErrProposalNotFound — предложение не найдено (или уже закрыто и удалено)
	ErrProposalNotFound = newError(KindNotFound, "предложение не найдено")
	// ErrRemovalNotFound — запрос на удаление не найден или уже закрыт
	ErrRemovalNotFound = newError(KindNotFound, "запрос на удаление не найден")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = newError(KindNotFound, "пользователь не найден")
)

// Ошибки предусловий
var (
	// ErrInsufficientBalance — недостаточно средств на счёте
	ErrInsufficientBalance = newError(KindPrecondition, "недостаточно средств на счёте")
	// ErrOnCooldown — действие ещё на кулдауне
	ErrOnCooldown = newError(KindPrecondition, "действие ещё на кулдауне")
	// ErrCurrencyExists — валюта с таким названием уже есть
	ErrCurrencyExists = newError(KindPrecondition, "валюта с таким названием уже существует")
	// ErrBuffActive — эффект уже активен
	ErrBuffActive = newError(KindPrecondition, "этот эффект уже активен")
	// ErrNotParticipant — пользователь не участвует в предложении
	ErrNotParticipant = newError(KindPrecondition, "это не твоё предложение")
	// ErrProposalClosed — предложение уже завершено
	ErrProposalClosed = newError(KindPrecondition, "предложение уже закрыто")
	// ErrProposalExpired — время на подтверждение вышло
	ErrProposalExpired = newError(KindPrecondition, "время на подтверждение истекло")
	// ErrNotRequester — подтверждать удаление может только его автор
	ErrNotRequester = newError(KindPrecondition, "подтвердить или отменить может только автор запроса")
	// ErrRemovalPending — по валюте уже ждёт подтверждения удаление
	ErrRemovalPending = newError(KindPrecondition, "удаление этой валюты уже ожидает подтверждения")
)

// Ошибки хранилища и инвариантов
var (
	// ErrSaveFailed — изменения применены в памяти, но не записаны в БД
	ErrSaveFailed = newError(KindPersistence, "не удалось сохранить изменения")
	// ErrNegativeState — мутация оставила бы отрицательное значение
	ErrNegativeState = newError(KindInternal, "операция привела бы к отрицательному значению")
	// ErrReadOnly — попытка изменить состояние в режиме чтения
	ErrReadOnly = newError(KindInternal, "состояние открыто только для чтения")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrLoginDisabled — хеш пароля не задан
	ErrLoginDisabled = errors.New("вход по паролю отключён")
)

// CooldownError — отказ из-за кулдауна с оставшимся временем.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: осталось %s", ErrOnCooldown.Error(), FormatDuration(e.Remaining))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }

// BalanceError — отказ из-за нехватки средств с текущим балансом.
type BalanceError struct {
	Currency string
	Have     int64
	Need     int64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s: нужно %d %s, есть %d", ErrInsufficientBalance.Error(), e.Need, e.Currency, e.Have)
}

func (e *BalanceError) Unwrap() error { return ErrInsufficientBalance }
