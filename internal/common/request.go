package common

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Request — разобранная команда пользователя.
// Front end заполняет только нужные действию поля.
type Request struct {
	CommunityID  int64  // ID чата (сообщества)
	UserID       int64  // Кто вызвал команду
	TargetUserID int64  // Цель (give, rob, trade)
	TargetIsBot  bool   // Цель — бот или системный аккаунт
	Currency     string // Название валюты
	Amount       int64  // Сумма
	Item         string // Предмет магазина
}

// Rand — источник случайности для экономических действий.
// *rand.Rand из math/rand/v2 подходит напрямую.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// GlobalRand использует глобальный генератор math/rand/v2 (безопасен для горутин).
type GlobalRand struct{}

func (GlobalRand) IntN(n int) int   { return rand.IntN(n) }
func (GlobalRand) Float64() float64 { return rand.Float64() }

// RandRange возвращает равномерное целое из [lo, hi].
func RandRange(r Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(r.IntN(int(hi-lo+1)))
}

// ParseAmount разбирает положительную сумму из аргумента команды.
func ParseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// WithWarning дописывает к ответу предупреждение о несохранённом результате.
func WithWarning(text string, err error) string {
	if err == nil {
		return text
	}
	return text + "\n\n" + ErrorText(err)
}
