// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм и длительностей, источник случайности.
package common

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatDuration форматирует длительность как «Ч:ММ:СС», с днями при необходимости.
// Доли секунды отбрасываются.
//
// Примеры:
//
//	FormatDuration(90 * time.Second) → "0:01:30"
//	FormatDuration(6 * time.Hour)    → "6:00:00"
//	FormatDuration(26 * time.Hour)   → "1д 2:00:00"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%dд %d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		// -n переполняется на MinInt64, модуль считаем в uint64
		return "-" + formatUnsigned(uint64(-(n+1))+1)
	}
	return formatUnsigned(uint64(n))
}

func formatUnsigned(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", formatUnsigned(n/1000), n%1000)
}

// FormatAmount создаёт строку вида "🪙 1 500 Gold".
func FormatAmount(emoji string, amount int64, currency string) string {
	if emoji == "" {
		return fmt.Sprintf("%s %s", FormatNumber(amount), currency)
	}
	return fmt.Sprintf("%s %s %s", emoji, FormatNumber(amount), currency)
}

// FormatSigned создаёт строку вида "+100" или "-50".
func FormatSigned(amount int64) string {
	if amount >= 0 {
		return "+" + FormatNumber(amount)
	}
	return FormatNumber(amount)
}

// AutocompleteLimit — сколько подсказок отдаём за раз.
const AutocompleteLimit = 25

// MatchNames отбирает названия, содержащие query без учёта регистра.
// Совпадения с начала строки идут первыми. Возвращает не больше AutocompleteLimit.
func MatchNames(names []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	var prefix, inner []string
	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, name)
		case strings.Contains(lower, q):
			inner = append(inner, name)
		}
	}
	sort.Strings(prefix)
	sort.Strings(inner)
	out := append(prefix, inner...)
	if len(out) > AutocompleteLimit {
		out = out[:AutocompleteLimit]
	}
	return out
}
