// Package ledger — авторитетное состояние экономики в памяти:
// валюты, балансы, джекпоты, инвентари, баффы и кулдауны.
// Пакет не делает I/O: сохранением занимается Flusher через Persister.
package ledger

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"serotonyl.ru/currency-bot/internal/common"
)

// DefaultCooldown — кулдаун действия, если администратор его не задал.
const DefaultCooldown = 6 * time.Hour

// BuffShield — одноразовая защита от ограбления.
const BuffShield = "shield"

// Action — действие с кулдауном.
type Action string

const (
	ActionHomework    Action = "homework"
	ActionOfficeHours Action = "officehours"
	ActionRob         Action = "rob"
)

// Actions — все действия с кулдауном, в порядке колонок guild_settings.
var Actions = []Action{ActionHomework, ActionOfficeHours, ActionRob}

// ParseAction разбирает название действия без учёта регистра.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionHomework, ActionOfficeHours, ActionRob:
		return a, nil
	}
	return "", common.ErrUnknownAction
}

// Currency — валюта сообщества.
type Currency struct {
	CommunityID int64
	Name        string
	Emoji       string
}

// Holding — сумма в одной валюте (баланс пользователя или джекпот).
type Holding struct {
	Currency string
	Emoji    string
	Amount   int64
}

// Holder — держатель валюты для таблицы лидеров.
type Holder struct {
	UserID int64
	Amount int64
}

// ItemStack — предмет в инвентаре.
type ItemStack struct {
	Item     string
	Quantity int64
}

// Кастомное эмодзи: <:name:id> или анимированное <a:name:id>
var customEmojiRe = regexp.MustCompile(`^<a?:\w+:\d+>$`)

const (
	maxNameRunes  = 32
	maxEmojiRunes = 16
)

// ValidateEmoji принимает кастомное эмодзи или короткую последовательность
// Unicode-символов без пробелов, содержащую хотя бы один не-ASCII символ.
func ValidateEmoji(emoji string) error {
	if customEmojiRe.MatchString(emoji) {
		return nil
	}
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return common.ErrInvalidEmoji
	}
	hasSymbol := false
	for _, r := range emoji {
		if unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return common.ErrInvalidEmoji
		}
		if r > unicode.MaxASCII {
			hasSymbol = true
		}
	}
	if !hasSymbol {
		return common.ErrInvalidEmoji
	}
	return nil
}

// ValidateName проверяет название валюты: 1–32 символа без пробелов,
// чтобы его можно было передать одним аргументом команды.
func ValidateName(name string) error {
	if name == "" || name != strings.TrimSpace(name) {
		return common.ErrInvalidName
	}
	if utf8.RuneCountInString(name) > maxNameRunes || strings.ContainsFunc(name, unicode.IsSpace) {
		return common.ErrInvalidName
	}
	return nil
}
