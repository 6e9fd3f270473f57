// Package shop — магазин предметов, инвентарь и баффы.
package shop

import (
	"strings"

	"serotonyl.ru/currency-bot/internal/ledger"
)

// Effect — что происходит при использовании предмета.
type Effect int

const (
	// EffectCooldownReset сбрасывает кулдаун ограбления.
	EffectCooldownReset Effect = iota + 1
	// EffectShield включает одноразовый щит от ограбления.
	EffectShield
)

// Item — позиция каталога. Цена одинакова в любой валюте.
type Item struct {
	Name        string
	Emoji       string
	Description string
	Price       int64
	Effect      Effect
}

// Catalog — каталог магазина.
var Catalog = []Item{
	{
		Name:        "coffee",
		Emoji:       "☕",
		Description: "сбрасывает кулдаун ограбления",
		Price:       25,
		Effect:      EffectCooldownReset,
	},
	{
		Name:        "shield",
		Emoji:       "🛡️",
		Description: "отбивает одно ограбление",
		Price:       40,
		Effect:      EffectShield,
	},
}

// Lookup ищет предмет без учёта регистра.
func Lookup(name string) (Item, bool) {
	for _, it := range Catalog {
		if strings.EqualFold(it.Name, strings.TrimSpace(name)) {
			return it, true
		}
	}
	return Item{}, false
}

// BuyResult — итог покупки.
type BuyResult struct {
	Item     Item
	Currency ledger.Currency
	Balance  int64
	Quantity int64
}

// UseResult — итог использования предмета.
type UseResult struct {
	Item      Item
	Remaining int64
}

// InventoryView — предметы и активные баффы пользователя.
type InventoryView struct {
	UserID int64
	Items  []ledger.ItemStack
	Buffs  []string
}
