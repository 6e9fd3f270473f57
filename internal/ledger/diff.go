package ledger

// TableChanges — строки одной таблицы, которые надо записать или удалить.
// У удаляемых строк значимы только ключевые поля.
type TableChanges[R any] struct {
	Upserts []R
	Deletes []R
}

func (t TableChanges[R]) empty() bool { return len(t.Upserts) == 0 && len(t.Deletes) == 0 }

// Changes — точечные изменения между двумя снапшотами.
type Changes struct {
	Currencies  TableChanges[CurrencyRow]
	Balances    TableChanges[BalanceRow]
	Cooldowns   TableChanges[CooldownRow]
	Settings    TableChanges[SettingsRow]
	Jackpots    TableChanges[JackpotRow]
	Inventories TableChanges[InventoryRow]
	Buffs       TableChanges[BuffRow]
}

// Empty сообщает, что писать нечего.
func (c *Changes) Empty() bool {
	return c.Currencies.empty() && c.Balances.empty() && c.Cooldowns.empty() &&
		c.Settings.empty() && c.Jackpots.empty() && c.Inventories.empty() && c.Buffs.empty()
}

// Diff сравнивает снапшоты. prev == nil означает пустое хранилище.
func Diff(prev, next *Snapshot) *Changes {
	if prev == nil {
		prev = &Snapshot{}
	}
	if next == nil {
		next = &Snapshot{}
	}
	return &Changes{
		Currencies: diffRows(prev.Currencies, next.Currencies, func(r CurrencyRow) any {
			return currencyKey{r.CommunityID, r.Name}
		}),
		Balances: diffRows(prev.Balances, next.Balances, func(r BalanceRow) any {
			return balanceKey{r.CommunityID, r.Currency, r.UserID}
		}),
		Cooldowns: diffRows(prev.Cooldowns, next.Cooldowns, func(r CooldownRow) any {
			return cooldownKey{r.CommunityID, r.UserID, r.Action}
		}),
		Settings: diffRows(prev.Settings, next.Settings, func(r SettingsRow) any {
			return r.CommunityID
		}),
		Jackpots: diffRows(prev.Jackpots, next.Jackpots, func(r JackpotRow) any {
			return currencyKey{r.CommunityID, r.Currency}
		}),
		Inventories: diffRows(prev.Inventories, next.Inventories, func(r InventoryRow) any {
			return itemKey{r.CommunityID, r.UserID, r.Item}
		}),
		Buffs: diffRows(prev.Buffs, next.Buffs, func(r BuffRow) any {
			return buffKey{r.CommunityID, r.UserID, r.Buff}
		}),
	}
}

func diffRows[R comparable](prev, next []R, key func(R) any) TableChanges[R] {
	var out TableChanges[R]
	old := make(map[any]R, len(prev))
	for _, r := range prev {
		old[key(r)] = r
	}
	seen := make(map[any]struct{}, len(next))
	for _, r := range next {
		k := key(r)
		seen[k] = struct{}{}
		if was, ok := old[k]; !ok || was != r {
			out.Upserts = append(out.Upserts, r)
		}
	}
	for _, r := range prev {
		if _, ok := seen[key(r)]; !ok {
			out.Deletes = append(out.Deletes, r)
		}
	}
	return out
}
