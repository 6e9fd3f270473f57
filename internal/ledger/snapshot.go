package ledger

import (
	"cmp"
	"slices"
	"time"
)

// Строки снапшота повторяют таблицы хранилища.

type CurrencyRow struct {
	CommunityID int64
	Name        string
	Emoji       string
}

type BalanceRow struct {
	CommunityID int64
	UserID      int64
	Currency    string
	Amount      int64
}

// CooldownRow — время последнего действия в секундах с эпохи.
type CooldownRow struct {
	CommunityID int64
	UserID      int64
	Action      Action
	LastUsed    float64
}

// Unset — значение колонки кулдауна, которое хранится как NULL.
const Unset int64 = -1

// SettingsRow — кулдауны сообщества в секундах, Unset = по умолчанию.
type SettingsRow struct {
	CommunityID int64
	Homework    int64
	OfficeHours int64
	Rob         int64
}

type JackpotRow struct {
	CommunityID int64
	Currency    string
	Amount      int64
}

type InventoryRow struct {
	CommunityID int64
	UserID      int64
	Item        string
	Quantity    int64
}

type BuffRow struct {
	CommunityID int64
	UserID      int64
	Buff        string
}

// Snapshot — полное состояние хранилища в виде строк таблиц.
type Snapshot struct {
	Currencies  []CurrencyRow
	Balances    []BalanceRow
	Cooldowns   []CooldownRow
	Settings    []SettingsRow
	Jackpots    []JackpotRow
	Inventories []InventoryRow
	Buffs       []BuffRow
}

// Field возвращает указатель на колонку действия.
func (r *SettingsRow) Field(a Action) *int64 {
	switch a {
	case ActionHomework:
		return &r.Homework
	case ActionOfficeHours:
		return &r.OfficeHours
	case ActionRob:
		return &r.Rob
	}
	return nil
}

// ToSeconds переводит время в дробные секунды.
func ToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromSeconds обратна ToSeconds.
func FromSeconds(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9))
}

// Snapshot снимает копию состояния.
func (s *Store) Snapshot() *Snapshot {
	snap, _ := s.SnapshotVersion()
	return snap
}

// SnapshotVersion снимает копию состояния вместе с версией.
// Строки отсортированы, чтобы снапшоты можно было сравнивать.
func (s *Store) SnapshotVersion() (*Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{}
	for k, emoji := range s.currencies {
		snap.Currencies = append(snap.Currencies, CurrencyRow{k.community, k.name, emoji})
	}
	for k, amount := range s.balances {
		snap.Balances = append(snap.Balances, BalanceRow{k.community, k.user, k.currency, amount})
	}
	for k, t := range s.lastUsed {
		snap.Cooldowns = append(snap.Cooldowns, CooldownRow{k.community, k.user, k.action, ToSeconds(t)})
	}

	settings := make(map[int64]*SettingsRow)
	for k, d := range s.cooldowns {
		row, ok := settings[k.community]
		if !ok {
			row = &SettingsRow{CommunityID: k.community, Homework: Unset, OfficeHours: Unset, Rob: Unset}
			settings[k.community] = row
		}
		if f := row.Field(k.action); f != nil {
			*f = int64(d / time.Second)
		}
	}
	for _, row := range settings {
		snap.Settings = append(snap.Settings, *row)
	}

	for k, amount := range s.pots {
		snap.Jackpots = append(snap.Jackpots, JackpotRow{k.community, k.name, amount})
	}
	for k, qty := range s.items {
		snap.Inventories = append(snap.Inventories, InventoryRow{k.community, k.user, k.item, qty})
	}
	for k := range s.buffs {
		snap.Buffs = append(snap.Buffs, BuffRow{k.community, k.user, k.buff})
	}

	snap.sort()
	return snap, s.version
}

func (snap *Snapshot) sort() {
	slices.SortFunc(snap.Currencies, func(a, b CurrencyRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.Name, b.Name))
	})
	slices.SortFunc(snap.Balances, func(a, b BalanceRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.Currency, b.Currency), cmp.Compare(a.UserID, b.UserID))
	})
	slices.SortFunc(snap.Cooldowns, func(a, b CooldownRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.UserID, b.UserID), cmp.Compare(a.Action, b.Action))
	})
	slices.SortFunc(snap.Settings, func(a, b SettingsRow) int {
		return cmp.Compare(a.CommunityID, b.CommunityID)
	})
	slices.SortFunc(snap.Jackpots, func(a, b JackpotRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.Currency, b.Currency))
	})
	slices.SortFunc(snap.Inventories, func(a, b InventoryRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.UserID, b.UserID), cmp.Compare(a.Item, b.Item))
	})
	slices.SortFunc(snap.Buffs, func(a, b BuffRow) int {
		return cmp.Or(cmp.Compare(a.CommunityID, b.CommunityID), cmp.Compare(a.UserID, b.UserID), cmp.Compare(a.Buff, b.Buff))
	})
}

// Restore заменяет состояние содержимым снапшота.
// Балансы и джекпоты несуществующих валют, а также нулевые записи пропускаются.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if snap == nil {
		s.version++
		return
	}
	for _, r := range snap.Currencies {
		s.currencies[currencyKey{r.CommunityID, r.Name}] = r.Emoji
	}
	for _, r := range snap.Balances {
		if _, ok := s.currencies[currencyKey{r.CommunityID, r.Currency}]; !ok || r.Amount <= 0 {
			continue
		}
		s.balances[balanceKey{r.CommunityID, r.Currency, r.UserID}] = r.Amount
	}
	for _, r := range snap.Cooldowns {
		s.lastUsed[cooldownKey{r.CommunityID, r.UserID, r.Action}] = FromSeconds(r.LastUsed)
	}
	for _, r := range snap.Settings {
		for _, a := range Actions {
			row := r
			if v := *row.Field(a); v >= 0 {
				s.cooldowns[settingKey{r.CommunityID, a}] = time.Duration(v) * time.Second
			}
		}
	}
	for _, r := range snap.Jackpots {
		if _, ok := s.currencies[currencyKey{r.CommunityID, r.Currency}]; !ok || r.Amount <= 0 {
			continue
		}
		s.pots[currencyKey{r.CommunityID, r.Currency}] = r.Amount
	}
	for _, r := range snap.Inventories {
		if r.Quantity > 0 {
			s.items[itemKey{r.CommunityID, r.UserID, r.Item}] = r.Quantity
		}
	}
	for _, r := range snap.Buffs {
		s.buffs[buffKey{r.CommunityID, r.UserID, r.Buff}] = struct{}{}
	}
	s.version++
}
