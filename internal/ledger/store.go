package ledger

import (
	"sort"
	"strings"
	"sync"
	"time"

	"serotonyl.ru/currency-bot/internal/common"
)

type currencyKey struct {
	community int64
	name      string
}

type balanceKey struct {
	community int64
	currency  string
	user      int64
}

type itemKey struct {
	community int64
	user      int64
	item      string
}

type buffKey struct {
	community int64
	user      int64
	buff      string
}

type cooldownKey struct {
	community int64
	user      int64
	action    Action
}

type settingKey struct {
	community int64
	action    Action
}

// Store хранит состояние всех сообществ.
// Любое изменение идёт через Update, чтение через View.
type Store struct {
	mu sync.Mutex

	currencies map[currencyKey]string // -> emoji
	balances   map[balanceKey]int64
	pots       map[currencyKey]int64
	items      map[itemKey]int64
	buffs      map[buffKey]struct{}
	lastUsed   map[cooldownKey]time.Time
	cooldowns  map[settingKey]time.Duration

	defaultCooldown time.Duration
	version         uint64
}

// NewStore создаёт пустое хранилище. defaultCooldown <= 0 заменяется на DefaultCooldown.
func NewStore(defaultCooldown time.Duration) *Store {
	if defaultCooldown <= 0 {
		defaultCooldown = DefaultCooldown
	}
	s := &Store{defaultCooldown: defaultCooldown}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.currencies = make(map[currencyKey]string)
	s.balances = make(map[balanceKey]int64)
	s.pots = make(map[currencyKey]int64)
	s.items = make(map[itemKey]int64)
	s.buffs = make(map[buffKey]struct{})
	s.lastUsed = make(map[cooldownKey]time.Time)
	s.cooldowns = make(map[settingKey]time.Duration)
}

// Version растёт при каждом Update, который что-то изменил.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Update выполняет fn в критической секции.
// Если fn вернула ошибку или запаниковала, все её записи откатываются.
func (s *Store) Update(fn func(tx *Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{s: s, writable: true}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if len(tx.undo) > 0 {
		s.version++
	}
	return nil
}

// View выполняет fn только для чтения.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Tx — доступ к состоянию внутри Update или View.
type Tx struct {
	s        *Store
	writable bool
	undo     []func()
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *Tx) mutable() error {
	if !tx.writable {
		return common.ErrReadOnly
	}
	return nil
}

// put записывает значение и запоминает, как его вернуть.
func put[K comparable, V any](tx *Tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	tx.undo = append(tx.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// drop удаляет ключ и запоминает прежнее значение.
func drop[K comparable, V any](tx *Tx, m map[K]V, k K) {
	old, existed := m[k]
	if !existed {
		return
	}
	tx.undo = append(tx.undo, func() { m[k] = old })
	delete(m, k)
}

// --- Валюты ---

// Currencies возвращает валюты сообщества по алфавиту.
func (tx *Tx) Currencies(community int64) []Currency {
	var out []Currency
	for k, emoji := range tx.s.currencies {
		if k.community == community {
			out = append(out, Currency{CommunityID: community, Name: k.name, Emoji: emoji})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Currency ищет валюту по точному названию.
func (tx *Tx) Currency(community int64, name string) (Currency, bool) {
	emoji, ok := tx.s.currencies[currencyKey{community, name}]
	if !ok {
		return Currency{}, false
	}
	return Currency{CommunityID: community, Name: name, Emoji: emoji}, true
}

// LookupCurrency ищет валюту по точному названию, а если такой нет,
// по единственному совпадению без учёта регистра.
func (tx *Tx) LookupCurrency(community int64, name string) (Currency, bool) {
	if c, ok := tx.Currency(community, name); ok {
		return c, true
	}
	var found []Currency
	for k, emoji := range tx.s.currencies {
		if k.community == community && strings.EqualFold(k.name, name) {
			found = append(found, Currency{CommunityID: community, Name: k.name, Emoji: emoji})
		}
	}
	if len(found) != 1 {
		return Currency{}, false
	}
	return found[0], true
}

// RequireCurrency — LookupCurrency с ошибкой ErrCurrencyNotFound.
func (tx *Tx) RequireCurrency(community int64, name string) (Currency, error) {
	c, ok := tx.LookupCurrency(community, name)
	if !ok {
		return Currency{}, common.ErrCurrencyNotFound
	}
	return c, nil
}

// HasCurrencies сообщает, есть ли в сообществе хотя бы одна валюта.
func (tx *Tx) HasCurrencies(community int64) bool {
	for k := range tx.s.currencies {
		if k.community == community {
			return true
		}
	}
	return false
}

// CreateCurrency добавляет валюту после проверки названия и эмодзи.
func (tx *Tx) CreateCurrency(community int64, name, emoji string) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateEmoji(emoji); err != nil {
		return err
	}
	if tx.nameTaken(community, name, "") {
		return common.ErrCurrencyExists
	}
	put(tx, tx.s.currencies, currencyKey{community, name}, emoji)
	return nil
}

// nameTaken — в сообществе есть другая валюта с тем же названием без учёта регистра.
func (tx *Tx) nameTaken(community int64, name, except string) bool {
	for k := range tx.s.currencies {
		if k.community == community && k.name != except && strings.EqualFold(k.name, name) {
			return true
		}
	}
	return false
}

// RenameCurrency переименовывает валюту, перенося балансы, джекпот и эмодзи.
func (tx *Tx) RenameCurrency(community int64, oldName, newName string) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	oldKey, newKey := currencyKey{community, oldName}, currencyKey{community, newName}
	emoji, ok := tx.s.currencies[oldKey]
	if !ok {
		return common.ErrCurrencyNotFound
	}
	if tx.nameTaken(community, newName, oldName) {
		return common.ErrCurrencyExists
	}

	drop(tx, tx.s.currencies, oldKey)
	put(tx, tx.s.currencies, newKey, emoji)

	for k, amount := range tx.s.balances {
		if k.community == community && k.currency == oldName {
			drop(tx, tx.s.balances, k)
			put(tx, tx.s.balances, balanceKey{community, newName, k.user}, amount)
		}
	}
	if pot, ok := tx.s.pots[oldKey]; ok {
		drop(tx, tx.s.pots, oldKey)
		put(tx, tx.s.pots, newKey, pot)
	}
	return nil
}

// DeleteCurrency удаляет валюту, все её балансы и джекпот.
// Возвращает сколько монет сгорело (балансы плюс джекпот).
func (tx *Tx) DeleteCurrency(community int64, name string) (int64, error) {
	if err := tx.mutable(); err != nil {
		return 0, err
	}
	k := currencyKey{community, name}
	if _, ok := tx.s.currencies[k]; !ok {
		return 0, common.ErrCurrencyNotFound
	}
	var burned int64
	for bk, amount := range tx.s.balances {
		if bk.community == community && bk.currency == name {
			burned += amount
			drop(tx, tx.s.balances, bk)
		}
	}
	burned += tx.s.pots[k]
	drop(tx, tx.s.pots, k)
	drop(tx, tx.s.currencies, k)
	return burned, nil
}

// --- Балансы ---

// Balance возвращает баланс (0, если записи нет).
func (tx *Tx) Balance(community int64, currency string, user int64) int64 {
	return tx.s.balances[balanceKey{community, currency, user}]
}

// AdjustBalance изменяет баланс на delta и возвращает новый.
// Отрицательный итог отклоняется с ErrNegativeState без изменений.
func (tx *Tx) AdjustBalance(community int64, currency string, user, delta int64) (int64, error) {
	if err := tx.mutable(); err != nil {
		return 0, err
	}
	if _, ok := tx.s.currencies[currencyKey{community, currency}]; !ok {
		return 0, common.ErrCurrencyNotFound
	}
	k := balanceKey{community, currency, user}
	next := tx.s.balances[k] + delta
	if next < 0 {
		return 0, common.ErrNegativeState
	}
	if delta != 0 {
		tx.setBalance(k, next)
	}
	return next, nil
}

// SetBalance выставляет абсолютное значение баланса.
func (tx *Tx) SetBalance(community int64, currency string, user, amount int64) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if amount < 0 {
		return common.ErrNegativeBalance
	}
	if _, ok := tx.s.currencies[currencyKey{community, currency}]; !ok {
		return common.ErrCurrencyNotFound
	}
	tx.setBalance(balanceKey{community, currency, user}, amount)
	return nil
}

func (tx *Tx) setBalance(k balanceKey, amount int64) {
	if amount == 0 {
		drop(tx, tx.s.balances, k)
		return
	}
	put(tx, tx.s.balances, k, amount)
}

// Holdings возвращает баланс пользователя по каждой валюте сообщества, включая нули.
func (tx *Tx) Holdings(community, user int64) []Holding {
	currencies := tx.Currencies(community)
	out := make([]Holding, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, Holding{
			Currency: c.Name,
			Emoji:    c.Emoji,
			Amount:   tx.Balance(community, c.Name, user),
		})
	}
	return out
}

// Holders возвращает держателей валюты с положительным балансом,
// по убыванию суммы, при равенстве по возрастанию ID.
func (tx *Tx) Holders(community int64, currency string) []Holder {
	var out []Holder
	for k, amount := range tx.s.balances {
		if k.community == community && k.currency == currency && amount > 0 {
			out = append(out, Holder{UserID: k.user, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// --- Джекпоты ---

// Pot возвращает джекпот валюты.
func (tx *Tx) Pot(community int64, currency string) int64 {
	return tx.s.pots[currencyKey{community, currency}]
}

// AdjustPot изменяет джекпот на delta. Отрицательный итог отклоняется.
func (tx *Tx) AdjustPot(community int64, currency string, delta int64) (int64, error) {
	if err := tx.mutable(); err != nil {
		return 0, err
	}
	k := currencyKey{community, currency}
	if _, ok := tx.s.currencies[k]; !ok {
		return 0, common.ErrCurrencyNotFound
	}
	next := tx.s.pots[k] + delta
	if next < 0 {
		return 0, common.ErrNegativeState
	}
	switch {
	case delta == 0:
	case next == 0:
		drop(tx, tx.s.pots, k)
	default:
		put(tx, tx.s.pots, k, next)
	}
	return next, nil
}

// Pots возвращает положительные джекпоты сообщества по алфавиту валют.
func (tx *Tx) Pots(community int64) []Holding {
	var out []Holding
	for _, c := range tx.Currencies(community) {
		if amount := tx.Pot(community, c.Name); amount > 0 {
			out = append(out, Holding{Currency: c.Name, Emoji: c.Emoji, Amount: amount})
		}
	}
	return out
}

// --- Инвентарь ---

// Quantity возвращает количество предмета у пользователя.
func (tx *Tx) Quantity(community, user int64, item string) int64 {
	return tx.s.items[itemKey{community, user, item}]
}

// AddItem кладёт n штук предмета в инвентарь.
func (tx *Tx) AddItem(community, user int64, item string, n int64) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if n <= 0 {
		return common.ErrInvalidAmount
	}
	k := itemKey{community, user, item}
	put(tx, tx.s.items, k, tx.s.items[k]+n)
	return nil
}

// RemoveItem забирает n штук предмета. Запись с нулём удаляется.
func (tx *Tx) RemoveItem(community, user int64, item string, n int64) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if n <= 0 {
		return common.ErrInvalidAmount
	}
	k := itemKey{community, user, item}
	have := tx.s.items[k]
	switch {
	case have == 0:
		return common.ErrItemNotOwned
	case have < n:
		return common.ErrNegativeState
	case have == n:
		drop(tx, tx.s.items, k)
	default:
		put(tx, tx.s.items, k, have-n)
	}
	return nil
}

// Inventory возвращает предметы пользователя по алфавиту.
func (tx *Tx) Inventory(community, user int64) []ItemStack {
	var out []ItemStack
	for k, qty := range tx.s.items {
		if k.community == community && k.user == user {
			out = append(out, ItemStack{Item: k.item, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// --- Баффы ---

// HasBuff сообщает, активен ли бафф.
func (tx *Tx) HasBuff(community, user int64, buff string) bool {
	_, ok := tx.s.buffs[buffKey{community, user, buff}]
	return ok
}

// AddBuff активирует бафф. Повторная активация — ErrBuffActive.
func (tx *Tx) AddBuff(community, user int64, buff string) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	k := buffKey{community, user, buff}
	if _, ok := tx.s.buffs[k]; ok {
		return common.ErrBuffActive
	}
	put(tx, tx.s.buffs, k, struct{}{})
	return nil
}

// RemoveBuff снимает бафф и сообщает, был ли он активен.
func (tx *Tx) RemoveBuff(community, user int64, buff string) (bool, error) {
	if err := tx.mutable(); err != nil {
		return false, err
	}
	k := buffKey{community, user, buff}
	if _, ok := tx.s.buffs[k]; !ok {
		return false, nil
	}
	drop(tx, tx.s.buffs, k)
	return true, nil
}

// Buffs возвращает активные баффы пользователя по алфавиту.
func (tx *Tx) Buffs(community, user int64) []string {
	var out []string
	for k := range tx.s.buffs {
		if k.community == community && k.user == user {
			out = append(out, k.buff)
		}
	}
	sort.Strings(out)
	return out
}

// --- Кулдауны ---

// LastUsed возвращает время последнего успешного действия (эпоха 0, если не было).
func (tx *Tx) LastUsed(community, user int64, action Action) time.Time {
	if t, ok := tx.s.lastUsed[cooldownKey{community, user, action}]; ok {
		return t
	}
	return time.Unix(0, 0)
}

// SetLastUsed записывает время действия.
func (tx *Tx) SetLastUsed(community, user int64, action Action, at time.Time) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	put(tx, tx.s.lastUsed, cooldownKey{community, user, action}, at)
	return nil
}

// ClearLastUsed сбрасывает кулдаун пользователя.
func (tx *Tx) ClearLastUsed(community, user int64, action Action) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	drop(tx, tx.s.lastUsed, cooldownKey{community, user, action})
	return nil
}

// Cooldown возвращает настроенный кулдаун действия.
func (tx *Tx) Cooldown(community int64, action Action) time.Duration {
	if d, ok := tx.s.cooldowns[settingKey{community, action}]; ok {
		return d
	}
	return tx.s.defaultCooldown
}

// MaxCooldown — самый длинный кулдаун, который можно настроить.
const MaxCooldown = 365 * 24 * time.Hour

// SetCooldown задаёт кулдаун действия для сообщества.
// Хранится в целых секундах, поэтому дробные значения отклоняются.
func (tx *Tx) SetCooldown(community int64, action Action, d time.Duration) error {
	if err := tx.mutable(); err != nil {
		return err
	}
	if d < 0 {
		return common.ErrNegativeCooldown
	}
	if d > MaxCooldown || d%time.Second != 0 {
		return common.ErrInvalidCooldown
	}
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}
	put(tx, tx.s.cooldowns, settingKey{community, action}, d)
	return nil
}
