package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/common"
)

// Persister — хранилище, в которое зеркалируется состояние.
type Persister interface {
	// LoadAll читает все таблицы при старте.
	LoadAll(ctx context.Context) (*Snapshot, error)
	// Apply записывает изменения одной транзакцией.
	Apply(ctx context.Context, changes *Changes) error
}

// Saver — то, чем сервисы сохраняют состояние после изменения.
type Saver interface {
	Flush(ctx context.Context) error
}

// Flusher сравнивает текущее состояние с последним сохранённым
// и отправляет в Persister только разницу.
type Flusher struct {
	store *Store
	p     Persister

	mu          sync.Mutex // один Flush за раз
	last        *Snapshot
	lastVersion uint64
	dirty       atomic.Bool
}

// NewFlusher создаёт Flusher.
func NewFlusher(store *Store, p Persister) *Flusher {
	return &Flusher{store: store, p: p}
}

// Load загружает состояние из хранилища в Store.
func (f *Flusher) Load(ctx context.Context) error {
	snap, err := f.p.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки состояния: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.store.Restore(snap)
	// Базой для сравнения служит то, что реально попало в память
	f.last, f.lastVersion = f.store.SnapshotVersion()
	f.dirty.Store(false)

	log.WithFields(log.Fields{
		"currencies": len(f.last.Currencies),
		"balances":   len(f.last.Balances),
		"jackpots":   len(f.last.Jackpots),
	}).Info("Состояние экономики загружено")
	return nil
}

// Flush сохраняет изменения с прошлого успешного Flush.
// При ошибке память остаётся авторитетной, а Dirty() возвращает true.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, version := f.store.SnapshotVersion()
	if f.last != nil && version == f.lastVersion {
		return nil
	}

	changes := Diff(f.last, next)
	if !changes.Empty() {
		if err := f.p.Apply(ctx, changes); err != nil {
			f.dirty.Store(true)
			log.WithError(err).Error("Не удалось сохранить состояние экономики")
			return fmt.Errorf("%w: %v", common.ErrSaveFailed, err)
		}
	}

	f.last, f.lastVersion = next, version
	f.dirty.Store(false)
	return nil
}

// Dirty сообщает, что последний Flush не удался.
func (f *Flusher) Dirty() bool {
	return f.dirty.Load()
}
