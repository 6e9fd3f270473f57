// Package jobs управляет фоновыми задачами (cron).
// scheduler.go закрывает просроченные обмены и удаления валют
// и повторяет сохранение, если последнее не удалось.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/features/admin"
	"serotonyl.ru/currency-bot/internal/features/trade"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// Flusher — то, что умеет повторить сохранение.
type Flusher interface {
	Flush(ctx context.Context) error
	Dirty() bool
}

// Specs — расписания задач в формате cron.
type Specs struct {
	Expire string // например "@every 5s"
	Flush  string // например "@every 30s"
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	specs    Specs
	trades   *trade.Manager
	tradeUI  *trade.Handler
	admin    *admin.Service
	removeUI *admin.Handler
	flusher  Flusher
	metrics  *metrics.Metrics
}

// NewScheduler создаёт планировщик задач в часовом поясе tz (пусто = UTC).
func NewScheduler(specs Specs, tz string, trades *trade.Manager, tradeUI *trade.Handler,
	adminSvc *admin.Service, removeUI *admin.Handler, flusher Flusher, m *metrics.Metrics) *Scheduler {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.WithError(err).WithField("tz", tz).Warn("Не удалось загрузить часовой пояс, используем UTC")
		} else {
			loc = l
		}
	}

	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:     c,
		specs:    specs,
		trades:   trades,
		tradeUI:  tradeUI,
		admin:    adminSvc,
		removeUI: removeUI,
		flusher:  flusher,
		metrics:  m,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.specs.Expire, func() { s.ExpirePending(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.specs.Expire, err)
	}
	if _, err := s.cron.AddFunc(s.specs.Flush, func() { s.RetryFlush(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.specs.Flush, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"expire": s.specs.Expire,
		"flush":  s.specs.Flush,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// ExpirePending закрывает просроченные обмены и удаления и обновляет их сообщения.
func (s *Scheduler) ExpirePending(ctx context.Context) {
	if s.trades != nil {
		if expired := s.trades.Expire(); len(expired) > 0 {
			log.WithField("count", len(expired)).Info("[CRON] Просрочены предложения обмена")
			if s.tradeUI != nil {
				s.tradeUI.NotifyExpired(ctx, expired)
			}
		}
	}
	if s.admin != nil {
		if expired := s.admin.ExpireRemovals(); len(expired) > 0 {
			log.WithField("count", len(expired)).Info("[CRON] Просрочены запросы на удаление валюты")
			if s.removeUI != nil {
				s.removeUI.NotifyExpired(ctx, expired)
			}
		}
	}
}

// RetryFlush повторяет сохранение, если прошлое не удалось.
func (s *Scheduler) RetryFlush(ctx context.Context) {
	if s.flusher == nil || !s.flusher.Dirty() {
		return
	}
	if err := s.flusher.Flush(ctx); err != nil {
		s.metrics.FlushFailed()
		log.WithError(err).Error("[CRON] Повторное сохранение не удалось")
		return
	}
	log.Info("[CRON] Отложенные изменения сохранены")
}
