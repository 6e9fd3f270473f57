// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: открывает хранилище, поднимает журнал в память,
// создаёт сервисы, обработчики, планировщик и собирает всё в один объект Bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/currency-bot/internal/bot"
	"serotonyl.ru/currency-bot/internal/bot/filters"
	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/config"
	"serotonyl.ru/currency-bot/internal/db/postgres"
	"serotonyl.ru/currency-bot/internal/db/sqlite"
	"serotonyl.ru/currency-bot/internal/features/admin"
	"serotonyl.ru/currency-bot/internal/features/casino"
	"serotonyl.ru/currency-bot/internal/features/economy"
	"serotonyl.ru/currency-bot/internal/features/members"
	"serotonyl.ru/currency-bot/internal/features/rob"
	"serotonyl.ru/currency-bot/internal/features/shop"
	"serotonyl.ru/currency-bot/internal/features/trade"
	"serotonyl.ru/currency-bot/internal/jobs"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	BotAPI    *tgbotapi.BotAPI

	flusher *ledger.Flusher
	metrics *http.Server
	closers []func()
}

// storage — выбранный драйвер хранилища.
type storage struct {
	ledger  ledger.Persister
	members members.Repository
	close   func()
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{closers: []func(){st.close}}

	// === 2. Журнал в памяти ===
	store := ledger.NewStore(cfg.EconomyDefaultCooldown)
	flusher := ledger.NewFlusher(store, st.ledger)
	if err := flusher.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка загрузки данных: %w", err)
	}
	a.flusher = flusher

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development" && cfg.AppLogLevel == "trace"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)
	a.BotAPI = botAPI

	// === 4. Метрики ===
	m := metrics.New()
	if cfg.MetricsAddr != "" {
		a.metrics = startMetrics(cfg.MetricsAddr, m)
	}

	// === 5. Сервисы ===
	rng := common.GlobalRand{}
	memberService := members.NewService(st.members)
	economyService := economy.NewService(store, flusher, rng, m)
	casinoService := casino.NewService(store, flusher, rng, m)
	robService := rob.NewService(store, flusher, rng, m)
	shopService := shop.NewService(store, flusher, m)
	tradeManager := trade.NewManager(store, flusher, m, cfg.TradeTimeout)
	adminService := admin.NewService(store, flusher, m, cfg.RemovalTimeout)
	auth := admin.NewAuth(cfg.AdminPasswordHash, cfg.AdminSessionTTL)
	access := admin.NewAccess(botAPI, auth, cfg)

	// === 6. Обработчики ===
	memberHandler := members.NewHandler(memberService)
	tradeHandler := trade.NewHandler(tradeManager, botAPI, memberService)
	adminHandler := admin.NewHandler(adminService, auth, access, botAPI, memberService)

	router := bot.NewRouter(botAPI, bot.Handlers{
		Economy:        economy.NewHandler(economyService, botAPI, memberService),
		Casino:         casino.NewHandler(casinoService, botAPI),
		Rob:            rob.NewHandler(robService, botAPI, memberService),
		Shop:           shop.NewHandler(shopService, botAPI, memberService),
		Trade:          tradeHandler,
		Admin:          adminHandler,
		EconomyService: economyService,
		ShopService:    shopService,
	})

	// === 7. Собираем бота ===
	a.Bot = bot.New(botAPI, cfg, filters.NewAccessFilter(cfg.AllowedChats), router, memberHandler)

	// === 8. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(
		jobs.Specs{Expire: cfg.JobsExpireSpec, Flush: cfg.JobsFlushSpec},
		cfg.AppTimezone,
		tradeManager, tradeHandler,
		adminService, adminHandler,
		flusher, m,
	)

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("Хранилище: SQLite")
		return &storage{
			ledger:  sqlite.NewLedgerRepository(db),
			members: sqlite.NewMembersRepository(db),
			close:   func() { _ = db.Close() },
		}, nil

	default:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		log.Info("Хранилище: PostgreSQL")
		return &storage{
			ledger:  postgres.NewLedgerRepository(pool),
			members: postgres.NewMembersRepository(pool),
			close:   pool.Close,
		}, nil
	}
}

func startMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("addr", addr).Error("HTTP-сервер метрик упал")
		}
	}()
	log.WithField("addr", addr).Info("Метрики доступны на /metrics")
	return srv
}

// Shutdown сохраняет несохранённые изменения и закрывает хранилище.
func (a *App) Shutdown(ctx context.Context) {
	if a.flusher != nil {
		if err := a.flusher.Flush(ctx); err != nil {
			log.WithError(err).Error("Финальное сохранение не удалось, последние изменения потеряны")
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Ошибка остановки HTTP-сервера метрик")
		}
	}
	a.Close()
}

// Close закрывает хранилище.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
