// Package main - точка входа CLI SmartAttd.
//
// SmartAttd ведёт ежемесячный учёт посещаемости студентов колледжа:
// - Запись часов по предмету (по одной или пакетом из CSV)
// - Зоны риска группы (safe / warning / critical) и средний процент
// - Прогноз: сколько часов подряд нужно посетить до 75%
// - Текстовый отчёт для преподавателя через Gemini
//
// Без DATABASE_URL данные хранятся в памяти процесса.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartattd/smartattd/config"
	"github.com/smartattd/smartattd/internal/application/command"
	"github.com/smartattd/smartattd/internal/application/query"
	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/student"
	"github.com/smartattd/smartattd/internal/infrastructure/external/gemini"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/memory"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/postgres"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/redis"
	"github.com/smartattd/smartattd/internal/interface/cli"
	"github.com/smartattd/smartattd/pkg/logger"
	"github.com/smartattd/smartattd/pkg/retry"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}

func run(ctx context.Context, args []string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// Логи идут в stderr, чтобы не смешиваться с таблицами в stdout.
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Debug("starting SmartAttd",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или память)
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КЕШ АНАЛИТИКИ (Redis, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	// Кеш имеет смысл только поверх общего хранилища.
	var cache attendance.StatsCache
	var cachePing func(ctx context.Context) error
	if !cfg.Redis.Disabled && (cfg.Redis.URL != "" || stores.conn != nil) {
		rc, err := redis.NewCache(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, analytics cache disabled", logger.Err(err))
		} else {
			defer rc.Close()
			cache = redis.NewAnalyticsCache(rc, cfg.Redis.AnalyticsTTL)
			cachePing = rc.Ping
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ГЕНЕРАТОР ТЕКСТА (Gemini, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var narrator report.Narrator
	var narratorPing func(ctx context.Context) error
	if cfg.Narrator.Enabled() {
		gc, err := gemini.NewClient(ctx, gemini.ClientConfig{
			APIKey:                  cfg.Narrator.APIKey,
			Model:                   cfg.Narrator.Model,
			Temperature:             cfg.Narrator.Temperature,
			Timeout:                 cfg.Narrator.Timeout,
			MaxRetries:              cfg.Narrator.MaxRetries,
			CircuitBreakerThreshold: cfg.Narrator.CircuitBreakerThreshold,
			CircuitBreakerTimeout:   cfg.Narrator.CircuitBreakerTimeout,
			Logger:                  log,
		})
		if err != nil {
			log.Warn("gemini unavailable, AI insights disabled", logger.Err(err))
		} else {
			defer gc.Close()
			narrator = gc
			narratorPing = gc.Ping
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	thresholds := attendance.Thresholds{
		SafePercent:    cfg.Analytics.SafePercent,
		WarningPercent: cfg.Analytics.WarningPercent,
	}

	cmdConfig := command.Config{
		MaxParallel: cfg.Analytics.BulkParallelism,
		Clock:       timeutil.SystemClock,
		Location:    cfg.App.Location,
	}
	queryConfig := query.Config{
		Thresholds:     thresholds,
		TargetFraction: cfg.Analytics.TargetFraction,
		Clock:          timeutil.SystemClock,
		Location:       cfg.App.Location,
		QueryTimeout:   cfg.Database.QueryTimeout,
		Retrier: retry.DatabaseRetrier().With(
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Debug("retrying store read",
					logger.Int("attempt", attempt),
					logger.Err(err),
					logger.Duration("delay", delay),
				)
			}),
		),
	}

	deps := cli.Deps{
		Students:             stores.students,
		UpdateAttendance:     command.NewUpdateAttendanceHandler(stores.records, cache, cmdConfig, log),
		BulkUpdateAttendance: command.NewBulkUpdateAttendanceHandler(stores.records, cache, cmdConfig, log),
		ClassAnalytics:       query.NewGetClassAnalyticsHandler(stores.records, stores.students, cache, narrator, queryConfig, log),
		ClassAttendance:      query.NewGetClassAttendanceHandler(stores.records, stores.students, queryConfig),
		StudentReport:        query.NewGetStudentReportHandler(stores.records, stores.students, queryConfig),
		ClassRoster:          query.NewGetClassRosterHandler(stores.students, queryConfig),
		Narrator:             narrator,
		TargetFraction:       cfg.Analytics.TargetFraction,
		ReferenceIntake:      cfg.Analytics.ReferenceIntake,
		Location:             cfg.App.Location,
		Logger:               log,
	}
	if stores.conn != nil {
		deps.Schema = postgres.NewMigrator(stores.conn)
		deps.Health = append(deps.Health, cli.HealthCheck{Name: "postgres", Check: stores.conn.Ping})
	} else {
		deps.Health = append(deps.Health, cli.HealthCheck{Name: "memory store"})
	}
	if cachePing != nil {
		deps.Health = append(deps.Health, cli.HealthCheck{Name: "redis", Check: cachePing})
	}
	if narratorPing != nil {
		deps.Health = append(deps.Health, cli.HealthCheck{Name: "gemini", Check: narratorPing})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК КОМАНДЫ
	// ─────────────────────────────────────────────────────────────────────────
	router := cli.NewRouter(os.Stdout, log)
	cli.NewHandlers(deps).Register(router)

	// После сигнала команда получает ShutdownTimeout на завершение:
	// уже начатые записи пакета успевают закоммититься.
	runCtx, cancel := withGracePeriod(ctx, cfg.App.ShutdownTimeout, func() {
		log.Warn("interrupt received, waiting for the command to finish",
			logger.Duration("grace", cfg.App.ShutdownTimeout))
	})
	defer cancel()

	if err := router.Run(runCtx, args); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted")
		}
		return err
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// envFileVar задаёт путь к env-файлу вместо ./.env.
const envFileVar = "SMARTATTD_ENV_FILE"

// loadConfig читает конфигурацию из файла SMARTATTD_ENV_FILE, если он задан,
// иначе из необязательного ./.env.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv(envFileVar); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// withGracePeriod возвращает контекст, который отменяется через grace после
// отмены parent. onSignal вызывается один раз в момент отмены parent.
func withGracePeriod(parent context.Context, grace time.Duration, onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	go func() {
		select {
		case <-parent.Done():
		case <-ctx.Done():
			return
		}
		if onSignal != nil {
			onSignal()
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// setupLogger создаёт логгер по настройкам из конфигурации.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	opts.AddCaller = cfg.App.Debug

	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
	)
}

// stores объединяет репозитории и закрывает соединение.
type stores struct {
	conn     *postgres.Connection
	students student.Repository
	records  attendance.Repository
}

func (s *stores) close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// openStores подключается к PostgreSQL или создаёт хранилище в памяти.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is not set, using in-memory store; data is lost on exit")

		studentStore := memory.NewStudentStore()
		return &stores{
			students: studentStore,
			records:  memory.NewAttendanceStore(studentStore),
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool := postgres.DefaultPoolOptions()
	pool.MaxConns = int32(cfg.Database.MaxOpenConns)
	pool.MinConns = int32(cfg.Database.MaxIdleConns)
	pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := postgres.NewConnectionFromURL(connectCtx, cfg.Database.URL, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Debug("connected to PostgreSQL")

	return &stores{
		conn:     conn,
		students: postgres.NewStudentRepository(conn),
		records:  postgres.NewAttendanceRepository(conn),
	}, nil
}
