// Точка входа Upload Relay — HTTP-релея загрузки файлов в Telegram Bot API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/bigkaa/goartstore/upload-relay/internal/api/handlers"
	"github.com/bigkaa/goartstore/upload-relay/internal/config"
	"github.com/bigkaa/goartstore/upload-relay/internal/server"
	"github.com/bigkaa/goartstore/upload-relay/internal/service"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/badgerkv"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/fskv"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/pgkv"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

func main() {
	// .env — только для локальной разработки; отсутствие файла не ошибка
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Upload Relay запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("kv_backend", cfg.KVBackend),
		slog.String("kv_write_policy", cfg.KVWritePolicy),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. KV-хранилище метаданных
	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации KV", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Клиент Bot API
	client := tgclient.New(cfg.APIURL, cfg.BotToken, cfg.UpstreamTimeout, logger)

	// 3. Сервисы
	driver := service.NewUploadDriver(client, nil, logger)
	relaySvc := service.NewRelayService(driver, store, service.RelayConfig{
		RecipientID: cfg.ChatID,
		StrictKV:    cfg.KVWritePolicy == config.KVWritePolicyStrict,
	}, logger)
	cacheSvc := service.NewCacheService(cfg.FileCacheSize, cfg.FileCacheTTL)
	downloadSvc := service.NewDownloadService(client, cacheSvc, store, logger)

	// 4. topologymetrics — мониторинг зависимостей
	var depsChecker handlers.ReadinessChecker
	var dephealthSvc *service.DephealthService
	if cfg.DephealthEnabled {
		targets := service.DephealthTargets{
			UpstreamURL:        client.APIURL(),
			UpstreamHealthPath: "/bot" + cfg.BotToken + "/getMe",
		}
		if db != nil {
			targets.DB = db
			targets.DBURL = cfg.DatabaseURL()
		}

		svc, dhErr := service.NewDephealthService(
			parseOwnerName(hostname()),
			cfg.DephealthGroup,
			targets,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			dephealthSvc = svc
			depsChecker = handlers.NewDependencyChecker(svc.Health)
			logger.Info("topologymetrics запущен",
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 5. Handlers
	var kvChecker handlers.ReadinessChecker
	if store != nil {
		kvChecker = handlers.NewKVChecker(store)
	}
	healthHandler := handlers.NewHealthHandler(kvChecker, depsChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, relaySvc, downloadSvc, handlers.Options{
		PublicBaseURL:   cfg.PublicBaseURL,
		MultipartMemory: cfg.MultipartMemory,
	}, logger)

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)

	runErr := srv.Run()

	// --- Остановка фоновых процессов ---
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if db != nil {
		_ = db.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("Ошибка закрытия KV", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("Upload Relay остановлен")
}

// openStore открывает KV по UR_KV_BACKEND. Для none возвращает nil:
// запись метаданных пропускается. Для postgres дополнительно возвращается
// *sql.DB поверх пула (для проверки зависимостей).
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, *sql.DB, error) {
	switch cfg.KVBackend {
	case config.KVBackendFS:
		store, err := fskv.Open(cfg.KVDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("KV: файловое хранилище",
			slog.String("dir", cfg.KVDir),
			slog.Int("entries", store.Count()),
		)
		return store, nil, nil

	case config.KVBackendBadger:
		store, err := badgerkv.Open(cfg.KVDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("KV: BadgerDB", slog.String("dir", cfg.KVDir))
		return store, nil, nil

	case config.KVBackendPostgres:
		if err := pgkv.Migrate(cfg.MigrateURL(), logger); err != nil {
			return nil, nil, err
		}
		pool, err := pgkv.Connect(ctx, cfg.DatabaseDSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("KV: PostgreSQL", slog.String("url", cfg.DatabaseURL()))
		store := pgkv.New(pool, logger)
		return store, stdlib.OpenDBFromPool(store.Pool()), nil

	default:
		logger.Warn("KV не настроено, метаданные загрузок не сохраняются")
		return nil, nil, nil
	}
}
