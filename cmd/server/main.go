package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/mmo-region/internal/api"
	"github.com/annel0/mmo-region/internal/auth"
	"github.com/annel0/mmo-region/internal/config"
	"github.com/annel0/mmo-region/internal/controllers"
	"github.com/annel0/mmo-region/internal/counter"
	"github.com/annel0/mmo-region/internal/gen"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/metrics"
	"github.com/annel0/mmo-region/internal/observability"
	"github.com/annel0/mmo-region/internal/report"
	"github.com/annel0/mmo-region/internal/storage"
	"github.com/annel0/mmo-region/internal/world"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	issueFor := flag.String("issue-token", "", "выпустить токен оператора админского API и выйти")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "срок действия выпускаемого токена")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}

	if err := logging.InitLogger(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel),
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
	}); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	if *issueFor != "" {
		if err := issueToken(cfg, *issueFor, *tokenTTL); err != nil {
			log.Fatalf("❌ Токен не выпущен: %v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		logging.LogError("❌ Сервер остановлен с ошибкой: %v", err)
		logging.CloseLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.LogInfo("🎮 Запуск сервера мира: карта %s %dx%d, %d тиков/с",
		cfg.World.MapName, cfg.World.Width, cfg.World.Height, cfg.World.TickRate)

	shutdownTracing, err := observability.InitTelemetry(ctx, observability.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.GetOTLPEndpoint(),
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("трассировка: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logging.LogWarn("Остановка трассировки: %v", err)
		}
	}()

	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	worldMetrics := metrics.NewWorldMetrics(reg)

	rollingCounter, closeCounter, err := newCounter(cfg)
	if err != nil {
		return err
	}
	defer closeCounter()

	reporter, closeReporter := newReporter(cfg)
	defer closeReporter()

	w := world.New(world.Options{
		Settings: settingsFromConfig(cfg.Settings),
		Counter:  rollingCounter,
		Reporter: reporter,
		Observer: worldMetrics,
		Seed:     cfg.World.Seed,
	})

	m, err := world.NewMap(cfg.World.MapName, cfg.World.Width, cfg.World.Height)
	if err != nil {
		return err
	}
	w.AddMap(m)

	generator := gen.NewGenerator(cfg.World.Seed)
	if err := generator.FillTiles(m); err != nil {
		return fmt.Errorf("генерация карты: %w", err)
	}

	var store *storage.TileStore
	if cfg.Storage.Path != "" {
		store, err = storage.NewTileStore(cfg.Storage.Path, false)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.LoadMap(m); err != nil {
			return fmt.Errorf("загрузка карты: %w", err)
		}
	}

	trees, err := generator.PlaceTrees(w, m)
	if err != nil {
		return fmt.Errorf("расстановка деревьев: %w", err)
	}
	logging.LogInfo("🌲 Деревьев на карте: %d", trees)

	w.AddController(controllers.NewWander(w, m, cfg.World.WanderingNPCs))
	var autosave *controllers.Autosave
	if store != nil {
		autosave = controllers.NewAutosave(w, store, cfg.World.AutosaveSeconds)
		w.AddController(autosave)
	}

	runner := world.NewRunner(w, cfg.World.TickRate)

	sampler, err := metrics.NewProcessSampler(reg)
	if err != nil {
		logging.LogWarn("Метрики процесса недоступны: %v", err)
	}

	adminAPI := api.NewServer(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.GetAdminPort()),
		World:      runner,
		Process:    processStats(sampler),
		Gatherer:   reg,
		Registerer: reg,
		Auth:       authenticator,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := adminAPI.Run(ctx); err != nil {
			errCh <- fmt.Errorf("админский API: %w", err)
			stop()
		}
	}()

	if sampler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sampler.Run(ctx, 5*time.Second)
		}()
	}

	if mc, ok := rollingCounter.(*counter.MemoryCounter); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanupCounter(ctx, mc, cfg.Counter.CounterWindow())
		}()
	}

	logging.LogInfo("✅ Мир запущен, админский API на порту %d", cfg.Server.GetAdminPort())
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errCh <- err
	}
	stop()
	wg.Wait()

	if autosave != nil {
		autosave.SaveAll()
	}
	logging.LogInfo("👋 Сервер мира остановлен")

	close(errCh)
	return <-errCh
}

// newAuthenticator nil без ключа: API тогда не требует токенов
func newAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	secret := cfg.Server.GetAdminSecret()
	if secret == "" {
		logging.LogWarn("⚠️ Ключ операторов не задан, изменяющие маршруты API открыты")
		return nil, nil
	}
	a, err := auth.NewAuthenticator(secret)
	if err != nil {
		return nil, fmt.Errorf("ключ операторов: %w", err)
	}
	return a, nil
}

func issueToken(cfg *config.Config, operator string, ttl time.Duration) error {
	secret := cfg.Server.GetAdminSecret()
	if secret == "" {
		return errors.New("ключ операторов не задан (server.admin_secret или WORLD_ADMIN_SECRET)")
	}
	a, err := auth.NewAuthenticator(secret)
	if err != nil {
		return err
	}
	token, err := a.Issue(operator, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func settingsFromConfig(s config.SettingsConfig) world.Settings {
	return world.Settings{
		LogLagging:        s.LogLagging,
		KickLagging:       s.KickLagging,
		LogTeleporting:    s.LogTeleporting,
		KickTeleporting:   s.KickTeleporting,
		FixTeleporting:    s.FixTeleporting,
		ReportTeleporting: s.ReportTeleporting,
		TeleportLimit:     s.TeleportLimit,
	}
}

func newCounter(cfg *config.Config) (world.RollingCounter, func(), error) {
	window := cfg.Counter.CounterWindow()
	switch cfg.Counter.Backend {
	case "redis":
		redisCfg := counter.DefaultRedisConfig()
		redisCfg.Addr = cfg.Counter.GetRedisAddr()
		redisCfg.Window = window
		rc, err := counter.NewRedisCounter(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		logging.LogInfo("Счётчик нарушений в Redis %s", redisCfg.Addr)
		return rc, func() { rc.Close() }, nil
	case "", "memory":
		return counter.NewMemoryCounter(window), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный счётчик: %s", cfg.Counter.Backend)
	}
}

// newReporter при недоступном NATS откатывается на журнал
func newReporter(cfg *config.Config) (world.Reporter, func()) {
	if cfg.Reports.Backend != "nats" {
		return report.NewLogReporter(), func() {}
	}

	hostname, _ := os.Hostname()
	nr, err := report.NewNATSReporter(report.NATSConfig{
		URL:     cfg.Reports.GetNATSURL(),
		Subject: cfg.Reports.Subject,
		Server:  hostname,
	})
	if err != nil {
		logging.LogWarn("NATS недоступен, жалобы пишутся в журнал: %v", err)
		return report.NewLogReporter(), func() {}
	}
	return nr, func() { nr.Close() }
}

func processStats(s *metrics.ProcessSampler) api.ProcessStats {
	if s == nil {
		return nil
	}
	return s
}

func cleanupCounter(ctx context.Context, c *counter.MemoryCounter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}
