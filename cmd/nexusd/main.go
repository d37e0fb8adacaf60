package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/data"
	"github.com/nexusroom/server/internal/identity"
	"github.com/nexusroom/server/internal/monitor"
	gonet "github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/pubsub"
	"github.com/nexusroom/server/internal/room"
	"github.com/nexusroom/server/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config
	cfgPath := "config/server.toml"
	if p := os.Getenv("NEXUS_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); err != nil && os.Getenv("NEXUS_CONFIG") == "" {
		cfgPath = "" // defaults + environment only
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("nexusd starting", zap.String("store", cfg.Store.Backend), zap.String("auth", cfg.Auth.Mode))

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	// 3. Store
	var store persist.Store
	switch cfg.Store.Backend {
	case "sql":
		db, err := persist.NewDB(bootCtx, cfg.Store, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := persist.RunMigrations(bootCtx, db.Pool); err != nil {
			db.Close()
			return fmt.Errorf("migrations: %w", err)
		}
		store = persist.NewSQLStore(db)
	case "", "memory":
		store = persist.NewMemoryStore()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	defer store.Close()

	// Hot-path player reads go through the write-behind cache; the raw
	// store keeps serving accounts, dungeons and the trade log.
	players := persist.NewCachedPlayerStore(store, cfg.Store.CacheTTL, cfg.Store.BatchSize, cfg.Store.FlushInterval, log)
	defer players.Close()

	// 4. Redis advisory channel (optional)
	pub, err := pubsub.Connect(bootCtx, cfg.Redis.URL, cfg.Redis.Channel, log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer pub.Close()

	// 5. Lua scripting
	scripts, err := scripting.NewEngine(cfg.Scripts.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer scripts.Close()

	// 6. Game data tables
	spells, err := data.LoadSpellTable(cfg.Data.TablePath("spells.yaml"))
	if err != nil {
		return fmt.Errorf("load spells: %w", err)
	}
	emotes, err := data.LoadEmoteTable(cfg.Data.TablePath("emotes.yaml"))
	if err != nil {
		return fmt.Errorf("load emotes: %w", err)
	}
	enemies, err := data.LoadEnemyTable(cfg.Data.TablePath("enemies.yaml"))
	if err != nil {
		return fmt.Errorf("load enemies: %w", err)
	}
	drops, err := data.LoadDropTable(cfg.Data.TablePath("drops.yaml"))
	if err != nil {
		return fmt.Errorf("load drops: %w", err)
	}
	resources, err := data.LoadResourceTable(cfg.Data.TablePath("resources.yaml"))
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	log.Info("data tables loaded",
		zap.Int("spells", spells.Count()),
		zap.Int("emotes", emotes.Count()),
		zap.Int("enemies", enemies.Count()),
		zap.Int("resources", resources.Count()))

	// 7. Monitoring core
	mon := monitor.NewCore()
	mon.AddChannel(monitor.ConsoleChannel{Log: log.Named("alert")})
	if cfg.Monitor.WebhookURL != "" {
		mon.AddChannel(monitor.WebhookChannel{
			URL:    cfg.Monitor.WebhookURL,
			Client: &http.Client{Timeout: 5 * time.Second},
			Log:    log.Named("alert"),
		})
	}
	mon.RegisterAlert("tick_ms", 16, monitor.OpGT, nil)
	alertCtx, alertCancel := context.WithCancel(context.Background())
	defer alertCancel()
	go mon.Start(alertCtx)

	// 8. Identity
	var verifier identity.Verifier = identity.NoneVerifier{}
	if cfg.Auth.Mode == "token" {
		if cfg.Auth.TokenSecret == "" {
			return fmt.Errorf("auth mode token requires token_secret")
		}
		verifier = identity.NewHMACVerifier(cfg.Auth.TokenSecret)
	}

	// 9. Room manager
	rooms := room.NewManager(room.Options{
		Config:    cfg,
		Log:       log,
		Players:   players,
		Store:     store,
		Verifier:  verifier,
		Scripts:   scripts,
		Monitor:   mon,
		Pub:       pub,
		Spells:    spells,
		Emotes:    emotes,
		Enemies:   enemies,
		Drops:     drops,
		Resources: resources,
	})
	rooms.Start()

	// 10. Transport
	srv := gonet.NewServer(cfg, rooms.OnJoin, log)
	port, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	log.Info("server ready",
		zap.Int("port", port),
		zap.Duration("tick", cfg.Server.TickRate),
		zap.Int("capacity", cfg.Server.RoomCapacity))

	// 11. Run until a signal or a transport failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("transport failed", zap.Error(err))
		}
	}

	// Stop accepting, dispose the room (final saves, session closes),
	// then drain the write-behind queue so nothing dirty is lost.
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	rooms.Close()
	if err := players.FlushNow(shutCtx); err != nil {
		log.Error("final flush failed", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
