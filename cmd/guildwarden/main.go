package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guildwarden/internal/automod"
	"guildwarden/internal/bot"
	"guildwarden/internal/cases"
	"guildwarden/internal/config"
	"guildwarden/internal/levels"
	"guildwarden/internal/metrics"
	"guildwarden/internal/platform"
	"guildwarden/internal/scheduler"
	"guildwarden/internal/stats"
	"guildwarden/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Fatal("mongo connect failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Close(shutdownCtx)
	}()

	holder, err := store.NewConfigHolder(ctx, db)
	if err != nil {
		logger.Fatal("guild config load failed", zap.Error(err))
	}

	botSvc, err := bot.New(cfg, logger, holder, db)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	plat := platform.NewDiscord(botSvc.Session(), cfg.GuildID, holder, logger)
	enforcer := cases.NewEnforcer(plat, logger)
	svc := cases.NewService(db, enforcer, plat, logger, cfg.GuildName, cases.Limits{
		MuteMinSeconds: cfg.Moderation.MuteMinSeconds,
		MuteMaxSeconds: cfg.Moderation.MuteMaxSeconds,
	})
	reconciler := cases.NewReconciler(db, enforcer, logger)

	jobs := scheduler.New(logger)

	var linkFilter *automod.Module
	if cfg.Automod.Enabled {
		linkFilter = automod.New(automod.Config{
			StrikeLimit: cfg.Automod.StrikeLimit,
			MuteSeconds: cfg.Automod.MuteSeconds,
		}, holder.Snapshot, plat, svc, logger)
	}
	slowmode := automod.NewSlowmode(plat, scheduler.RealClock(), logger)

	recorder := stats.NewRecorder(db, plat, holder.Snapshot, stats.Config{
		ActiveLookback: time.Duration(cfg.Stats.ActiveLookbackSeconds) * time.Second,
		ActiveLimit:    cfg.Stats.ActiveLimit,
	}, logger)

	var rewarder *levels.Rewarder
	if cfg.Levels.LeaderboardURL != "" {
		client := levels.NewClient(cfg.Levels.LeaderboardURL, cfg.Levels.PageLimit,
			time.Duration(cfg.Levels.CacheSeconds)*time.Second)
		rewarder = levels.NewRewarder(client, db, cfg.Levels.CoinsPerLevel, logger)
	}

	botSvc.Wire(svc, plat, linkFilter, slowmode, rewarder, recorder)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("guild", cfg.GuildID))

	reconcile := time.Duration(cfg.Moderation.ReconcileSeconds) * time.Second
	if reconcile <= 0 {
		reconcile = time.Minute
	}
	jobs.Every("reconcile", reconcile, reconciler.Tick)
	jobs.Every("stats_flush", time.Duration(cfg.Stats.FlushSeconds)*time.Second, recorder.Flush)
	jobs.Every("active_role", time.Hour, recorder.RotateActiveRole)
	jobs.Every("presence", 30*time.Minute, botSvc.RefreshPresence)
	if linkFilter != nil {
		jobs.Every("strike_decay", time.Duration(cfg.Automod.StrikeTTLSecond)*time.Second, linkFilter.DecayStrikes)
	}
	if rewarder != nil {
		jobs.Every("rewards", time.Duration(cfg.Levels.RewardSeconds)*time.Second, rewarder.Tick)
	}
	jobs.Start(ctx)

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", metrics.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs.Stop()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close(shutdownCtx)
}
