package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casino-backend/internal/config"
	"casino-backend/internal/confidential"
	"casino-backend/internal/confidential/localmxe"
	"casino-backend/internal/handlers"
	"casino-backend/internal/logging"
	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	appLog := logging.Component(logger, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		appLog.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	if err := store.EnsureWallet(ctx, cfg.HouseAccount, cfg.HouseSeedBalance); err != nil {
		appLog.WithError(err).Fatal("failed to seed house account")
	}

	jwtService := services.NewJWTService(cfg)
	records := services.NewSessionRecords(store)
	hub := handlers.NewWebSocketHub(logging.Component(logger, "websocket"))

	var (
		dispatcher confidential.Dispatcher
		cluster    *localmxe.Cluster
	)
	switch cfg.ComputeMode {
	case config.ComputeLocal:
		cluster, err = localmxe.New(records, logging.Component(logger, "localmxe"))
		if err != nil {
			appLog.WithError(err).Fatal("failed to create local compute cluster")
		}
		dispatcher = cluster
	case config.ComputeRemote:
		token, err := jwtService.GenerateServiceToken("blackjack-api")
		if err != nil {
			appLog.WithError(err).Fatal("failed to mint service token")
		}
		dispatcher, err = confidential.NewHTTPDispatcher(ctx, cfg.ComputeURL, cfg.CallbackURL, token, 10*time.Second, logging.Component(logger, "dispatcher"))
		if err != nil {
			appLog.WithError(err).Fatal("failed to reach compute service")
		}
	}

	gameEngine := services.NewGameEngine(store, store, dispatcher, hub, services.EngineConfig{
		RTPBps:       cfg.BlackjackRTPBps,
		MinBet:       cfg.MinBet,
		MaxBet:       cfg.MaxBet,
		EscrowStake:  cfg.EscrowStake,
		HouseAccount: cfg.HouseAccount,
	}, logging.Component(logger, "engine"))

	if cluster != nil {
		cluster.SetSettlementHandler(gameEngine)
		cluster.Start(ctx, cfg.ComputeWorkers)
		defer cluster.Close()
	}

	go hub.Run(ctx)
	go expirePending(ctx, gameEngine, cfg.StepTimeout, appLog)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.Deps{
		JWT:     jwtService,
		Engine:  gameEngine,
		Store:   store,
		Records: records,
		Hub:     hub,
		Log:     appLog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"store":   cfg.Store,
			"compute": cfg.ComputeMode,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("graceful shutdown failed")
	}
}

func openStore(cfg *config.Config) (services.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return services.NewMemoryStore(), func() {}, nil
	}
	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		return nil, nil, err
	}
	return redisService, func() { redisService.Close() }, nil
}

// expirePending releases steps whose settlement never arrived so the player
// can retry them.
func expirePending(ctx context.Context, engine *services.GameEngine, timeout time.Duration, log *logrus.Entry) {
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.ExpirePending(ctx, timeout)
			if err != nil {
				log.WithError(err).Warn("failed to expire pending steps")
				continue
			}
			if n > 0 {
				log.WithField("expired", n).Info("released stale pending steps")
			}
		}
	}
}
