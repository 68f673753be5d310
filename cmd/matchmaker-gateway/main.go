package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/soratane/duelis-backend/internal/events"
	"github.com/soratane/duelis-backend/internal/gateway"
	"github.com/soratane/duelis-backend/internal/matchmaking"
	kafkapkg "github.com/soratane/duelis-backend/internal/pkg/kafka"
	"github.com/soratane/duelis-backend/internal/pkg/metrics"
	redispkg "github.com/soratane/duelis-backend/internal/pkg/redis"
	"github.com/soratane/duelis-backend/internal/protocol"
	"github.com/soratane/duelis-backend/internal/relay"
	"github.com/soratane/duelis-backend/internal/session"
)

func main() {
	// --- Configuration Loading ---
	viper.SetConfigName("matchmaker-gateway")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.AutomaticEnv()

	viper.SetDefault("server.ping_interval_seconds", 30)
	viper.SetDefault("relay.channel", "global")
	viper.SetDefault("session.poll_interval_seconds", 1)
	viper.SetDefault("session.max_poll_attempts", 30)
	viper.SetDefault("matchmaking.min_rating", 1)
	viper.SetDefault("matchmaking.max_rating", 30)

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("Failed to read configuration file", "error", err)
		os.Exit(1)
	}

	if viper.GetString("auth.jwt_secret") == "" {
		slog.Error("No JWT secret configured; refusing to accept unverifiable clients")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Redis Connections ---
	// Two clients: the pub/sub subscription monopolizes its connection, so
	// the relay gets its own.
	storeRdb, err := redispkg.NewClient(ctx, redispkg.Config{
		Addr:     viper.GetString("redis.store_addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if err != nil {
		slog.Error("Failed to connect to Redis store", "error", err)
		os.Exit(1)
	}
	pubsubRdb, err := redispkg.NewClient(ctx, redispkg.Config{
		Addr:     viper.GetString("redis.pubsub_addr"),
		Password: viper.GetString("redis.password"),
	})
	if err != nil {
		slog.Error("Failed to connect to Redis pub/sub", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connections established")

	// --- Lifecycle Event Feed (optional) ---
	var feed *events.Publisher
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		feed = events.NewPublisher(kafkapkg.NewProducer(brokers, viper.GetString("kafka.events_topic")))
		defer feed.Close()
		slog.Info("Lifecycle event feed enabled", "brokers", brokers)
	}

	// --- Dependency Injection ---
	registry := gateway.NewRegistry()
	bus := relay.New(pubsubRdb, viper.GetString("relay.channel"), registry)
	engine := matchmaking.NewEngine(storeRdb,
		viper.GetInt("matchmaking.min_rating"),
		viper.GetInt("matchmaking.max_rating"),
	)
	sessionClient := session.NewClient(viper.GetString("session.base_url"))
	provisioner := session.NewProvisioner(
		sessionClient,
		registry,
		bus,
		feed,
		viper.GetDuration("session.poll_interval_seconds")*time.Second,
		viper.GetInt("session.max_poll_attempts"),
	)
	orchestrator := matchmaking.NewOrchestrator(engine, provisioner, feed)

	// The dispatch table and disconnect hooks are fixed here, before any
	// connection is accepted.
	gw := gateway.New(gateway.Config{
		Registry: registry,
		Verifier: gateway.NewTokenVerifier(viper.GetString("auth.jwt_secret")),
		Dispatcher: gateway.NewDispatcher(map[string]gateway.HandlerFunc{
			protocol.TypeFindGame: orchestrator.HandleFindGame,
		}),
		PingInterval: viper.GetDuration("server.ping_interval_seconds") * time.Second,
		OnDisconnect: []gateway.DisconnectHook{
			func(ctx context.Context, playerID string) {
				if err := engine.RemoveTicket(ctx, playerID); err != nil {
					slog.Error("Failed to clean up ticket on disconnect", "playerID", playerID, "error", err)
				}
			},
			func(_ context.Context, playerID string) {
				provisioner.PlayerDisconnected(playerID)
			},
		},
	})

	metrics.Init()
	provisioner.Start(ctx)
	go bus.Run(ctx)
	go gw.Run(ctx)

	// --- HTTP Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := storeRdb.Ping(req.Context()).Err(); err != nil {
			http.Error(w, "store unreachable", http.StatusInternalServerError)
			return
		}
		if err := bus.Ping(req.Context()); err != nil {
			http.Error(w, "relay unreachable", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", gw.ServeHTTP)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", viper.GetString("server.port")),
		Handler: r,
	}

	go func() {
		slog.Info("Matchmaker gateway listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down...")
	cancel()
	gw.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server shut down gracefully")
}
