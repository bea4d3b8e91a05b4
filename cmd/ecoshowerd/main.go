package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"ecoshower-backend/config"
	"ecoshower-backend/internal/api"
	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/db"
	"ecoshower-backend/internal/notification"
	"ecoshower-backend/internal/session"
	"ecoshower-backend/internal/store"
	"ecoshower-backend/internal/telemetry"
)

func main() {
	logger := log.New(os.Stdout, "ecoshower ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	commands, err := command.ConnectMQTT(&cfg.MQTT)
	if err != nil {
		logger.Fatalf("failed to connect to MQTT broker: %v", err)
	}
	logger.Printf("connected to MQTT broker at %s", cfg.MQTT.BrokerURL)

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	channel := notification.NewWebPushChannel(&webpushOptions)
	composer := notification.NewComposer(appStore.Users, channel)
	resolver := session.NewResolver(appStore.Sessions)
	manager := session.NewManager(appStore.Devices, appStore.Sessions, appStore.Users, resolver, commands)
	processor := telemetry.NewProcessor(appStore.Telemetry, appStore.Devices, appStore.Sessions, appStore.Users, resolver, commands, composer)

	handler := api.NewHandler(appStore, manager, processor, commands, composer, cfg.Push.PublicKey)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
