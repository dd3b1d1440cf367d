package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/GitMrBlaiquen/sensor-server/internal/auth"
	"github.com/GitMrBlaiquen/sensor-server/internal/counting"
	"github.com/GitMrBlaiquen/sensor-server/internal/devices"
	"github.com/GitMrBlaiquen/sensor-server/internal/ingest"
	"github.com/GitMrBlaiquen/sensor-server/internal/queue"
	"github.com/GitMrBlaiquen/sensor-server/internal/server"
	"github.com/GitMrBlaiquen/sensor-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Store Counter Server...")

	loc, err := cfg.Counter.Location()
	if err != nil {
		log.Fatalf("Failed to resolve counting timezone: %v", err)
	}
	fmt.Printf("Counting timezone: %s\n", loc)

	mapping, err := devices.ParseMapping(cfg.Devices.Map)
	if err != nil {
		log.Fatalf("Failed to parse device mapping: %v", err)
	}
	fmt.Printf("Device mapping loaded (%d sensors)\n", len(mapping.Serials()))

	storeNames, err := cfg.Devices.ParseStoreNames()
	if err != nil {
		log.Fatalf("Failed to parse store catalog: %v", err)
	}

	counters := counting.NewAggregateStore(loc)
	registry := devices.NewRegistry()

	var tracker devices.HeartbeatTracker
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		tracker = devices.NewRedisTracker(redisClient, cfg.Counter.HeartbeatWindow)
		fmt.Println("Heartbeat tracking backed by Redis")
	} else {
		tracker = devices.NewMemoryTracker(cfg.Counter.HeartbeatWindow)
		fmt.Println("Heartbeat tracking in memory")
	}

	var producer ingest.Publisher
	if cfg.Kafka.Enabled {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.NumPartitions, 1); err != nil {
			fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
		}
		kafkaProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer kafkaProducer.Close()
		producer = kafkaProducer
		fmt.Printf("Audit events publishing to Kafka topic %s\n", cfg.Kafka.TopicEvents)
	}

	var authorizer auth.Authorizer
	if cfg.Auth.UsersFile != "" {
		users, err := auth.LoadUsersFile(cfg.Auth.UsersFile)
		if err != nil {
			log.Fatalf("Failed to load users file: %v", err)
		}
		authorizer = auth.NewStaticAuthorizer(users)
		fmt.Printf("Loaded %d users from %s\n", len(users), cfg.Auth.UsersFile)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := ingest.NewMetrics(promRegistry)

	service := ingest.NewService(mapping, counters, registry, tracker, producer, metrics)

	srv := server.New(server.Config{
		Ingest:          service,
		Counters:        counters,
		Mapping:         mapping,
		Registry:        registry,
		Heartbeat:       tracker,
		Authorizer:      authorizer,
		StoreNames:      storeNames,
		HeartbeatWindow: cfg.Counter.HeartbeatWindow,
		Metrics:         promRegistry,
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	handler := handlers.LoggingHandler(os.Stdout, cors(srv.Router()))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPServer.Port),
		Handler: handler,
	}

	// Print statistics periodically
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			fmt.Printf("Known devices: %d | Stores with activity: %d\n",
				registry.Count(), len(counters.LiveCounters()))
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Shutdown error: %v\n", err)
		}
	}()

	fmt.Printf("Store Counter Server listening on port %d\n", cfg.HTTPServer.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	fmt.Println("Store Counter Server stopped")
}
