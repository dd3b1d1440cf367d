package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GitMrBlaiquen/sensor-server/internal/database"
	"github.com/GitMrBlaiquen/sensor-server/internal/queue"
	"github.com/GitMrBlaiquen/sensor-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Audit Writer Service...")
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.GroupID)
	defer consumer.Close()
	fmt.Println("Kafka consumer created (registering with broker...)")

	writer := queue.NewAuditWriter(consumer, db, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	if err := writer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start audit writer: %v", err)
	}
	fmt.Println("Audit writer started")

	// Print consumer stats periodically
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := consumer.Stats()
			fmt.Printf("Consumer stats: Messages=%d, Bytes=%d, Errors=%d\n",
				stats.Messages, stats.Bytes, stats.Errors)
		}
	}()

	fmt.Println("Audit Writer Service is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	writer.Stop()
	fmt.Println("Audit Writer Service stopped")
}
