package main

import (
	"context"
	"github.com/joho/godotenv"
	"github.com/metalaloud/settlement/internal/clickhouse"
	"github.com/metalaloud/settlement/internal/config"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("clickhouse: %v", err)
	}
	defer ch.Close()
	if err := ch.EnsureSchema(ctx); err != nil {
		log.Fatalf("clickhouse schema: %v", err)
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.DWHGroup, ledger.TopicPaymentSettled, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("sales dwh consumer started: group=%s topic=%s", cfg.DWHGroup, ledger.TopicPaymentSettled)
		if err := cons.Start(ctx, clickhouse.Handler(ch)); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down sales dwh...")
	cancel()
	<-done
}
