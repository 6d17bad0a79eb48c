package main

import (
	"context"
	"github.com/joho/godotenv"
	"github.com/metalaloud/settlement/internal/config"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/rabbitmq"
	"github.com/metalaloud/settlement/internal/storage"
	"github.com/metalaloud/settlement/internal/wallet"
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

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicWithdrawalSettled, 256)
	prod.Start()

	ws := &wallet.Service{
		Store:       store,
		Publisher:   prod,
		ServiceName: cfg.ServiceName + "-payouts",
	}

	cons, err := rabbitmq.NewConsumer(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer cons.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := cons.Consume(ctx, rabbitmq.PayoutHandler(ws)); err != nil {
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
	log.Println("shutting down payouts...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
