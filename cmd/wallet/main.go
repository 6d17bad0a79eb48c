package main

import (
	"context"
	"github.com/joho/godotenv"
	"github.com/metalaloud/settlement/internal/config"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/redisx"
	"github.com/metalaloud/settlement/internal/storage"
	"github.com/metalaloud/settlement/internal/wallet"
	"github.com/metalaloud/settlement/internal/walletsync"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	name := cfg.ServiceName + "-wallet"
	svc := &walletsync.Service{
		Wallet: &wallet.Service{Store: store, ServiceName: name},
		Dedup:  &redisx.Dedup{RDB: rdb, Service: "wallet"},
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WalletGroup, ledger.TopicPaymentSettled, cfg.WalletWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("wallet consumer started: group=%s topic=%s workers=%d", cfg.WalletGroup, ledger.TopicPaymentSettled, cfg.WalletWorkers)
		if err := cons.Start(ctx, svc.HandlePaymentSettled); err != nil {
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
	log.Println("shutting down consumer...")
	cancel()
	<-done
}
