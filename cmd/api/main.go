package main

import (
	"context"
	"github.com/joho/godotenv"
	"github.com/metalaloud/settlement/internal/commission"
	"github.com/metalaloud/settlement/internal/config"
	"github.com/metalaloud/settlement/internal/httpx"
	kafkax "github.com/metalaloud/settlement/internal/kafka"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/redisx"
	"github.com/metalaloud/settlement/internal/settlement"
	"github.com/metalaloud/settlement/internal/storage"
	"github.com/metalaloud/settlement/internal/wallet"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	idem := &redisx.Cache{RDB: rdb}

	// Kafka producers, one per topic
	mux := kafkax.Mux{
		ledger.EventPaymentSettled:      kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicPaymentSettled, 1024),
		ledger.EventWithdrawalRequested: kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicWithdrawalRequested, 256),
		ledger.EventWithdrawalSettled:   kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicWithdrawalSettled, 256),
	}
	for _, p := range mux {
		p.Start()
	}

	ss := &settlement.Service{
		Store:       store,
		Calculator:  commission.New(cfg.CommissionRate),
		Publisher:   mux,
		Cache:       idem,
		Delay:       cfg.ProcessingDelay,
		ServiceName: cfg.ServiceName,
	}
	ws := &wallet.Service{
		Store:       store,
		Publisher:   mux,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	httpx.Mount(router, []byte(cfg.JWTSecret),
		&httpx.PaymentsHandler{Service: ss},
		&httpx.WalletHandler{Service: ws},
	)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	// close inboxes, then wait for the writers to flush
	for _, p := range mux {
		p.Close()
	}
	for _, p := range mux {
		p.WaitClosed()
	}
}
