package redisx

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"log"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache implements the settlement idempotency cache. Redis errors degrade to
// cache misses.
type Cache struct {
	RDB *redis.Client
}

func (c *Cache) PaymentForOrder(ctx context.Context, orderID string) (string, bool) {
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemPayment, orderID)).Result()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c *Cache) RememberPayment(ctx context.Context, orderID, paymentID string) {
	if err := c.RDB.Set(ctx, fmt.Sprintf(KeyIdemPayment, orderID), paymentID, TTLIdempotency).Err(); err != nil {
		log.Printf("redis: remember payment %s: %v", orderID, err)
	}
}

// Processed reports whether service already finished eventID. Errors read as
// not processed; handlers must stay idempotent on their own.
func Processed(ctx context.Context, rdb *redis.Client, service, eventID string) bool {
	n, err := rdb.Exists(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Result()
	return err == nil && n > 0
}

// MarkProcessed records that service finished eventID. Call it only after the
// work has been committed.
func MarkProcessed(ctx context.Context, rdb *redis.Client, service, eventID string) {
	if err := rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Err(); err != nil {
		log.Printf("redis: mark %s/%s: %v", service, eventID, err)
	}
}

// Dedup binds Processed and MarkProcessed to one consumer name.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

func (d *Dedup) Processed(ctx context.Context, eventID string) bool {
	return Processed(ctx, d.RDB, d.Service, eventID)
}

func (d *Dedup) MarkProcessed(ctx context.Context, eventID string) {
	MarkProcessed(ctx, d.RDB, d.Service, eventID)
}
