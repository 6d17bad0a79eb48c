package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"log"
	"sync"
	"time"
)

// Handler must return nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches until ctx is done. Each partition is pinned to one worker so
// its messages are handled and committed in order. A failing message is
// retried in place; nothing after it in the partition is committed until it
// succeeds.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 128)
	}
	var wg sync.WaitGroup
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()
	// stop retrying workers on any exit, including a fetch error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := range lanes {
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, h, m) {
					// ctx done; leave the rest uncommitted for the next owner
					for range jobs {
					}
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Printf("kafka: commit %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
				}
			}
		}(lanes[i])
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case lanes[m.Partition%len(lanes)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds. It reports false if ctx ended first.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	backoff := minBackoff
	for {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.Printf("kafka: handle %s/%d@%d (retry in %s): %v", m.Topic, m.Partition, m.Offset, backoff, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

var (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)
