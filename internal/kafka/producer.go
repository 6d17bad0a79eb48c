package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"log"
	"sync"
	"time"
)

type Producer struct {
	w       *kafka.Writer
	topic   string
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex // guards closed against sends on a closed inbox
	closed bool

	// EnqueueWait bounds how long Publish waits on a full inbox.
	EnqueueWait time.Duration
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  10,
		},
		topic:       topic,
		inbox:       make(chan kafka.Message, buf),
		closeCh:     make(chan struct{}),
		EnqueueWait: 2 * time.Second,
	}
}

// Start runs the write loop until Close. Writes use their own timeout so a
// cancelled request context never drops a queued event.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(wctx, m); err != nil {
				log.Printf("kafka: write %s key=%s: %v", p.topic, m.Key, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("kafka: close writer %s: %v", p.topic, err)
		}
	}()
}

// Publish queues a message. It never blocks longer than EnqueueWait and
// drops, with a log line, when the inbox is full or the producer is closed.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("kafka: producer %s closed, dropped key=%s", p.topic, key)
		return
	}
	t := time.NewTimer(p.EnqueueWait)
	defer t.Stop()
	select {
	case p.inbox <- m:
	case <-t.C:
		log.Printf("kafka: producer %s inbox full, dropped key=%s", p.topic, key)
	}
}

// PublishEvent implements ledger.Publisher.
func (p *Producer) PublishEvent(key, value []byte, eventType string) {
	p.Publish(key, value,
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.closeCh }

// Mux routes events to one producer per topic by event type.
type Mux map[string]*Producer

func (m Mux) PublishEvent(key, value []byte, eventType string) {
	p, ok := m[eventType]
	if !ok {
		log.Printf("kafka: no topic for event %s, dropped", eventType)
		return
	}
	p.PublishEvent(key, value, eventType)
}
