// Package clickhouse writes per-artist sales deltas to the analytics
// warehouse.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/metalaloud/settlement/internal/config"
)

type Client struct {
	conn     driver.Conn
	database string
}

func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  30 * time.Second,
	}
	// 8443 is the TLS port; native 9000 stays plain
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn, database: cfg.Database}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// EnsureSchema creates the delta table. ReplacingMergeTree on
// (payment_id, artist_id) collapses redelivered events.
func (c *Client) EnsureSchema(ctx context.Context) error {
	return c.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.Fact_Artist_Sales_Delta (
			payment_id    String,
			order_id      String,
			artist_id     String,
			date_key      UInt32,
			delta_gross   Decimal(20, 2),
			delta_revenue Decimal(20, 2),
			delta_fee     Decimal(20, 2),
			delta_sold    Int64,
			event_id      String,
			event_time    DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree
		ORDER BY (payment_id, artist_id)
	`, c.database))
}

// InsertSalesDeltas writes rows in one batch.
func (c *Client) InsertSalesDeltas(ctx context.Context, rows []SalesDelta) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s.Fact_Artist_Sales_Delta (
			payment_id, order_id, artist_id, date_key,
			delta_gross, delta_revenue, delta_fee, delta_sold,
			event_id, event_time
		)`, c.database))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.PaymentID, r.OrderID, r.ArtistID, r.DateKey,
			r.DeltaGross, r.DeltaRevenue, r.DeltaFee, r.DeltaSold,
			r.EventID, r.EventTime,
		); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return batch.Send()
}
