package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/acotrina/fise-coupon-service/environments"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

const dedupKeyPrefix = "fise:dedup:"

// Client is a Valkey-backed deduplication filter. It mirrors the in-memory
// cache's contract but survives process restarts and is shared between
// replicas; expiry is handled by the server-side TTL instead of lazy
// eviction. Lookups that fail (server down, timeout) report "process it":
// duplicate work is cheaper than dropped coupons.
type Client struct {
	client valkey.Client
	window time.Duration
}

func NewClient(cfg environments.ValkeyConfig, window time.Duration) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	logger.Infof("Connected to Valkey for deduplication")

	return &Client{client: client, window: window}, nil
}

func (c *Client) ShouldProcess(sender, body string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := dedupKeyPrefix + fingerprint(sender, body)

	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		logger.Warnf("Dedup lookup failed, allowing message: %v", err)
		return true
	}
	return n == 0
}

func (c *Client) MarkProcessed(sender, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := dedupKeyPrefix + fingerprint(sender, body)

	err := c.client.Do(ctx, c.client.B().Set().Key(key).Value("1").Ex(c.window).Build()).Error()
	if err != nil {
		logger.Warnf("Failed to mark message processed in Valkey: %v", err)
	}
}

// Sweep is a no-op: Valkey expires dedup keys itself.
func (c *Client) Sweep() int { return 0 }

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func fingerprint(sender, body string) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
