package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrMiss is returned by Get for a key that does not exist.
var ErrMiss = errors.New("cache miss")

// Cache implements ports.CacheService using Valkey (Redis-compatible).
// Every key is stored under prefix so several deployments can share a server.
type Cache struct {
	client valkey.Client
	prefix string
}

// New creates a new Valkey cache client.
func New(addr, prefix string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, prefix: prefix}, nil
}

// Get retrieves a value by key. A missing key yields ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return b, nil
}

// Set stores a value with a TTL in seconds. A non-positive TTL stores the key
// without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(c.prefix+key).Value(valkey.BinaryString(value)).Build()).Error()
	}
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.prefix+key).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	cmd := c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build())
	return cmd.Error()
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
