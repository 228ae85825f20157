// Package redisclient is a small wrapper around go-redis, carrying the
// same publish/subscribe/queue helpers the bluetooth-service's Redis
// client offered, trimmed to what thermit's adaptation layer needs.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client bound to a background context.
type Client struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to addr and verifies the connection with a PING.
func New(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisclient: failed to connect to %s: %w", addr, err)
	}

	return &Client{client: client, ctx: ctx}, nil
}

// WriteAndPublishInt writes field=value into the key hash and publishes
// "field:value" on a channel of the same name.
func (c *Client) WriteAndPublishInt(key, field string, value int) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%d", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// WriteAndPublishString writes field=value into the key hash and
// publishes "field:value" on a channel of the same name.
func (c *Client) WriteAndPublishString(key, field, value string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// LPush pushes value onto the head of the list at key.
func (c *Client) LPush(key, value string) error {
	_, err := c.client.LPush(c.ctx, key, value).Result()
	return err
}

// BRPop pops the tail of the list at key, waiting up to timeout. A
// timeout returns (nil, nil), not an error.
func (c *Client) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redisclient: BRPOP %s: %w", key, err)
	}
	return result, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
