// Package redis mirrors bot events to Redis so other processes (dashboards,
// analytics, alerting) can follow the session without a WebSocket connection.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"algotrader/internal/model"
)

const (
	channelPrefix  = "pub:bot:"
	latestStateKey = "bot:state:latest"
	latestStateTTL = 30 * time.Minute
	publishTimeout = 2 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher implements model.EventSink over Redis PubSub. Each event goes to
// "pub:bot:<type>"; state_update events additionally refresh the latest
// snapshot key so late joiners can GET it.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Publish mirrors one event. Failures are logged, never propagated: the
// trading loop must not stall on a Redis outage.
func (p *Publisher) Publish(ev model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	payload := ev.JSON()
	channel := channelPrefix + string(ev.Type)

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, channel, payload)
	if ev.Type == model.EventStateUpdate {
		pipe.Set(ctx, latestStateKey, payload, latestStateTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] publish %s failed: %v", channel, err)
	}
}

// Close releases the client connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
