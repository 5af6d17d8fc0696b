package guard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// inFlightTTL caps how long an in-flight marker can linger if a process dies
// before calling Finish.
const inFlightTTL = 30 * time.Second

// Redis is the multi-instance Guard, for deployments running more than one
// API process. Duplicate detection rides on SET NX with a TTL.
type Redis struct {
	client *redis.Client
	window time.Duration
}

// NewRedis creates a Redis-backed guard. A zero window falls back to
// DefaultWindow.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window}
}

func (g *Redis) Begin(ctx context.Context, terminalID, actionID string) (bool, error) {
	key := "dedupe:" + terminalID + "|" + actionID
	ok, err := g.client.SetNX(ctx, key, "1", inFlightTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (g *Redis) Finish(ctx context.Context, terminalID, actionID string) {
	key := "dedupe:" + terminalID + "|" + actionID
	// Restart the TTL so the window counts from completion.
	g.client.PExpire(ctx, key, g.window)
}
