package document

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Numberer hands out document numbers.
type Numberer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// RedisNumberer issues YYMMDD-NNN numbers from a per-day Redis counter. The
// day boundary follows Location, UTC when nil. Counters expire two days after
// first use.
type RedisNumberer struct {
	Client   *redis.Client
	Prefix   string
	Location *time.Location
}

const counterTTL = 48 * time.Hour

// Next increments the counter of the day containing at and formats the number.
func (n RedisNumberer) Next(ctx context.Context, at time.Time) (string, error) {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	day := at.In(loc).Format("060102")
	key := n.Prefix + day

	seq, err := n.Client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("document number: %w", err)
	}
	if seq == 1 {
		if err := n.Client.Expire(ctx, key, counterTTL).Err(); err != nil {
			return "", fmt.Errorf("document number ttl: %w", err)
		}
	}
	return fmt.Sprintf("%s-%03d", day, seq), nil
}
