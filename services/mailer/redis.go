package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"math/rand"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher queues rendered messages on Redis streams for the
// external sending process. The message body is base64 encoded so stream
// consumers never trip over HTML in field values.
type RedisDispatcher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisDispatcher creates a Redis-backed mail dispatcher.
func NewRedisDispatcher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisDispatcher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisDispatcher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Send queues one message on a randomly sharded outbox stream.
// If streamCount is 10, stream names run mailout:0 ~ mailout:9.
func (d *RedisDispatcher) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	stream := d.streamPrefix + ":" + strconv.Itoa(rand.Intn(d.streamCount))

	return d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"message": encoded,
		},
	}).Err()
}

// TrimStreams trims all outbox streams to the configured maximum length
func (d *RedisDispatcher) TrimStreams(ctx context.Context) error {
	pattern := d.streamPrefix + ":*"
	streams, err := d.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		if err := d.client.XTrimMaxLen(ctx, stream, int64(d.streamMaxLength)).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the Redis connection
func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
