// Package events carries invalidation notices between independently cached
// collections, so that a change made through one controller reaches the
// others holding the same records.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Kind string

const (
	KindGrades      Kind = "grades"
	KindStudents    Kind = "students"
	KindFiles       Kind = "files"
	KindOccurrences Kind = "occurrences"
)

type Event struct {
	Kind      Kind   `json:"kind"`
	GradeID   string `json:"grade_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe delivers events until ctx is done or the returned cancel
	// function is called.
	Subscribe(ctx context.Context) (<-chan Event, func())
}

const subscriberBuffer = 16

// MemoryBus fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	logger *zap.Logger
}

func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{subs: make(map[int]chan Event), logger: logger}
}

func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping invalidation event", zap.Int("subscriber", id), zap.String("kind", string(event.Kind)))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ctx, stop := context.WithCancel(ctx)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, stop
}

const redisChannel = "chamada:invalidate"

// RedisBus publishes events on a redis channel so that other processes
// observing the same backend refetch as well.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: redisChannel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ctx, stop := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Event, subscriberBuffer)

	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("invalid invalidation payload", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, stop
}
