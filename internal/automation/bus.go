package automation

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// triggerQueueKey is the Redis list the bus pushes trigger events to.
const triggerQueueKey = "automation:triggers"

// TriggerEvent is the wire form of one domain event on the bus.
type TriggerEvent struct {
	Trigger    domain.TriggerType    `json:"trigger"`
	Context    domain.TriggerContext `json:"context"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

// Bus publishes trigger events onto a Redis list. Producers (deal and
// activity handlers) call Publish and move on; whatever the rules do
// with the event happens on the consumer side.
type Bus struct {
	redis    *redis.Client
	queueKey string
}

func NewBus(rc *redis.Client) *Bus {
	return &Bus{redis: rc, queueKey: triggerQueueKey}
}

// Publish enqueues the event without blocking the caller. Publish
// failures are logged and swallowed: automation is best-effort from
// the producer's point of view, and a Redis outage must not fail the
// CRUD operation that raised the event.
func (b *Bus) Publish(trigger domain.TriggerType, tc *domain.TriggerContext) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.publish(ctx, trigger, tc); err != nil {
			log.Printf("[automation] publish %s for deal %d failed: %v", trigger, tc.DealID, err)
		}
	}()
}

func (b *Bus) publish(ctx context.Context, trigger domain.TriggerType, tc *domain.TriggerContext) error {
	payload, err := json.Marshal(TriggerEvent{
		Trigger:    trigger,
		Context:    *tc,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return b.redis.LPush(ctx, b.queueKey, payload).Err()
}

// Consumer drains the trigger queue and feeds events to the engine.
type Consumer struct {
	redis    *redis.Client
	engine   *Engine
	queueKey string
}

func NewConsumer(rc *redis.Client, engine *Engine) *Consumer {
	return &Consumer{redis: rc, engine: engine, queueKey: triggerQueueKey}
}

// Run blocks until ctx is cancelled, processing events one at a time.
// Events run in arrival order; a malformed or failing event is logged
// and dropped rather than retried, since rule execution is not
// idempotent (a retried move_deal would append duplicate activities).
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("[automation] consumer started on %s", c.queueKey)
	for {
		if ctx.Err() != nil {
			log.Println("[automation] consumer stopped")
			return
		}
		if err := c.step(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("[automation] consumer stopped")
				return
			}
			log.Printf("[automation] consume failed: %v", err)
			time.Sleep(1 * time.Second)
		}
	}
}

// step pops and processes one event. A timeout with an empty queue is
// not an error.
func (c *Consumer) step(ctx context.Context) error {
	res, err := c.redis.BRPop(ctx, 5*time.Second, c.queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var event TriggerEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		log.Printf("[automation] dropping malformed event: %v", err)
		return nil
	}

	if err := c.engine.ExecuteRulesForTrigger(ctx, event.Trigger, &event.Context); err != nil {
		log.Printf("[automation] trigger %s for deal %d failed: %v", event.Trigger, event.Context.DealID, err)
	}
	return nil
}
