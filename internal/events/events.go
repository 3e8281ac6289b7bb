package events

import (
	"context"
	"sync"
	"time"
)

const (
	EventTypeStockMoved = "inventory.stock_moved"

	TopicInventoryMovements = "inventory-movements"
)

// MovementEvent is published once per committed inventory movement.
type MovementEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	MovementID    uint      `json:"movement_id"`
	ProductID     uint      `json:"product_id"`
	ProductCode   string    `json:"product_code"`
	MovementType  string    `json:"movement_type"`
	Quantity      float64   `json:"quantity"`
	StockAfter    float64   `json:"stock_after"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   uint      `json:"reference_id"`
	UserID        uint      `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

type Publisher interface {
	PublishMovement(ctx context.Context, event MovementEvent) error
	Close() error
}

// Default is swapped for a Kafka publisher at startup when brokers are configured.
var Default Publisher = NopPublisher{}

type NopPublisher struct{}

func (NopPublisher) PublishMovement(context.Context, MovementEvent) error { return nil }
func (NopPublisher) Close() error                                        { return nil }

// MemoryPublisher keeps events in memory. Used by tests and local runs without Kafka.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []MovementEvent
}

func (p *MemoryPublisher) PublishMovement(_ context.Context, event MovementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []MovementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MovementEvent, len(p.events))
	copy(out, p.events)
	return out
}
