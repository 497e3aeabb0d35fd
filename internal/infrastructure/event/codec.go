package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/freightdesk/backend/internal/domain/shared"
)

// Factory returns a zero value of a concrete event type to decode into
type Factory func() shared.DomainEvent

// Codec encodes domain events to JSON for the outbox and decodes stored
// payloads back into their concrete types
type Codec struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCodec creates an empty codec; see RegisterFreightEvents
func NewCodec() *Codec {
	return &Codec{factories: make(map[string]Factory)}
}

// Register binds an event type name to the factory used on decode.
// Registering the same name twice replaces the earlier factory.
func (c *Codec) Register(eventType string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[eventType] = factory
}

// Serialize encodes event as JSON
func (c *Codec) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes a stored payload into the type registered for eventType
func (c *Codec) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	c.mu.RLock()
	factory, ok := c.factories[eventType]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be decoded
func (c *Codec) IsRegistered(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event type names in sorted order
func (c *Codec) RegisteredTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]string, 0, len(c.factories))
	for t := range c.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var _ shared.EventSerializer = (*Codec)(nil)
