// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
)

// Handler consumes a decoded event. Handlers must not block; slow work
// belongs on the handler's own goroutine or buffer.
type Handler func(Event)

// Dispatcher fans bus events out to registered handlers. It runs as a
// supervised service: Serve subscribes to every topic that has at
// least one handler and pumps messages until the context is canceled.
//
// Handlers must all be registered before the dispatcher is started;
// On is not safe to call concurrently with Serve.
type Dispatcher struct {
	bus *Bus

	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewDispatcher creates a dispatcher over bus.
func NewDispatcher(bus *Bus) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for topic.
func (d *Dispatcher) On(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = append(d.handlers[topic], h)
}

// Serve implements suture.Service. It subscribes to every registered
// topic and dispatches until ctx is canceled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.mu.Lock()
	topics := make([]string, 0, len(d.handlers))
	for topic := range d.handlers {
		topics = append(topics, topic)
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, err := d.bus.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string, ch <-chan *message.Message) {
			defer wg.Done()
			d.pump(ctx, topic, ch)
		}(topic, ch)
	}

	logging.Info().Int("topics", len(topics)).Msg("Event dispatcher started")
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// pump delivers messages for one topic until the channel closes or ctx
// is canceled. Messages are always acked; the bus carries
// notifications, not work, so there is nothing to retry.
func (d *Dispatcher) pump(ctx context.Context, topic string, ch <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			start := time.Now()
			ev, err := Decode(msg)
			if err != nil {
				logging.Warn().Err(err).Str("topic", topic).
					Str("message_id", msg.UUID).Msg("Dropping undecodable event")
				msg.Ack()
				continue
			}
			d.mu.Lock()
			handlers := d.handlers[topic]
			d.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
			msg.Ack()
			metrics.RecordEventConsumed(topic, time.Since(start))
		}
	}
}

// String implements suture's service naming.
func (d *Dispatcher) String() string {
	return "notify-dispatcher"
}
