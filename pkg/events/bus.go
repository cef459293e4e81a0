package events

import (
	"log/slog"
	"sync"
	"time"
)

// busWatermark is the queued-event count that triggers a warning log. The
// queue is unbounded in principle; the watermark only surfaces a lagging
// consumer.
const busWatermark = 256

// Bus is the per-request FIFO event queue: single producer discipline per
// stage, single consumer per request. Producers never block — envelopes are
// appended under a mutex and a dispatcher goroutine hands them to the
// consumer in order. A heartbeat is enqueued at creation and on an interval
// until the first stage event appears.
//
// The terminal done event is the unique signal that ends the subscription:
// after it is delivered the events channel closes. Publishes after the
// terminal event are dropped with a warning.
type Bus struct {
	requestID string

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Envelope
	terminal bool // a done event has been enqueued
	sawStage bool // a non-heartbeat event has been enqueued
	warned   bool

	out chan Envelope

	heartbeatStop chan struct{}
	stopOnce      sync.Once
}

// NewBus creates the bus for one request and starts its dispatcher and
// heartbeat goroutines. heartbeatInterval <= 0 disables the interval ticker
// (the entry heartbeat is still enqueued).
func NewBus(requestID string, heartbeatInterval time.Duration) *Bus {
	b := &Bus{
		requestID:     requestID,
		out:           make(chan Envelope),
		heartbeatStop: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)

	go b.dispatch()

	// Entry heartbeat so the subscriber sees life immediately.
	b.enqueue(newEnvelope(StageHeartbeat, StatusRunning, HeartbeatPayload{RequestID: requestID, Seq: 0}, 0))
	if heartbeatInterval > 0 {
		go b.heartbeatLoop(heartbeatInterval)
	}
	return b
}

// Events returns the single-consumer channel of envelopes, closed after the
// terminal done event is delivered.
func (b *Bus) Events() <-chan Envelope {
	return b.out
}

// Publish enqueues a stage event. latency is the elapsed time since stage
// entry (zero for instantaneous events). Safe for concurrent use; FIFO order
// is the enqueue order.
func (b *Bus) Publish(stage string, status Status, payload any, latency time.Duration) {
	b.enqueue(newEnvelope(stage, status, payload, latency))
}

// enqueue appends an envelope, tracking terminal and first-stage state.
func (b *Bus) enqueue(env Envelope) {
	b.mu.Lock()
	if b.terminal {
		b.mu.Unlock()
		slog.Warn("Event published after terminal event, dropping",
			"request_id", b.requestID, "stage", env.Stage, "status", env.Status)
		return
	}
	if env.Stage == StageHeartbeat && b.sawStage {
		// A tick can race the first stage event; late heartbeats are dropped
		// so the stream never interleaves them with stage progress.
		b.mu.Unlock()
		return
	}
	if env.Stage == StageDone {
		b.terminal = true
	}
	if env.Stage != StageHeartbeat && !b.sawStage {
		b.sawStage = true
		b.stopOnce.Do(func() { close(b.heartbeatStop) })
	}
	b.queue = append(b.queue, env)
	if len(b.queue) > busWatermark && !b.warned {
		b.warned = true
		slog.Warn("Event bus queue above watermark — consumer lagging",
			"request_id", b.requestID, "queued", len(b.queue))
	}
	b.cond.Signal()
	b.mu.Unlock()
}

// dispatch delivers queued envelopes to the consumer in order, then closes
// the channel after the terminal event.
func (b *Bus) dispatch() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 {
			b.cond.Wait()
		}
		env := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.out <- env
		if env.Stage == StageDone {
			close(b.out)
			return
		}
	}
}

// heartbeatLoop enqueues heartbeats on the interval until the first stage
// event is published or the bus terminates.
func (b *Bus) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 1
	for {
		select {
		case <-b.heartbeatStop:
			return
		case <-ticker.C:
			b.mu.Lock()
			stale := b.terminal || b.sawStage
			b.mu.Unlock()
			if stale {
				return
			}
			b.enqueue(newEnvelope(StageHeartbeat, StatusRunning, HeartbeatPayload{RequestID: b.requestID, Seq: seq}, 0))
			seq++
		}
	}
}
