// Package redisqueue wires thermit's adaptation interface to Redis:
// an outbound-file queue a session polls for its next file to send,
// and a diagnostics/state reporter an operator dashboard can subscribe
// to. Both are optional decorations around the core session — nothing
// in internal/session imports this package directly.
package redisqueue

import (
	"log"
	"time"

	"github.com/djtremolo/thermit/pkg/redisclient"
)

// DefaultOutboxKey is the list key external producers LPUSH filenames
// onto for a session to pick up and send.
const DefaultOutboxKey = "thermit:outbox"

// Sender implements adapt.OutboundSource by BRPOP-ing pending filenames
// off a Redis list, mirroring pkg/redis/client.go's LPush/BRPop pair
// repurposed from the BLE command queue to a file queue.
type Sender struct {
	client *redisclient.Client
	key    string
	sizeOf func(name string) (uint16, bool)
}

// NewSender returns a Sender popping from key (DefaultOutboxKey if
// empty). sizeOf resolves a popped name to its size on disk; if it
// returns ok=false the name is dropped and the next step tries again.
func NewSender(client *redisclient.Client, key string, sizeOf func(name string) (uint16, bool)) *Sender {
	if key == "" {
		key = DefaultOutboxKey
	}
	return &Sender{client: client, key: key, sizeOf: sizeOf}
}

// Next pops one pending filename without blocking the caller's step
// loop (BRPOP with a near-zero timeout).
func (s *Sender) Next() (name string, size uint16, ok bool) {
	result, err := s.client.BRPop(10*time.Millisecond, s.key)
	if err != nil {
		log.Printf("redisqueue: BRPOP %s failed: %v", s.key, err)
		return "", 0, false
	}
	if result == nil {
		return "", 0, false
	}

	name = result[1]
	size, ok = s.sizeOf(name)
	if !ok {
		log.Printf("redisqueue: popped %q but could not stat it, dropping", name)
		return "", 0, false
	}
	return name, size, true
}

// Reporter publishes session diagnostics and state transitions to a
// Redis hash/channel pair keyed by link name, the direct generalization
// of redis_handlers.go's "update and publish" pattern.
type Reporter struct {
	client   *redisclient.Client
	key      string
}

// NewReporter returns a Reporter publishing under "thermit:<linkName>".
func NewReporter(client *redisclient.Client, linkName string) *Reporter {
	return &Reporter{client: client, key: "thermit:" + linkName}
}

// ReportState publishes the session's current state name.
func (r *Reporter) ReportState(state string) {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.WriteAndPublishString(r.key, "state", state); err != nil {
		log.Printf("redisqueue: failed to publish state: %v", err)
	}
}

// ReportCounter publishes a single diagnostics counter by name.
func (r *Reporter) ReportCounter(name string, value uint32) {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.WriteAndPublishInt(r.key, name, int(value)); err != nil {
		log.Printf("redisqueue: failed to publish counter %s: %v", name, err)
	}
}
