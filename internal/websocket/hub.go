package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "chat_cluster_events"

// Hub maps identities to their live connections on this instance and relays
// frames for identities connected to other instances through redis.
type Hub struct {
	mu sync.RWMutex
	// identity key -> connection id -> sink (multi-device)
	sinks map[string]map[string]Sink
	// connection id -> identity key, so Unbind needs only the sink
	owners map[string]string

	// Redis connection for cross-instance communication, nil disables relaying
	rdb        *redis.Client
	channel    string
	instanceID string

	logger logger.ILogger
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Target string          `json:"target"`
	Frame  json.RawMessage `json:"frame"`
}

func NewHub(rdb *redis.Client, channel string, log logger.ILogger) *Hub {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &Hub{
		sinks:      make(map[string]map[string]Sink),
		owners:     make(map[string]string),
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Bind registers sink under identity. An identity may hold any number of sinks.
func (h *Hub) Bind(identity entity.Identity, sink Sink) error {
	if identity.IsZero() {
		return errMissingIdentity
	}
	key := identity.Key()

	h.mu.Lock()
	if prev, ok := h.owners[sink.ID()]; ok && prev != key {
		h.removeLocked(sink.ID(), prev)
	}
	conns, ok := h.sinks[key]
	if !ok {
		conns = make(map[string]Sink)
		h.sinks[key] = conns
	}
	conns[sink.ID()] = sink
	h.owners[sink.ID()] = key
	total := len(conns)
	h.mu.Unlock()

	h.logger.Info("Hub", "Client registered", map[string]interface{}{"identity": key, "conn_id": sink.ID(), "devices": total})
	return nil
}

// Unbind removes sink. It reports whether the sink was bound; calling it twice
// is harmless.
func (h *Hub) Unbind(sink Sink) bool {
	h.mu.Lock()
	key, ok := h.owners[sink.ID()]
	if ok {
		h.removeLocked(sink.ID(), key)
	}
	_, stillOnline := h.sinks[key]
	h.mu.Unlock()

	if ok && !stillOnline {
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"identity": key})
	}
	return ok
}

func (h *Hub) removeLocked(connID, key string) {
	delete(h.owners, connID)
	if conns, ok := h.sinks[key]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.sinks, key)
		}
	}
}

// Resolve returns a snapshot of identity's sinks. Offline yields an empty slice.
func (h *Hub) Resolve(identity entity.Identity) []Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.sinks[identity.Key()]
	out := make([]Sink, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

func (h *Hub) Online(identity entity.Identity) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sinks[identity.Key()]
	return ok
}

// Count returns the number of live connections on this instance.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners)
}

// Relay publishes frame for identity to the other instances. It is a no-op
// without redis.
func (h *Hub) Relay(ctx context.Context, identity entity.Identity, frame []byte) error {
	if h.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(relayEnvelope{
		Origin: h.instanceID,
		Target: identity.Key(),
		Frame:  frame,
	})
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, h.channel, payload).Err()
}

// Run consumes relayed frames until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()
	h.logger.Info("Hub", "Relay subscribed", map[string]interface{}{"channel": h.channel, "instance_id": h.instanceID})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliverRelayed(msg.Payload)
		}
	}
}

// deliverRelayed pushes a frame published by another instance to local sinks.
func (h *Hub) deliverRelayed(raw string) int {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		h.logger.Warn("Hub", "Relay payload parse error", map[string]interface{}{"error": err.Error()})
		return 0
	}
	if env.Origin == h.instanceID {
		return 0
	}

	h.mu.RLock()
	conns := make([]Sink, 0, len(h.sinks[env.Target]))
	for _, s := range h.sinks[env.Target] {
		conns = append(conns, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range conns {
		if err := s.Push(env.Frame); err != nil {
			h.logger.Warn("Hub", "Relayed push failed, dropping connection", map[string]interface{}{"conn_id": s.ID(), "error": err.Error()})
			h.Unbind(s)
			s.Close()
			continue
		}
		delivered++
	}
	return delivered
}
