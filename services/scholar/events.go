// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scholar

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event types published by the service.
const (
	EventBatchIngested      = "batch_ingested"
	EventInferenceCompleted = "inference_completed"
	EventAnalyticsCompleted = "analytics_completed"
)

// Event is one corpus lifecycle notification.
type Event struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`

	// Time is when the event was published.
	Time time.Time `json:"time"`

	// Payload carries event-specific fields.
	Payload map[string]any `json:"payload,omitempty"`
}

var eventUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// Hub fans corpus events out to websocket subscribers.
//
// Thread Safety: safe for concurrent use. Publish never blocks; a
// subscriber that cannot keep up drops events.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[string]chan Event),
	}
}

// Publish broadcasts an event to every subscriber. The event time is
// stamped here if unset.
func (h *Hub) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("subscriber lagging, dropping event", "subscriber", id, "type", evt.Type)
		}
	}
}

// Subscribe registers a buffered event channel. Callers must
// Unsubscribe with the returned id.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// HandleEvents handles GET /v1/corpus/events.
//
// Description:
//
//	Upgrades the connection to a websocket and streams corpus events as
//	JSON frames until the client disconnects. A ping is sent every 30s
//	to keep intermediaries from closing the idle connection.
func (h *Handlers) HandleEvents(c *gin.Context) {
	ws, err := eventUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger().Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	id, events := h.svc.Hub().Subscribe()
	defer h.svc.Hub().Unsubscribe(id)
	h.logger().Info("events client connected", "subscriber", id)

	// Drain client frames so pongs and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			h.logger().Info("events client disconnected", "subscriber", id)
			return
		case <-c.Request.Context().Done():
			return
		case evt := <-events:
			if err := ws.WriteJSON(evt); err != nil {
				h.logger().Warn("event write failed", "subscriber", id, "error", err)
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
