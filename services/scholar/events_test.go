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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(nil)
	id, events := hub.Subscribe()
	defer hub.Unsubscribe(id)
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Publish(Event{Type: EventBatchIngested, Payload: map[string]any{"works": 3}})

	select {
	case evt := <-events:
		assert.Equal(t, EventBatchIngested, evt.Type)
		assert.False(t, evt.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	id, events := hub.Subscribe()
	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.SubscriberCount())

	hub.Publish(Event{Type: EventInferenceCompleted})
	select {
	case <-events:
		t.Fatal("unexpected delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	id, _ := hub.Subscribe()
	defer hub.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(Event{Type: EventAnalyticsCompleted})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHandleEvents_StreamsOverWebsocket(t *testing.T) {
	router, svc := newTestRouter(t, RouterOptions{})
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/corpus/events"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer ws.Close()

	// The subscription registers inside the handler goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for svc.Hub().SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, svc.Hub().SubscriberCount())

	svc.Hub().Publish(Event{Type: EventBatchIngested, Payload: map[string]any{"works": 1}})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt Event
	require.NoError(t, ws.ReadJSON(&evt))
	assert.Equal(t, EventBatchIngested, evt.Type)
}
