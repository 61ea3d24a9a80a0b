/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/stallcast/internal/events"
)

func TestMessageRoundTripKeepsNode(t *testing.T) {
	data, err := marshalMessage(events.EventOrderStatus, events.Payload{"order_id": "o-1"}, "node-a")
	require.NoError(t, err)

	msg, err := unmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "node-a", msg.NodeID)
	assert.Equal(t, "o-1", msg.Payload.String("order_id"))
	assert.NotEmpty(t, msg.MessageID)

	_, err = unmarshalMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestNodeIDIsUnique(t *testing.T) {
	a, b := NodeID(), NodeID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.Contains(a, "-"))
}

func assertLocalDelivery(t *testing.T, bus Bus) {
	t.Helper()
	sub := bus.Subscribe(events.EventSlotCongested)
	bus.Publish(events.EventSlotCongested, events.Payload{"slot": "12:00"})

	select {
	case p := <-sub:
		assert.Equal(t, "12:00", p.String("slot"))
	case <-time.After(time.Second):
		t.Fatal("local subscriber did not receive event")
	}
	bus.Unsubscribe(events.EventSlotCongested, sub)
}

func TestRedisBusFallsBackToLocalDelivery(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	bus, err := NewRedisBus(cfg, "node-test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	assert.True(t, bus.Fallback())
	assertLocalDelivery(t, bus)
}

func TestNATSBusFallsBackToLocalDelivery(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	bus, err := NewNATSBus(cfg, "node-test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	assert.True(t, bus.Fallback())
	assertLocalDelivery(t, bus)
}
