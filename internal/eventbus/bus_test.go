package eventbus

import (
	"testing"
	"time"

	"pkt.systems/varsync/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("s1")
	defer cancel()

	event := schema.SessionEvent{Type: schema.EventPlugin, SessionID: "s1", Plugin: schema.PluginInfo{Event: schema.PluginEventConnectionReceived}}
	bus.Publish(event)

	select {
	case got := <-ch:
		if got.Type != schema.EventPlugin {
			t.Fatalf("expected plugin event, got %v", got.Type)
		}
		if got.Plugin.Event != schema.PluginEventConnectionReceived {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestAnySessionReceivesEverything(t *testing.T) {
	bus := New(nil)
	all, cancelAll := bus.Subscribe(AnySession)
	defer cancelAll()
	other, cancelOther := bus.Subscribe("s2")
	defer cancelOther()

	bus.Publish(schema.SessionEvent{Type: schema.EventState, SessionID: "s1", State: schema.StateConnected})

	select {
	case got := <-all:
		if got.SessionID != "s1" || got.State != schema.StateConnected {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("wildcard subscriber missed event")
	}
	select {
	case got := <-other:
		t.Fatalf("unrelated session received %+v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("s1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("s1")
	defer cancel()

	bus.Publish(schema.SessionEvent{SessionID: "s1"})
	done := make(chan struct{})
	go func() {
		bus.Publish(schema.SessionEvent{SessionID: "s1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
