package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherForwardsToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.AccountID != "a1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	// Emitting through a nil dispatcher must be a no-op, not a panic.
	d.Emit(context.Background(), Event{EventType: "noop"})
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "lockout_triggered", AccountID: "a2"})

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("sink output is not valid JSON: %v", err)
	}
	if decoded.EventType != "lockout_triggered" {
		t.Fatalf("unexpected event type %q", decoded.EventType)
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	d.Close()

	received := 0
	for {
		select {
		case <-sink.Events():
			received++
			if received == 5 {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("expected 5 events after Close, got %d", received)
		}
	}
}
