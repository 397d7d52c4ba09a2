package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventSnapshotLoaded)

	bus.Publish(&SnapshotEvent{
		BaseEvent: BaseEvent{EventType: EventSnapshotLoaded, Time: time.Now()},
		ClientID:  "c1",
		Sequence:  3,
		Folders:   4,
		Files:     2,
	})

	select {
	case received := <-ch:
		snap, ok := received.(*SnapshotEvent)
		if !ok {
			t.Fatal("Expected SnapshotEvent")
		}
		if snap.ClientID != "c1" {
			t.Errorf("Expected client 'c1', got '%s'", snap.ClientID)
		}
		if snap.Sequence != 3 {
			t.Errorf("Expected sequence 3, got %d", snap.Sequence)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventLog)
	ch2 := bus.Subscribe(EventLog)

	bus.PublishLog(InfoLevel, "Test log", nil)

	received1 := false
	received2 := false

	select {
	case <-ch1:
		received1 = true
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-ch2:
		received2 = true
	case <-time.After(100 * time.Millisecond):
	}

	if !received1 || !received2 {
		t.Error("Not all subscribers received the event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	navCh := bus.Subscribe(EventNavigationChanged)
	logCh := bus.Subscribe(EventLog)

	bus.Publish(&NavigationEvent{
		BaseEvent: BaseEvent{EventType: EventNavigationChanged, Time: time.Now()},
		Path:      []string{"Root"},
	})

	select {
	case <-navCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Navigation subscriber didn't receive event")
	}

	select {
	case <-logCh:
		t.Error("Log subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish(&UploadEvent{
		BaseEvent: BaseEvent{EventType: EventUploadCompleted, Time: time.Now()},
	})
	bus.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
	})

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventUploadProgress)

	for i := 0; i < 10; i++ {
		bus.Publish(&UploadEvent{
			BaseEvent: BaseEvent{EventType: EventUploadProgress, Time: time.Now()},
			FileName:  "a.pdf",
		})
	}

	count := 0
drain:
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			break drain
		}
	}

	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("Expected 8 dropped events, got %d", dropped)
	}
	if reset := bus.ResetDroppedEventCount(); reset != 8 {
		t.Errorf("Reset returned %d, want 8", reset)
	}
	if bus.GetDroppedEventCount() != 0 {
		t.Error("Dropped count not reset")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventFileDeleted)

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.Publish(&MutationEvent{
		BaseEvent: BaseEvent{EventType: EventFileDeleted, Time: time.Now()},
	})

	// Subscribing after close yields a closed channel
	if _, ok := <-bus.Subscribe(EventLog); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(&LogEvent{BaseEvent: BaseEvent{EventType: EventLog}})
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventMutationFailed)
	bus.Unsubscribe(EventMutationFailed, ch)

	bus.Publish(&MutationEvent{
		BaseEvent: BaseEvent{EventType: EventMutationFailed, Time: time.Now()},
		Error:     errors.New("boom"),
	})

	select {
	case <-ch:
		t.Error("Unsubscribed channel received an event")
	case <-time.After(20 * time.Millisecond):
	}

	all := bus.SubscribeAll()
	bus.UnsubscribeAll(all)
	bus.PublishLog(WarnLevel, "ignored", nil)
	select {
	case <-all:
		t.Error("UnsubscribeAll channel received an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}

func TestEventBus_EveryTypeRoutesToItsSubscriber(t *testing.T) {
	types := []EventType{
		EventLog,
		EventSnapshotLoaded,
		EventSnapshotFailed,
		EventNavigationChanged,
		EventUploadProgress,
		EventUploadCompleted,
		EventFileDeleted,
		EventFolderCreated,
		EventMutationFailed,
	}

	bus := NewEventBus(len(types))
	defer bus.Close()

	chans := make(map[EventType]<-chan Event, len(types))
	for _, typ := range types {
		if _, dup := chans[typ]; dup {
			t.Fatalf("duplicate event type %q", typ)
		}
		chans[typ] = bus.Subscribe(typ)
	}
	for _, typ := range types {
		bus.Publish(&MutationEvent{BaseEvent: BaseEvent{EventType: typ, Time: time.Now()}})
	}

	for _, typ := range types {
		select {
		case ev := <-chans[typ]:
			if ev.Type() != typ {
				t.Errorf("subscriber of %q got %q", typ, ev.Type())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("no event delivered for %q", typ)
		}
		select {
		case ev := <-chans[typ]:
			t.Errorf("subscriber of %q got extra event %q", typ, ev.Type())
		default:
		}
	}
}
