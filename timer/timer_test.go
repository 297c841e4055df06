package timer

import (
	"testing"
	"time"
)

func TestManager_AfterFires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan struct{})
	m.After(50*time.Millisecond, "room1", func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan struct{}, 1)
	id := m.After(100*time.Millisecond, "room1", func() {
		fired <- struct{}{}
	})
	m.Cancel(id)

	select {
	case <-fired:
		t.Fatal("a cancelled timer must not fire")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestManager_CancelTag(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	fired := make(chan string, 3)
	m.After(100*time.Millisecond, "room1", func() { fired <- "room1-a" })
	m.After(120*time.Millisecond, "room1", func() { fired <- "room1-b" })
	m.After(100*time.Millisecond, "room2", func() { fired <- "room2" })

	m.CancelTag("room1")

	select {
	case got := <-fired:
		if got != "room2" {
			t.Fatalf("Expected only the room2 timer to fire, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("the untagged timer should still fire")
	}

	select {
	case got := <-fired:
		t.Fatalf("cancelled timer %s fired", got)
	case <-time.After(300 * time.Millisecond):
	}
}
