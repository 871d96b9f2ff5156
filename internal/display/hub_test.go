package display

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"live-transcript-reconciler/internal/models"
)

func waitClosed(t *testing.T, ch chan []byte) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestHub_BroadcastRecord_DeliversToViewer(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- c

	h.BroadcastRecord(models.TranscriptRecord{SpeakerID: "speaker-1", Text: "hello"})

	select {
	case data := <-c.send:
		var msg viewMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if msg.Type != "record" || msg.Record == nil || msg.Record.SpeakerID != "speaker-1" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_BroadcastClear(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- c

	h.BroadcastClear()

	select {
	case data := <-c.send:
		var msg viewMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if msg.Type != "clear" {
			t.Errorf("expected clear message, got %s", msg.Type)
		}
		if msg.Record != nil {
			t.Errorf("expected no record payload, got %+v", msg.Record)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_SlowViewerDropped(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// A viewer that never drains its send channel.
	c := &client{hub: h, send: make(chan []byte)}
	h.register <- c

	h.BroadcastRecord(models.TranscriptRecord{SpeakerID: "speaker-1"})

	waitClosed(t, c.send)
}

func TestHub_CancelClosesViewers(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- c

	cancel()
	waitClosed(t, c.send)
}
