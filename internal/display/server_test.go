package display

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-transcript-reconciler/internal/events"
	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/reconcile"
	"live-transcript-reconciler/internal/service/ingest"
)

func newTestServer(t *testing.T) (*Server, *ingest.Service, *httptest.Server, context.CancelFunc) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := ingest.New(reconcile.New(), events.New(&events.Config{Enabled: false}), hub)
	s := NewServer(":0", svc, hub)
	ts := httptest.NewServer(s.Router())

	return s, svc, ts, cancel
}

func apply(t *testing.T, svc *ingest.Service, speakerID, speakerName, text string, completed bool) {
	t.Helper()
	_, err := svc.ApplyUpdate("test", models.Update{
		SpeakerID:   speakerID,
		SpeakerName: speakerName,
		Segments: []models.Segment{
			{Start: 0, End: 1.5, Text: text, Completed: completed},
		},
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
}

func TestServer_ListRecords(t *testing.T) {
	_, svc, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	apply(t, svc, "speaker-1", "Alice", "hello there", true)
	apply(t, svc, "speaker-2", "Bob", "hi", false)

	resp, err := http.Get(ts.URL + "/api/records")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var records []models.TranscriptRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SpeakerID != "speaker-1" || records[1].SpeakerID != "speaker-2" {
		t.Errorf("expected creation order, got %s, %s", records[0].SpeakerID, records[1].SpeakerID)
	}
}

func TestServer_ListRecords_EmptyIsArray(t *testing.T) {
	_, _, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	resp, err := http.Get(ts.URL + "/api/records")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestServer_GetRecord(t *testing.T) {
	_, svc, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	apply(t, svc, "speaker-1", "Alice", "hello there", true)

	resp, err := http.Get(ts.URL + "/api/records/speaker-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rec models.TranscriptRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rec.Text != "hello there" {
		t.Errorf("expected text 'hello there', got %q", rec.Text)
	}
}

func TestServer_GetRecord_NotFound(t *testing.T) {
	_, _, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	resp, err := http.Get(ts.URL + "/api/records/ghost")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_ClearRecords(t *testing.T) {
	_, svc, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	apply(t, svc, "speaker-1", "Alice", "hello", true)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/records", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["cleared"] != 1 {
		t.Errorf("expected 1 cleared, got %d", body["cleared"])
	}
	if svc.Len() != 0 {
		t.Errorf("expected no records after clear, got %d", svc.Len())
	}
}

func readView(t *testing.T, conn *websocket.Conn) viewMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg viewMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading view message: %v", err)
	}
	return msg
}

func TestServer_WS_ReceivesBroadcasts(t *testing.T) {
	_, svc, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the hub a beat to register the viewer before broadcasting.
	time.Sleep(50 * time.Millisecond)

	apply(t, svc, "speaker-1", "Alice", "hello there", false)

	msg := readView(t, conn)
	if msg.Type != "record" {
		t.Fatalf("expected record message, got %s", msg.Type)
	}
	if msg.Record == nil || msg.Record.SpeakerID != "speaker-1" {
		t.Fatalf("unexpected record payload: %+v", msg.Record)
	}
	if msg.Record.Text != "hello there" {
		t.Errorf("expected text 'hello there', got %q", msg.Record.Text)
	}

	svc.ClearAll()
	msg = readView(t, conn)
	if msg.Type != "clear" {
		t.Errorf("expected clear message, got %s", msg.Type)
	}
}

func TestServer_WS_ReplaysRecordsOnConnect(t *testing.T) {
	_, svc, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	apply(t, svc, "speaker-1", "Alice", "hello there", true)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	msg := readView(t, conn)
	if msg.Type != "record" || msg.Record == nil {
		t.Fatalf("expected replayed record, got %+v", msg)
	}
	if msg.Record.SpeakerID != "speaker-1" {
		t.Errorf("expected speaker-1, got %s", msg.Record.SpeakerID)
	}
}

func TestServer_MountAudio_RoutesAheadOfStaticPages(t *testing.T) {
	hub := NewHub()
	svc := ingest.New(reconcile.New(), events.New(&events.Config{Enabled: false}), hub)
	s := NewServer(":0", svc, hub)

	served := false
	s.MountAudio(func(w http.ResponseWriter, r *http.Request) {
		served = true
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/audio", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from the ingress handler, got %d", rr.Code)
	}
	if !served {
		t.Error("expected the mounted ingress handler to serve /ws/audio")
	}

	// The static catch-all still owns every other unmatched path.
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for the viewer page, got %d", rr.Code)
	}
}

func TestServer_UnmountedAudioFallsThrough(t *testing.T) {
	hub := NewHub()
	svc := ingest.New(reconcile.New(), events.New(&events.Config{Enabled: false}), hub)
	s := NewServer(":0", svc, hub)

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/audio", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a mounted ingress, got %d", rr.Code)
	}
}

func TestServer_ServesViewerPage(t *testing.T) {
	_, _, ts, cancel := newTestServer(t)
	defer ts.Close()
	defer cancel()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for viewer page, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected html content type, got %s", ct)
	}
}
