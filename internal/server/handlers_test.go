package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/app"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
)

type fakeController struct {
	mu      sync.Mutex
	running bool
	err     error
	stops   int
}

func (c *fakeController) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if c.running {
		return "", app.ErrAlreadyRunning
	}
	c.running = true
	return "session-1", nil
}

func (c *fakeController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.stops++
}

func (c *fakeController) Snapshot() app.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return app.Update{SessionID: "session-1", State: app.StateRunning, Running: true, Letter: gesture.LetterB}
	}
	return app.Update{State: app.StateIdle}
}

func TestServer_Reference(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/reference", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		References []gesture.Reference `json:"references"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.References) != len(gesture.References()) {
		t.Errorf("got %d references, want %d", len(body.References), len(gesture.References()))
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	ctrl := &fakeController{}
	s := New(Config{Controller: ctrl})

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	rec := do(http.MethodPost, "/api/session")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var started struct {
		SessionID string `json:"sessionId"`
		State     struct {
			State   string `json:"state"`
			Running bool   `json:"running"`
		} `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.SessionID != "session-1" || started.State.State != "running" || !started.State.Running {
		t.Errorf("start response = %+v", started)
	}

	if rec := do(http.MethodPost, "/api/session"); rec.Code != http.StatusConflict {
		t.Errorf("second POST status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = do(http.MethodGet, "/api/state")
	var state struct {
		Letter string `json:"letter"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Letter != "B" {
		t.Errorf("state letter = %q, want %q", state.Letter, "B")
	}

	if rec := do(http.MethodDelete, "/api/session"); rec.Code != http.StatusOK {
		t.Errorf("DELETE status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, want 1", ctrl.stops)
	}

	if rec := do(http.MethodPut, "/api/session"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if rec := do(http.MethodPost, "/api/state"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/state status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_SessionStartCameraUnavailable(t *testing.T) {
	ctrl := &fakeController{err: app.ErrCameraUnavailable}
	s := New(Config{Controller: ctrl})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_HealthIncludesState(t *testing.T) {
	s := New(Config{Controller: &fakeController{}})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if body["running"] != false {
		t.Errorf("running = %v, want false", body["running"])
	}
}

func TestServer_MetricsRoute(t *testing.T) {
	s := New(Config{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("signspeak_frames_read_total 1\n"))
	})})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "signspeak_frames_read_total") {
		t.Errorf("metrics body = %q", rec.Body.String())
	}
}

type fakeSource struct {
	frames chan []byte
}

func (f *fakeSource) Subscribe() (<-chan []byte, func()) {
	return f.frames, func() {}
}

func TestStreamHandler_WritesMJPEG(t *testing.T) {
	src := &fakeSource{frames: make(chan []byte, 2)}
	src.frames <- []byte{0xFF, 0xD8, 0x01}
	close(src.frames)

	rec := httptest.NewRecorder()
	NewStreamHandler(src).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "--frame\r\n") || !strings.Contains(body, "Content-Length: 3\r\n") {
		t.Errorf("body is not an MJPEG part: %q", body)
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler(&fakeSource{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestUpdatesHub_Broadcast(t *testing.T) {
	hub := NewUpdatesHub(func() app.Update { return app.Update{State: app.StateIdle} }, nil)
	ts := httptest.NewServer(New(Config{Updates: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/updates"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	read := func() map[string]interface{} {
		t.Helper()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]interface{}
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return m
	}

	if first := read(); first["state"] != "idle" {
		t.Errorf("initial snapshot state = %v, want idle", first["state"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(app.Update{State: app.StateRunning, Running: true, Letter: gesture.LetterC, Spoken: true})

	got := read()
	if got["letter"] != "C" || got["spoken"] != true || got["state"] != "running" {
		t.Errorf("update = %v", got)
	}
}

func TestUpdatesHub_PublishWithoutClients(t *testing.T) {
	hub := NewUpdatesHub(nil, nil)
	hub.Publish(app.Update{})
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", hub.Clients())
	}
}

// readPart reads one MJPEG part header block from r.
func readPart(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return b.String(), err
		}
		b.WriteString(line)
		if line == "\r\n" {
			return b.String(), nil
		}
	}
}
