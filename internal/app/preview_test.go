package app

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestPreview_SubscribeAndBroadcast(t *testing.T) {
	p := NewPreview()
	if p.Viewers() != 0 {
		t.Fatalf("Viewers() = %d, want 0", p.Viewers())
	}

	ch, cancel := p.Subscribe()
	if p.Viewers() != 1 {
		t.Fatalf("Viewers() = %d, want 1", p.Viewers())
	}

	p.broadcast([]byte("one"))
	p.broadcast([]byte("two"))

	select {
	case got := <-ch:
		if string(got) != "two" {
			t.Errorf("got %q, want the latest frame %q", got, "two")
		}
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	if p.Viewers() != 0 {
		t.Errorf("Viewers() = %d, want 0", p.Viewers())
	}
}

func TestPreview_OfferEncodesJPEG(t *testing.T) {
	p := NewPreview()
	ch, cancel := p.Subscribe()
	defer cancel()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	p.offer(&frame)

	select {
	case got := <-ch:
		if len(got) < 2 || got[0] != 0xFF || got[1] != 0xD8 {
			t.Errorf("frame is not a JPEG")
		}
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}
