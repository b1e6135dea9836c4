package app

import (
	"bytes"
	"sync"

	"gocv.io/x/gocv"
)

// Preview fans out JPEG-encoded camera frames to live viewers. Frames are
// only encoded while someone is subscribed; slow viewers miss frames.
type Preview struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewPreview returns a Preview with no subscribers.
func NewPreview() *Preview {
	return &Preview{subs: make(map[chan []byte]struct{})}
}

// Subscribe returns a channel of JPEG frames and a function that ends the
// subscription and closes the channel.
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// Viewers returns the number of subscribers.
func (p *Preview) Viewers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Preview) offer(frame *gocv.Mat) {
	if p.Viewers() == 0 {
		return
	}
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()
	p.broadcast(data)
}

func (p *Preview) broadcast(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- data:
		default:
			// Replace the frame the viewer has not picked up yet.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
}
