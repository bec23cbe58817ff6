// Package sse streams build notifications to preview clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Build event types.
const (
	BuildCompleted = "build.completed"
	BuildFailed    = "build.failed"
)

// clientBuffer is the number of pending messages a client may lag behind
// before further messages are dropped for it.
const clientBuffer = 64

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BuildCompletedData is the payload of a build.completed event.
type BuildCompletedData struct {
	Nodes     int   `json:"nodes"`
	Documents int   `json:"documents"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// BuildFailedData is the payload of a build.failed event.
type BuildFailedData struct {
	Error string `json:"error"`
}

// Encode formats e as an SSE frame.
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s: %w", e.Type, err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// Broker fans build events out to subscribers. The most recent build event
// is replayed to every new subscriber, so a page opened between builds
// still learns the current state.
//
// The client set and the replay frame are owned by one loop goroutine;
// the exported methods only send requests to it.
type Broker struct {
	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	counts  chan chan int
	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker loop.
func NewBroker() *Broker {
	b := &Broker{
		join:    make(chan chan []byte),
		leave:   make(chan chan []byte),
		events:  make(chan Event, 256),
		counts:  make(chan chan int),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var latest []byte

	send := func(ch chan []byte, frame []byte) {
		select {
		case ch <- frame:
		default:
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}
			if latest != nil {
				send(ch, latest)
			}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.events:
			frame, err := e.Encode()
			if err != nil {
				continue
			}
			if e.Type == BuildCompleted || e.Type == BuildFailed {
				latest = frame
			}
			for ch := range clients {
				send(ch, frame)
			}

		case resp := <-b.counts:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed by Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.counts <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues e for every subscriber. Slow subscribers miss messages
// rather than stall the broker.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

// PublishBuild publishes build.completed, or build.failed when err is set.
func (b *Broker) PublishBuild(nodes, documents int, elapsed time.Duration, err error) {
	if err != nil {
		b.Publish(Event{Type: BuildFailed, Data: BuildFailedData{Error: err.Error()}})
		return
	}
	b.Publish(Event{Type: BuildCompleted, Data: BuildCompletedData{
		Nodes:     nodes,
		Documents: documents,
		ElapsedMS: elapsed.Milliseconds(),
	}})
}

// ServeHTTP streams events until the client disconnects or the broker
// closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
