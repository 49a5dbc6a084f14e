// Package sse implements a Server-Sent Events broker for corpus change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
)

// Event types.
const (
	EventDocumentAdded = "document.added"
	EventIndexStale    = "index.stale"
	EventIndexBuilt    = "index.built"
	EventIndexFailed   = "index.failed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// DocumentData is the payload of document.added.
type DocumentData struct {
	Root     string   `json:"root"`
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// IndexData is the payload of the index events.
type IndexData struct {
	Root      string `json:"root"`
	Documents int    `json:"documents,omitempty"`
	Terms     int    `json:"terms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Broker fans corpus events out to connected event-stream clients.
//
// The client set and the per-root stale throttle belong to one goroutine
// (see hub); the exported methods reach it over channels, which keeps
// events in publish order.
type Broker struct {
	joinCh  chan chan []byte
	leaveCh chan chan []byte
	eventCh chan Event
	countCh chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// clientBuffer is how many frames a slow client may fall behind before
// frames are dropped for it.
const clientBuffer = 64

// NewBroker starts a broker. index.stale goes out at most once per root per
// staleThrottle; zero or less means two seconds.
func NewBroker(staleThrottle time.Duration) *Broker {
	if staleThrottle <= 0 {
		staleThrottle = 2 * time.Second
	}
	b := &Broker{
		joinCh:  make(chan chan []byte),
		leaveCh: make(chan chan []byte),
		eventCh: make(chan Event, 256),
		countCh: make(chan chan int),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	h := &hub{
		clients:   make(map[chan []byte]struct{}),
		lastStale: make(map[string]time.Time),
		staleMin:  staleThrottle,
	}
	go b.loop(h)
	return b
}

// hub is the state owned by the broker goroutine.
type hub struct {
	clients   map[chan []byte]struct{}
	lastStale map[string]time.Time
	staleMin  time.Duration
}

func frame(e Event) ([]byte, bool) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), true
}

func (h *hub) send(e Event) {
	msg, ok := frame(e)
	if !ok {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// dispatch sends e and, for an added document, the root's index.stale
// hint unless one went out within staleMin. A successful build clears the
// hint timer so the next add reports staleness right away.
func (h *hub) dispatch(e Event, now time.Time) {
	h.send(e)
	switch d := e.Data.(type) {
	case DocumentData:
		if now.Sub(h.lastStale[d.Root]) < h.staleMin {
			return
		}
		h.lastStale[d.Root] = now
		h.send(Event{Type: EventIndexStale, Data: IndexData{Root: d.Root}})
	case IndexData:
		if e.Type == EventIndexBuilt {
			delete(h.lastStale, d.Root)
		}
	}
}

func (h *hub) drop(ch chan []byte) {
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				h.drop(ch)
			}
			return
		case ch := <-b.joinCh:
			h.clients[ch] = struct{}{}
		case ch := <-b.leaveCh:
			h.drop(ch)
		case e := <-b.eventCh:
			h.dispatch(e, time.Now())
		case reply := <-b.countCh:
			reply <- len(h.clients)
		}
	}
}

// Close stops the broker and ends every client stream. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed when the
// client is unsubscribed or the broker closes.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client registered with Subscribe.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount reports how many clients are subscribed.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.countCh <- reply:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues e for every client. Events published after Close are
// discarded.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- e:
	case <-b.stopped:
	}
}

// DocumentAdded publishes document.added and a throttled index.stale for
// root. Nil brokers ignore the call.
func (b *Broker) DocumentAdded(root string, doc *models.Document) {
	if b == nil || doc == nil {
		return
	}
	b.Publish(Event{Type: EventDocumentAdded, Data: DocumentData{
		Root:     root,
		Path:     doc.Path,
		Title:    doc.Title,
		Category: doc.Category,
		Tags:     doc.Tags,
	}})
}

// IndexBuilt publishes the outcome of an index build. root names the root
// when the build failed before producing stats. Nil brokers ignore the call.
func (b *Broker) IndexBuilt(root string, st *index.BuildStats, err error) {
	if b == nil {
		return
	}
	if err != nil || st == nil {
		if err == nil {
			err = fmt.Errorf("no build stats")
		}
		b.Publish(Event{Type: EventIndexFailed, Data: IndexData{Root: root, Error: err.Error()}})
		return
	}
	b.Publish(Event{Type: EventIndexBuilt, Data: IndexData{Root: st.Root, Documents: st.Documents, Terms: st.Terms}})
}

// heartbeat is how often an idle stream gets a comment line so proxies keep
// the connection open.
const heartbeat = 25 * time.Second

// ServeHTTP streams corpus events to one client until it disconnects or the
// broker closes.
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

	events := b.Subscribe()
	defer b.Unsubscribe(events)

	tick := time.NewTicker(heartbeat)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			_, _ = io.WriteString(w, ": ping\n\n")
		case msg, open := <-events:
			if !open {
				return
			}
			_, _ = w.Write(msg)
		}
		flusher.Flush()
	}
}
