// Package notify routes claim events to store and customer mailboxes.
// Delivery is best-effort and asynchronous: a failed or slow send never
// delays or fails the claim mutation that produced it.
package notify

import (
	"log"
	"sync"
)

// Event is one outbound notification.
type Event struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message. SMTPMailer is the production
// implementation; tests inject a recorder.
type Mailer interface {
	Send(ev Event) error
}

// Publisher is the side the lifecycle service sees.
type Publisher interface {
	Publish(ev Event)
}

// Routes maps a store identifier to its notification mailbox, with a default
// for unrecognized stores.
type Routes struct {
	Stores  map[string]string
	Default string
}

// StoreAddress resolves a store id to a mailbox, falling back to Default.
func (r Routes) StoreAddress(storeID string) string {
	if addr, ok := r.Stores[storeID]; ok {
		return addr
	}
	return r.Default
}

// Notifier feeds events through a buffered channel into a single worker.
type Notifier struct {
	mailer Mailer
	queue  chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// NewNotifier creates a notifier with the given queue depth and starts its
// worker.
func NewNotifier(mailer Mailer, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	n := &Notifier{
		mailer: mailer,
		queue:  make(chan Event, buffer),
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for ev := range n.queue {
		if err := n.mailer.Send(ev); err != nil {
			log.Printf("notify: send to %s failed: %v", ev.To, err)
		}
	}
}

// Publish enqueues an event. A full queue drops the event with a warning
// rather than blocking the caller.
func (n *Notifier) Publish(ev Event) {
	if ev.To == "" {
		return
	}
	select {
	case n.queue <- ev:
	default:
		log.Printf("notify: queue full, dropping notification to %s", ev.To)
	}
}

// Close stops accepting events and blocks until the worker has drained the
// queue.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.queue)
	})
	n.wg.Wait()
}
