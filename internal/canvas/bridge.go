// Package canvas runs the editor's live preview of a page. A Session owns
// the rendering host and the document copy; the editor talks to it through
// a Bridge.
package canvas

import (
	"sync"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
)

// EventKind tags a bridge event.
type EventKind string

const (
	// EventUpdateDom replaces the canvas document.
	EventUpdateDom EventKind = "updateDom"
	// EventDispatch fires a component event handler, as a user interaction would.
	EventDispatch EventKind = "dispatch"
)

// Event is a message from the editor to the canvas.
type Event struct {
	Kind     EventKind
	Document *appdom.Document

	NodeID  string
	Prop    string
	Payload any
}

// bridgeBuffer is the number of events queued before older document
// updates are dropped in favour of newer ones.
const bridgeBuffer = 16

// Bridge carries editor events to an installed canvas. Sends never block
// and never panic; they report false when no canvas is installed.
type Bridge struct {
	mu     sync.Mutex
	events chan Event
}

// NewBridge returns an uninstalled bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Install attaches a canvas and returns the channel it receives events on.
// Installing an installed bridge returns the existing channel.
func (b *Bridge) Install() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		b.events = make(chan Event, bridgeBuffer)
	}
	return b.events
}

// Uninstall detaches the canvas. Pending events are discarded.
func (b *Bridge) Uninstall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Installed reports whether a canvas is attached.
func (b *Bridge) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events != nil
}

// UpdateDom sends a new document to the canvas.
func (b *Bridge) UpdateDom(doc *appdom.Document) bool {
	if doc == nil {
		return false
	}
	return b.send(Event{Kind: EventUpdateDom, Document: doc})
}

// Dispatch asks the canvas to call the eventProp handler of nodeID.
func (b *Bridge) Dispatch(nodeID, eventProp string, payload any) bool {
	return b.send(Event{Kind: EventDispatch, NodeID: nodeID, Prop: eventProp, Payload: payload})
}

func (b *Bridge) send(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		return false
	}
	for {
		select {
		case b.events <- ev:
			return true
		default:
		}
		// Full: drop the oldest queued event. Document updates supersede each other.
		select {
		case <-b.events:
		default:
		}
	}
}
