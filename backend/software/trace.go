package software

import (
	"fmt"
	"sync"
)

// EventKind identifies a trace event.
type EventKind uint8

// Trace event kinds.
const (
	EventSubmit EventKind = iota
	EventSignal
	EventDraw
	EventDispatch
	EventBarrier
	EventComposite
	EventPresent
	EventCreateTexture
	EventDestroyTexture
	EventDestroyBuffer
	EventSwapchainResize
)

var eventNames = [...]string{
	EventSubmit:          "submit",
	EventSignal:          "signal",
	EventDraw:            "draw",
	EventDispatch:        "dispatch",
	EventBarrier:         "barrier",
	EventComposite:       "composite",
	EventPresent:         "present",
	EventCreateTexture:   "create_texture",
	EventDestroyTexture:  "destroy_texture",
	EventDestroyBuffer:   "destroy_buffer",
	EventSwapchainResize: "swapchain_resize",
}

// String returns the event kind name.
func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is one entry of a Trace.
//
// Value is the fence value for submit and signal events, the resource ID
// for create and destroy events, and the request count for draws. Detail
// names the kernel or shader mode where one applies.
type Event struct {
	Kind   EventKind
	Value  uint64
	Detail string
}

// String formats the event as "kind value detail".
func (e Event) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %d", e.Kind, e.Value)
	}
	return fmt.Sprintf("%s %d %s", e.Kind, e.Value, e.Detail)
}

// Trace is an ordered log of substrate activity. Draws, dispatches and
// barriers are logged when they execute, not when they are recorded.
type Trace struct {
	mu     sync.Mutex
	events []Event
}

func (t *Trace) add(kind EventKind, value uint64, detail string) {
	t.mu.Lock()
	t.events = append(t.events, Event{Kind: kind, Value: value, Detail: detail})
	t.mu.Unlock()
}

// Events returns a copy of the logged events.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Filter returns the logged events of the given kinds, in order.
func (t *Trace) Filter(kinds ...EventKind) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Reset clears the trace.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}
