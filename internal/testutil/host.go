package testutil

import (
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
)

// Element is a fake ports.Element.
type Element struct {
	mu      sync.Mutex
	id      string
	text    string
	display string
}

func (e *Element) ID() string { return e.id }

func (e *Element) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *Element) Display() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

func (e *Element) SetDisplay(display string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display = display
}

// ClassList is a fake ports.ClassList.
type ClassList struct {
	mu      sync.Mutex
	classes map[string]bool
}

func (c *ClassList) Add(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class] = true
}

func (c *ClassList) Remove(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.classes, class)
}

func (c *ClassList) Contains(class string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classes[class]
}

// Document is a fake ports.Document holding only the elements it was built with.
type Document struct {
	elements map[string]*Element
	body     *ClassList
}

// NewDocument creates a document with the given element ids, each hidden.
func NewDocument(ids ...string) *Document {
	d := &Document{
		elements: make(map[string]*Element, len(ids)),
		body:     &ClassList{classes: make(map[string]bool)},
	}
	for _, id := range ids {
		d.elements[id] = &Element{id: id, display: "none"}
	}
	return d
}

func (d *Document) ElementByID(id string) ports.Element {
	if el, ok := d.elements[id]; ok {
		return el
	}
	return nil
}

// Element returns the concrete element for assertions, nil when absent.
func (d *Document) Element(id string) *Element {
	return d.elements[id]
}

func (d *Document) Body() ports.ClassList {
	return d.body
}

// HostEvents is a fake ports.HostEvents that counts registrations.
type HostEvents struct {
	mu        sync.Mutex
	hidden    bool
	nextID    ports.ListenerID
	listeners map[ports.ListenerID]hostListener
	added     int
	removed   int
}

type hostListener struct {
	event domain.HostEventType
	fn    func()
}

func NewHostEvents() *HostEvents {
	return &HostEvents{listeners: make(map[ports.ListenerID]hostListener)}
}

func (h *HostEvents) AddListener(event domain.HostEventType, fn func()) ports.ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.listeners[h.nextID] = hostListener{event: event, fn: fn}
	h.added++
	return h.nextID
}

func (h *HostEvents) RemoveListener(id ports.ListenerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		h.removed++
	}
}

func (h *HostEvents) Hidden() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hidden
}

func (h *HostEvents) SetHidden(hidden bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hidden = hidden
}

// Dispatch runs every listener registered for event in registration order.
func (h *HostEvents) Dispatch(event domain.HostEventType) {
	h.mu.Lock()
	var fns []func()
	for id := ports.ListenerID(1); id <= h.nextID; id++ {
		if l, ok := h.listeners[id]; ok && l.event == event {
			fns = append(fns, l.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (h *HostEvents) Added() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.added
}

func (h *HostEvents) Removed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}

func (h *HostEvents) Active(event domain.HostEventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, l := range h.listeners {
		if l.event == event {
			n++
		}
	}
	return n
}

// EndCallHook is a fake ports.EndCallHook.
type EndCallHook struct {
	mu sync.Mutex
	fn func()
}

func (h *EndCallHook) InstallEndCall(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = fn
}

func (h *EndCallHook) UninstallEndCall() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = nil
}

func (h *EndCallHook) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fn != nil
}

// Trigger invokes the installed trigger and reports whether one was installed.
func (h *EndCallHook) Trigger() bool {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
