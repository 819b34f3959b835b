// Package board serves the host UI surface of a call agent: a document the
// agent writes alerts and status into, mirrored live to browser pages.
package board

import (
	"sort"
	"sync"

	"callbridge/internal/core/ports"
	"callbridge/internal/core/services"
)

// StandardElementIDs are the elements every board starts with.
var StandardElementIDs = []string{
	services.AlertContainerID,
	services.AlertOverlayID,
	services.AlertTitleID,
	services.AlertMessageID,
	services.StatusMessageID,
}

type ElementState struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Display string `json:"display"`
}

// Snapshot is the full document state. Version increases with every change.
type Snapshot struct {
	Version          uint64         `json:"version"`
	Elements         []ElementState `json:"elements"`
	BodyClasses      []string       `json:"body_classes"`
	EndCallAvailable bool           `json:"end_call_available"`
}

// Document implements ports.Document in memory. Elements start hidden.
type Document struct {
	mu       sync.Mutex
	order    []string
	elements map[string]*Element
	classes  map[string]bool
	version  uint64
	endCall  bool
	onChange func(Snapshot)
}

func NewDocument(ids ...string) *Document {
	d := &Document{
		elements: make(map[string]*Element, len(ids)),
		classes:  make(map[string]bool),
	}
	for _, id := range ids {
		if _, ok := d.elements[id]; ok {
			continue
		}
		d.order = append(d.order, id)
		d.elements[id] = &Element{doc: d, id: id, display: services.DisplayNone}
	}
	return d
}

// OnChange sets the function that receives a snapshot after every change.
func (d *Document) OnChange(fn func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

func (d *Document) ElementByID(id string) ports.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	if !ok {
		return nil
	}
	return el
}

func (d *Document) Body() ports.ClassList {
	return &bodyClasses{doc: d}
}

func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Document) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:          d.version,
		Elements:         make([]ElementState, 0, len(d.order)),
		BodyClasses:      make([]string, 0, len(d.classes)),
		EndCallAvailable: d.endCall,
	}
	for _, id := range d.order {
		el := d.elements[id]
		snap.Elements = append(snap.Elements, ElementState{ID: id, Text: el.text, Display: el.display})
	}
	for class := range d.classes {
		snap.BodyClasses = append(snap.BodyClasses, class)
	}
	sort.Strings(snap.BodyClasses)
	return snap
}

// update applies fn under the lock and publishes a snapshot if it reports a
// change.
func (d *Document) update(fn func() bool) {
	d.mu.Lock()
	if !fn() {
		d.mu.Unlock()
		return
	}
	d.version++
	snap := d.snapshotLocked()
	onChange := d.onChange
	d.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}

func (d *Document) setEndCallAvailable(available bool) {
	d.update(func() bool {
		if d.endCall == available {
			return false
		}
		d.endCall = available
		return true
	})
}

// Element implements ports.Element.
type Element struct {
	doc     *Document
	id      string
	text    string
	display string
}

func (e *Element) ID() string { return e.id }

func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text
}

func (e *Element) SetText(text string) {
	e.doc.update(func() bool {
		if e.text == text {
			return false
		}
		e.text = text
		return true
	})
}

func (e *Element) Display() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.display
}

func (e *Element) SetDisplay(display string) {
	e.doc.update(func() bool {
		if e.display == display {
			return false
		}
		e.display = display
		return true
	})
}

type bodyClasses struct {
	doc *Document
}

func (b *bodyClasses) Add(class string) {
	b.doc.update(func() bool {
		if b.doc.classes[class] {
			return false
		}
		b.doc.classes[class] = true
		return true
	})
}

func (b *bodyClasses) Remove(class string) {
	b.doc.update(func() bool {
		if !b.doc.classes[class] {
			return false
		}
		delete(b.doc.classes, class)
		return true
	})
}

func (b *bodyClasses) Contains(class string) bool {
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()
	return b.doc.classes[class]
}
