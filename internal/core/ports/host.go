package ports

import (
	"callbridge/internal/core/domain"
)

// Document is the slice of the host UI the agent manipulates.
type Document interface {
	// ElementByID returns nil when no element has the id.
	ElementByID(id string) Element
	Body() ClassList
}

type Element interface {
	ID() string
	Text() string
	SetText(text string)
	Display() string
	SetDisplay(display string)
}

type ClassList interface {
	Add(class string)
	Remove(class string)
	Contains(class string) bool
}

type ListenerID uint64

// HostEvents is the window/document event target of the host page.
type HostEvents interface {
	AddListener(event domain.HostEventType, fn func()) ListenerID
	RemoveListener(id ListenerID)
	Hidden() bool
}

// EndCallHook exposes an end-call trigger to callers outside the agent.
type EndCallHook interface {
	InstallEndCall(fn func())
	UninstallEndCall()
}
