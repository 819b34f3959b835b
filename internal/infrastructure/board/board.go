package board

import (
	"errors"
	"fmt"
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/infrastructure/hostevents"

	"go.uber.org/zap"
)

var ErrNoEndCall = errors.New("no end-call trigger installed")

// Page message types sent by connected browsers.
const (
	PageVisibility   = "visibility"
	PageBeforeUnload = "beforeunload"
)

type PageMessage struct {
	Type   string `json:"type"`
	Hidden *bool  `json:"hidden,omitempty"`
}

// Board ties the document, the live page hub and the host event target
// together. It implements ports.EndCallHook.
type Board struct {
	doc    *Document
	hub    *Hub
	host   *hostevents.Target
	logger *zap.SugaredLogger

	mu      sync.Mutex
	endCall func()
}

func New(host *hostevents.Target, logger *zap.SugaredLogger) *Board {
	b := &Board{
		doc:    NewDocument(StandardElementIDs...),
		host:   host,
		logger: logger,
	}
	b.hub = newHub(b, logger)
	b.doc.OnChange(b.hub.Broadcast)
	return b
}

func (b *Board) Document() *Document {
	return b.doc
}

func (b *Board) Hub() *Hub {
	return b.hub
}

func (b *Board) InstallEndCall(fn func()) {
	b.mu.Lock()
	b.endCall = fn
	b.mu.Unlock()
	b.doc.setEndCallAvailable(fn != nil)
}

func (b *Board) UninstallEndCall() {
	b.mu.Lock()
	b.endCall = nil
	b.mu.Unlock()
	b.doc.setEndCallAvailable(false)
}

// TriggerEndCall runs the installed end-call trigger.
func (b *Board) TriggerEndCall() error {
	b.mu.Lock()
	fn := b.endCall
	b.mu.Unlock()
	if fn == nil {
		return ErrNoEndCall
	}
	b.logger.Infow("End call requested")
	fn()
	return nil
}

// HandlePageMessage forwards page lifecycle events to the host target.
func (b *Board) HandlePageMessage(msg PageMessage) error {
	switch msg.Type {
	case PageVisibility:
		if msg.Hidden == nil {
			return fmt.Errorf("visibility message without hidden flag")
		}
		b.host.SetHidden(*msg.Hidden)
	case PageBeforeUnload:
		b.host.Dispatch(domain.HostBeforeUnload)
	default:
		return fmt.Errorf("unknown page message type %q", msg.Type)
	}
	return nil
}
