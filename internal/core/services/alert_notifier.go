package services

import (
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

// Element ids and classes of the host page the notifier drives.
const (
	AlertTitleID     = "alertTitle"
	AlertMessageID   = "alertMessage"
	AlertContainerID = "customAlert"
	AlertOverlayID   = "alertOverlay"
	StatusMessageID  = "status-message"
	OfflineClass     = "offline"

	DisplayBlock = "block"
	DisplayNone  = "none"
)

// Status texts shown by the listener bundle.
const (
	StatusOffline      = "You are currently offline."
	StatusOnline       = "You are back online!"
	StatusReconnecting = "Reconnecting..."
	StatusRestored     = "Connection restored!"
)

// AlertNotifier toggles the alert banner and the offline state of the host page.
// It keeps no state besides the document it writes to.
type AlertNotifier struct {
	doc    ports.Document
	logger *zap.SugaredLogger
}

func NewAlertNotifier(doc ports.Document, logger *zap.SugaredLogger) *AlertNotifier {
	return &AlertNotifier{doc: doc, logger: logger}
}

// ShowStatus fills in the banner and makes it and its overlay visible.
func (n *AlertNotifier) ShowStatus(title, message string) {
	container, overlay, ok := n.banner()
	if !ok {
		n.logger.Errorw("Alert elements not found, cannot show status", "title", title, "message", message)
		return
	}

	if el := n.doc.ElementByID(AlertTitleID); el != nil {
		el.SetText(title)
	}
	if el := n.doc.ElementByID(AlertMessageID); el != nil {
		el.SetText(message)
	}
	container.SetDisplay(DisplayBlock)
	overlay.SetDisplay(DisplayBlock)
}

// HideStatus hides the banner and its overlay.
func (n *AlertNotifier) HideStatus() {
	container, overlay, ok := n.banner()
	if !ok {
		n.logger.Errorw("Alert elements not found, cannot hide status")
		return
	}
	container.SetDisplay(DisplayNone)
	overlay.SetDisplay(DisplayNone)
}

// MarkOffline adds the offline class to the body and sets the status text.
func (n *AlertNotifier) MarkOffline(status string) {
	if n.doc == nil {
		n.logger.Errorw("Document not available, cannot mark offline")
		return
	}
	n.doc.Body().Add(OfflineClass)
	n.setStatusText(status)
}

// MarkOnline removes the offline class from the body and sets the status text.
func (n *AlertNotifier) MarkOnline(status string) {
	if n.doc == nil {
		n.logger.Errorw("Document not available, cannot mark online")
		return
	}
	n.doc.Body().Remove(OfflineClass)
	n.setStatusText(status)
}

func (n *AlertNotifier) banner() (container, overlay ports.Element, ok bool) {
	if n.doc == nil {
		return nil, nil, false
	}
	container = n.doc.ElementByID(AlertContainerID)
	overlay = n.doc.ElementByID(AlertOverlayID)
	return container, overlay, container != nil && overlay != nil
}

func (n *AlertNotifier) setStatusText(status string) {
	if el := n.doc.ElementByID(StatusMessageID); el != nil {
		el.SetText(status)
	}
}
