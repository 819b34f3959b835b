package ports

import (
	"callbridge/internal/core/domain"
)

// CallMetrics receives call lifecycle observations from the core services.
type CallMetrics interface {
	CallStateChanged(from, to domain.CallState)
	WorkflowActionTriggered(action, result string)
	EntityUpdated(result string)
	HostEvent(event domain.HostEventType)
	ActiveSubscribers(count int)
}
