package services

import (
	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
)

// Result labels reported to ports.CallMetrics.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultSkipped  = "skipped"
)

type noopMetrics struct{}

func (noopMetrics) CallStateChanged(domain.CallState, domain.CallState) {}
func (noopMetrics) WorkflowActionTriggered(string, string)              {}
func (noopMetrics) EntityUpdated(string)                                {}
func (noopMetrics) HostEvent(domain.HostEventType)                      {}
func (noopMetrics) ActiveSubscribers(int)                               {}

func metricsOrNoop(m ports.CallMetrics) ports.CallMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
